package proc

import (
	"errors"

	"github.com/unloop/unloop/pkg/logflags"
)

// State is the position of a control session in its state machine.
type State uint8

const (
	StateIdle      State = iota
	StateAttached        // Attach succeeded
	StateSuspended       // Suspend succeeded, Resume is now mandatory
	StateInspected       // the single thread's registers were read
	StateMutated         // the new registers were written back
	StateResumed         // normal end of a session
	StateAborted         // a stage failed
)

// String maps State to string representation.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttached:
		return "attached"
	case StateSuspended:
		return "suspended"
	case StateInspected:
		return "inspected"
	case StateMutated:
		return "mutated"
	case StateResumed:
		return "resumed"
	case StateAborted:
		return "aborted"
	default:
		return ""
	}
}

// Inspection is what a Chooser gets to look at before picking a strategy.
type Inspection struct {
	Pid    int
	Thread ThreadHandle
	Regs   Registers

	// Instruction is the disassembled instruction at Regs.PC, empty if it
	// could not be read or decoded.
	Instruction string
	// SelfBranch is true if Instruction is an unconditional branch to
	// itself.
	SelfBranch bool
}

// Chooser picks the strategy to apply. It is called while the target is
// suspended and may block for as long as it needs to.
type Chooser func(insp Inspection) Strategy

// Result describes the outcome of a session.
type Result struct {
	Pid      int
	Thread   ThreadHandle
	State    State
	Strategy Strategy
	Before   Registers // registers as read from the thread
	After    Registers // registers as left in the thread
	Written  bool      // whether After was written back
}

// Session sequences one attach/suspend/inspect/mutate/resume cycle against
// a Backend. A Session holds no state between calls to Run.
type Session struct {
	backend Backend
	arch    *Arch
	log     logflags.Logger

	// Disassemble enables reading and decoding the instruction at PC for
	// the Inspection.
	Disassemble bool
}

// NewSession returns a Session driving backend for a target of the given
// architecture.
func NewSession(backend Backend, arch *Arch) *Session {
	return &Session{
		backend: backend,
		arch:    arch,
		log:     logflags.SessionLogger(),
	}
}

type sessionRun struct {
	*Session
	pid   int
	h     Handle
	state State
	res   *Result
	log   logflags.Logger
}

func (r *sessionRun) transition(to State) {
	r.log.Debugf("%s -> %s", r.state, to)
	r.state = to
	r.res.State = to
}

// Run controls process pid for one session. The returned Result is never
// nil and reports the state the session ended in.
//
// If Suspend succeeds Resume is attempted exactly once before Run returns,
// whichever stage fails. A failure of Resume is returned as a *ResumeError,
// which wraps the earlier error if there was one.
func (s *Session) Run(pid int, choose Chooser) (res *Result, err error) {
	r := &sessionRun{
		Session: s,
		pid:     pid,
		res:     &Result{Pid: pid},
		log:     s.log.WithField("pid", pid),
	}
	res = r.res

	r.h, err = s.backend.Attach(pid)
	if err != nil {
		r.transition(StateAborted)
		return res, &AttachError{Pid: pid, Reason: attachReason(err), Err: err}
	}
	r.transition(StateAttached)

	if err := s.backend.Suspend(r.h); err != nil {
		r.transition(StateAborted)
		if derr := s.backend.Detach(r.h); derr != nil {
			r.log.WithError(derr).Warn("could not release process after failed suspend")
		}
		return res, &SuspendError{Pid: pid, Err: err}
	}
	r.transition(StateSuspended)

	defer func() {
		if rerr := s.backend.Resume(r.h); rerr != nil {
			err = &ResumeError{Pid: pid, Err: rerr, Cause: err}
			r.log.WithField("fatal", true).WithError(rerr).Errorf("could not resume process %d, it may remain suspended", pid)
			r.transition(StateAborted)
			return
		}
		if err != nil {
			r.transition(StateAborted)
			return
		}
		r.transition(StateResumed)
	}()

	return res, r.control(choose)
}

// control runs the stages that happen while the target is suspended.
func (r *sessionRun) control(choose Chooser) error {
	threads, err := r.backend.ThreadList(r.h)
	if err != nil {
		return &EnumerationError{Pid: r.pid, Err: err}
	}
	if len(threads) != 1 {
		return &TopologyError{Pid: r.pid, Reason: UnsupportedThreadCount, Threads: len(threads)}
	}
	th := threads[0]
	r.res.Thread = th

	regs, err := r.backend.GetRegisters(th)
	if err != nil {
		return &StateReadError{Thread: th, Err: err}
	}
	r.res.Before = regs
	r.res.After = regs
	r.transition(StateInspected)

	strategy := StrategyNone
	if choose != nil {
		strategy = choose(r.inspect(th, regs))
	}
	r.res.Strategy = strategy
	if strategy == StrategyNone {
		r.log.Info("no strategy selected, no changes made")
		return nil
	}

	newRegs, err := strategy.apply(r.arch, r.backend, r.h, regs)
	if err != nil {
		var serr StageError
		if errors.As(err, &serr) {
			return err
		}
		return &MutateError{Strategy: strategy, Err: err}
	}
	if err := r.backend.SetRegisters(th, newRegs); err != nil {
		return &StateWriteError{Thread: th, Err: err}
	}
	r.res.After = newRegs
	r.res.Written = true
	if logflags.Session() {
		r.log.Debugf("%s: %v -> %v", strategy, regs, newRegs)
	}
	r.transition(StateMutated)
	return nil
}

func (r *sessionRun) inspect(th ThreadHandle, regs Registers) Inspection {
	insp := Inspection{Pid: r.pid, Thread: th, Regs: regs}
	if !r.Disassemble {
		return insp
	}
	mem, err := readWindow(r.backend, r.h, regs.PC, int(r.arch.InstructionWidth()))
	if err != nil {
		r.log.WithError(err).Debug("could not read instruction at PC")
		return insp
	}
	text, selfBranch, err := r.arch.Disassemble(mem.Bytes(), regs.PC)
	if err != nil {
		r.log.WithError(err).Debug("could not decode instruction at PC")
		return insp
	}
	insp.Instruction = text
	insp.SelfBranch = selfBranch
	return insp
}
