package proc

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

// Stage identifies the step of a control session that failed.
type Stage uint8

const (
	StageAttach    Stage = iota // requesting control of the process
	StageSuspend                // halting the process
	StageEnumerate              // listing threads and checking the topology
	StageRead                   // reading the register snapshot
	StageMutate                 // applying a control flow strategy
	StageWrite                  // writing the register snapshot back
	StageResume                 // restarting the process
)

// String maps Stage to string representation.
func (s Stage) String() string {
	switch s {
	case StageAttach:
		return "attach"
	case StageSuspend:
		return "suspend"
	case StageEnumerate:
		return "enumerate"
	case StageRead:
		return "read"
	case StageMutate:
		return "mutate"
	case StageWrite:
		return "write"
	case StageResume:
		return "resume"
	default:
		return ""
	}
}

// StageError is implemented by every error returned by a Session.
type StageError interface {
	error
	Stage() Stage
}

// StatusCode returns the raw status code reported by the backend call that
// caused err, if there is one.
func StatusCode(err error) (int, bool) {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno), true
	}
	return 0, false
}

func statusSuffix(err error) string {
	if code, ok := StatusCode(err); ok {
		return fmt.Sprintf(" (status %d)", code)
	}
	return ""
}

// AttachReason classifies an attach failure.
type AttachReason uint8

const (
	AttachFailed     AttachReason = iota // any failure not classified below
	PermissionDenied                     // the caller lacks the privilege to control the process
	NoSuchProcess                        // the process does not exist anymore
)

func (r AttachReason) String() string {
	switch r {
	case PermissionDenied:
		return "permission denied"
	case NoSuchProcess:
		return "no such process"
	default:
		return "attach failed"
	}
}

func attachReason(err error) AttachReason {
	switch {
	case errors.Is(err, syscall.EPERM), errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case errors.Is(err, syscall.ESRCH), errors.Is(err, fs.ErrNotExist):
		return NoSuchProcess
	default:
		return AttachFailed
	}
}

// AttachError is returned when control of the process could not be
// obtained.
type AttachError struct {
	Pid    int
	Reason AttachReason
	Err    error
}

func (e *AttachError) Error() string {
	msg := fmt.Sprintf("could not attach to process %d: %s", e.Pid, e.Reason)
	if e.Reason == PermissionDenied {
		msg += " (try running as root)"
	}
	return msg + statusSuffix(e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }
func (e *AttachError) Stage() Stage  { return StageAttach }

// SuspendError is returned when the attached process could not be halted.
type SuspendError struct {
	Pid int
	Err error
}

func (e *SuspendError) Error() string {
	return fmt.Sprintf("could not suspend process %d: %v%s", e.Pid, e.Err, statusSuffix(e.Err))
}

func (e *SuspendError) Unwrap() error { return e.Err }
func (e *SuspendError) Stage() Stage  { return StageSuspend }

// EnumerationError is returned when the threads of the process could not be
// listed.
type EnumerationError struct {
	Pid int
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("could not list threads of process %d: %v%s", e.Pid, e.Err, statusSuffix(e.Err))
}

func (e *EnumerationError) Unwrap() error { return e.Err }
func (e *EnumerationError) Stage() Stage  { return StageEnumerate }

// TopologyReason classifies a rejected thread topology.
type TopologyReason uint8

const (
	UnsupportedThreadCount TopologyReason = iota
)

// TopologyError is returned when the process does not have exactly one
// thread.
type TopologyError struct {
	Pid     int
	Reason  TopologyReason
	Threads int
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("process %d has %d threads: only single threaded programs are supported", e.Pid, e.Threads)
}

func (e *TopologyError) Stage() Stage { return StageEnumerate }

// StateReadError is returned when the register snapshot of a thread could
// not be read.
type StateReadError struct {
	Thread ThreadHandle
	Err    error
}

func (e *StateReadError) Error() string {
	return fmt.Sprintf("could not get state of thread %d: %v%s", e.Thread, e.Err, statusSuffix(e.Err))
}

func (e *StateReadError) Unwrap() error { return e.Err }
func (e *StateReadError) Stage() Stage  { return StageRead }

// StateWriteError is returned when the register snapshot of a thread could
// not be written back.
type StateWriteError struct {
	Thread ThreadHandle
	Err    error
}

func (e *StateWriteError) Error() string {
	return fmt.Sprintf("could not set state of thread %d: %v%s", e.Thread, e.Err, statusSuffix(e.Err))
}

func (e *StateWriteError) Unwrap() error { return e.Err }
func (e *StateWriteError) Stage() Stage  { return StageWrite }

// MemoryReadError is returned when target memory could not be read.
type MemoryReadError struct {
	Addr uint64
	Len  int
	Err  error
}

func (e *MemoryReadError) Error() string {
	return fmt.Sprintf("could not read %d bytes at %#x: %v%s", e.Len, e.Addr, e.Err, statusSuffix(e.Err))
}

func (e *MemoryReadError) Unwrap() error { return e.Err }
func (e *MemoryReadError) Stage() Stage  { return StageMutate }

// MutateError is returned when a strategy could not be applied to the
// register snapshot.
type MutateError struct {
	Strategy Strategy
	Err      error
}

func (e *MutateError) Error() string {
	return fmt.Sprintf("could not apply %s: %v", e.Strategy, e.Err)
}

func (e *MutateError) Unwrap() error { return e.Err }
func (e *MutateError) Stage() Stage  { return StageMutate }

// ResumeError is returned when the process could not be resumed. The target
// may remain suspended; nothing in this package retries.
// Cause is the error that aborted the session before the resume attempt, if
// any.
type ResumeError struct {
	Pid   int
	Err   error
	Cause error
}

func (e *ResumeError) Error() string {
	msg := fmt.Sprintf("could not resume process %d, it may remain suspended: %v%s", e.Pid, e.Err, statusSuffix(e.Err))
	if e.Cause != nil {
		msg += fmt.Sprintf(" (after: %v)", e.Cause)
	}
	return msg
}

func (e *ResumeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func (e *ResumeError) Stage() Stage { return StageResume }

// IsFatal reports whether err means the target may have been left
// suspended.
func IsFatal(err error) bool {
	var rerr *ResumeError
	return errors.As(err, &rerr)
}
