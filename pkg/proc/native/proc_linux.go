package native

import (
	"errors"
	"fmt"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/unloop/unloop/pkg/logflags"
	"github.com/unloop/unloop/pkg/proc"
)

// Attach seizes every task of process pid. The tasks keep running until
// Suspend is called.
func (b *Backend) Attach(pid int) (proc.Handle, error) {
	h := proc.Handle(pid)
	if _, err := b.process(h); err == nil {
		return 0, fmt.Errorf("process %d already attached: %w", pid, syscall.EBUSY)
	}
	tids, err := taskIDs(b.procRoot, pid)
	if err != nil {
		return 0, err
	}
	dbp := &nativeProcess{pid: pid, threads: make(map[int]*nativeThread)}
	for _, tid := range tids {
		b.execPtraceFunc(func() { err = ptraceSeize(tid) })
		if err == sys.ESRCH && tid != pid {
			// thread exited between the listing and the seize
			continue
		}
		if err != nil {
			b.log.Debugf("seize of %d failed: %v", tid, err)
			if rerr := b.release(dbp); rerr != nil {
				b.log.WithError(rerr).Warnf("could not release process %d after failed attach", pid)
			}
			return 0, err
		}
		if logflags.Native() {
			b.log.Debugf("seized task %d of %d", tid, pid)
		}
		dbp.threads[tid] = &nativeThread{tid: tid}
	}

	b.mu.Lock()
	b.procs[h] = dbp
	b.mu.Unlock()
	return h, nil
}

// Suspend stops every seized task. If one of them cannot be stopped the
// tasks stopped so far are restarted.
func (b *Backend) Suspend(h proc.Handle) error {
	dbp, err := b.process(h)
	if err != nil {
		return err
	}
	if dbp.suspended {
		return nil
	}
	var stopped []*nativeThread
	for _, th := range dbp.threadList() {
		if err := b.stopThread(th); err != nil {
			for _, sth := range stopped {
				var cerr error
				b.execPtraceFunc(func() { cerr = ptraceCont(sth.tid, sth.pendingSig) })
				if cerr != nil {
					b.log.WithError(cerr).Warnf("could not restart task %d", sth.tid)
					continue
				}
				sth.stopped = false
				sth.pendingSig = 0
			}
			return err
		}
		stopped = append(stopped, th)
	}
	dbp.suspended = true
	return nil
}

// stopThread interrupts th and waits until it reports a stop.
func (b *Backend) stopThread(th *nativeThread) error {
	var err error
	b.execPtraceFunc(func() { err = ptraceInterrupt(th.tid) })
	if err != nil {
		return err
	}
	for {
		var ws sys.WaitStatus
		_, err := sys.Wait4(th.tid, &ws, sys.WALL, nil)
		if err == sys.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		switch {
		case ws.Exited(), ws.Signaled():
			return fmt.Errorf("task %d exited: %w", th.tid, sys.ESRCH)
		case ws.Stopped():
			th.stopped = true
			if uint32(ws)>>16 != sys.PTRACE_EVENT_STOP {
				// signal-delivery-stop: the signal is suppressed unless we
				// pass it back when restarting the task
				th.pendingSig = int(ws.StopSignal())
				if logflags.Native() {
					b.log.Debugf("task %d stopped with pending signal %v", th.tid, ws.StopSignal())
				}
			}
			return nil
		}
	}
}

// Resume releases every task of the process, restarting it. Every task is
// attempted even if some fail.
func (b *Backend) Resume(h proc.Handle) error {
	dbp, err := b.suspendedProcess(h)
	if err != nil {
		return err
	}
	defer b.forget(h)
	var errs []error
	for _, th := range dbp.threadList() {
		var derr error
		b.execPtraceFunc(func() { derr = ptraceDetach(th.tid, th.pendingSig) })
		if derr == sys.ESRCH && !taskExists(b.procRoot, dbp.pid, th.tid) {
			if logflags.Native() {
				b.log.Debugf("task %d exited while suspended", th.tid)
			}
			continue
		}
		if derr != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", th.tid, derr))
			continue
		}
		th.stopped = false
	}
	dbp.suspended = false
	return errors.Join(errs...)
}

// Detach releases a process that was attached but is not suspended.
func (b *Backend) Detach(h proc.Handle) error {
	dbp, err := b.process(h)
	if err != nil {
		return err
	}
	if dbp.suspended {
		return fmt.Errorf("process %d is suspended, it must be resumed: %w", h, syscall.EBUSY)
	}
	defer b.forget(h)
	return b.release(dbp)
}

// release detaches from the seized tasks of dbp, which must not be
// suspended. Detaching requires the tracee to be stopped so each task is
// interrupted first.
func (b *Backend) release(dbp *nativeProcess) error {
	var errs []error
	for _, th := range dbp.threadList() {
		if !th.stopped {
			if err := b.stopThread(th); err != nil {
				if errors.Is(err, sys.ESRCH) {
					continue
				}
				errs = append(errs, err)
				continue
			}
		}
		var err error
		b.execPtraceFunc(func() { err = ptraceDetach(th.tid, th.pendingSig) })
		if err != nil && err != sys.ESRCH {
			errs = append(errs, fmt.Errorf("task %d: %w", th.tid, err))
		}
	}
	return errors.Join(errs...)
}

// ThreadList returns every task of the process, including tasks created
// after Attach that are not under control.
func (b *Backend) ThreadList(h proc.Handle) ([]proc.ThreadHandle, error) {
	dbp, err := b.suspendedProcess(h)
	if err != nil {
		return nil, err
	}
	tids, err := taskIDs(b.procRoot, dbp.pid)
	if err != nil {
		return nil, err
	}
	r := make([]proc.ThreadHandle, len(tids))
	for i, tid := range tids {
		r[i] = proc.ThreadHandle(tid)
	}
	return r, nil
}

// ReadMemory reads length bytes at addr. A read crossing into unmapped
// memory returns the bytes before the gap.
func (b *Backend) ReadMemory(h proc.Handle, addr uint64, length int) ([]byte, error) {
	dbp, err := b.suspendedProcess(h)
	if err != nil {
		return nil, err
	}
	data := make([]byte, length)
	n, err := processVmRead(dbp.pid, uintptr(addr), data)
	if err != nil {
		return nil, err
	}
	return data[:n], nil
}
