//go:build linux

package native

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"syscall"

	"github.com/unloop/unloop/pkg/logflags"
	"github.com/unloop/unloop/pkg/proc"
)

// Backend implements proc.Backend on top of ptrace(2).
type Backend struct {
	procRoot string

	mu    sync.Mutex
	procs map[proc.Handle]*nativeProcess

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}
	closed         bool

	log logflags.Logger
}

// nativeProcess is an attached process and the tasks that were seized.
type nativeProcess struct {
	pid       int
	threads   map[int]*nativeThread
	suspended bool
}

type nativeThread struct {
	tid     int
	stopped bool
	// pendingSig is a signal that was intercepted while stopping the
	// thread, it is delivered again when the thread is released.
	pendingSig int
}

func (dbp *nativeProcess) threadList() []*nativeThread {
	r := make([]*nativeThread, 0, len(dbp.threads))
	for _, th := range dbp.threads {
		r = append(r, th)
	}
	sort.Slice(r, func(i, j int) bool { return r[i].tid < r[j].tid })
	return r
}

// New returns an initialized Backend. Before returning, it will also launch
// a goroutine in order to handle ptrace(2) functions. For more information,
// see the documentation on `handlePtraceFuncs`.
func New() (*Backend, error) {
	b := &Backend{
		procRoot:       "/proc",
		procs:          make(map[proc.Handle]*nativeProcess),
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		log:            logflags.NativeLogger(),
	}
	go b.handlePtraceFuncs()
	return b, nil
}

// Close stops the ptrace goroutine. Processes still attached are released
// by the kernel when the tracer exits.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.ptraceChan)
	return nil
}

func (b *Backend) handlePtraceFuncs() {
	// ptrace(2) only accepts requests for a tracee from the thread that
	// seized it, every request is funneled through this locked OS thread.
	runtime.LockOSThread()

	for fn := range b.ptraceChan {
		fn()
		b.ptraceDoneChan <- nil
	}
}

func (b *Backend) execPtraceFunc(fn func()) {
	b.ptraceChan <- fn
	<-b.ptraceDoneChan
}

func (b *Backend) process(h proc.Handle) (*nativeProcess, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dbp, ok := b.procs[h]
	if !ok {
		return nil, fmt.Errorf("process %d is not attached: %w", h, syscall.ESRCH)
	}
	return dbp, nil
}

func (b *Backend) suspendedProcess(h proc.Handle) (*nativeProcess, error) {
	dbp, err := b.process(h)
	if err != nil {
		return nil, err
	}
	if !dbp.suspended {
		return nil, fmt.Errorf("process %d is not suspended: %w", h, syscall.EBUSY)
	}
	return dbp, nil
}

// thread returns the stopped thread referenced by t.
func (b *Backend) thread(t proc.ThreadHandle) (*nativeThread, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, dbp := range b.procs {
		if th, ok := dbp.threads[int(t)]; ok && dbp.suspended && th.stopped {
			return th, nil
		}
	}
	return nil, fmt.Errorf("thread %d is not stopped by this tracer: %w", t, syscall.ESRCH)
}

func (b *Backend) forget(h proc.Handle) {
	b.mu.Lock()
	delete(b.procs, h)
	b.mu.Unlock()
}
