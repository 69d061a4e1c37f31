package proc

// Handle identifies an attached process. It is valid between a successful
// Attach and the matching Resume or Detach.
type Handle int

// ThreadHandle references one thread of a suspended process. It does not own
// the thread and is only valid while the process stays suspended.
type ThreadHandle int

// Attacher owns the attach/suspend/resume lifecycle of a target.
type Attacher interface {
	// Attach requests control of the process identified by pid.
	Attach(pid int) (Handle, error)
	// Suspend halts all execution in the target.
	Suspend(h Handle) error
	// Resume restarts the target and releases the handle.
	Resume(h Handle) error
	// Detach releases the handle of a process that is not suspended.
	Detach(h Handle) error
}

// ThreadLister lists the threads of a suspended target.
type ThreadLister interface {
	ThreadList(h Handle) ([]ThreadHandle, error)
}

// RegisterAccessor reads and replaces the register set of a stopped thread.
// Calling it on a running thread is undefined, callers must sequence it
// inside a suspension.
type RegisterAccessor interface {
	GetRegisters(t ThreadHandle) (Registers, error)
	SetRegisters(t ThreadHandle, regs Registers) error
}

// MemoryReader reads bytes from the address space of a suspended target.
type MemoryReader interface {
	ReadMemory(h Handle, addr uint64, length int) ([]byte, error)
}

// Backend is the capability surface a process control implementation
// provides to the engine.
type Backend interface {
	Attacher
	ThreadLister
	RegisterAccessor
	MemoryReader
}
