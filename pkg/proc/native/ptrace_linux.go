package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ptraceSeize calls ptrace(PTRACE_SEIZE). Unlike PTRACE_ATTACH the tracee
// keeps running.
func ptraceSeize(tid int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_SEIZE, uintptr(tid), 0, 0, 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceInterrupt calls ptrace(PTRACE_INTERRUPT) on a seized tracee.
func ptraceInterrupt(tid int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_INTERRUPT, uintptr(tid), 0, 0, 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceDetach calls ptrace(PTRACE_DETACH), restarting the tracee and
// delivering sig to it.
func ptraceDetach(tid, sig int) error {
	_, _, err := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_DETACH, uintptr(tid), 1, uintptr(sig), 0, 0)
	if err != syscall.Errno(0) {
		return err
	}
	return nil
}

// ptraceCont executes ptrace PTRACE_CONT
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// remoteIovec is like golang.org/x/sys/unix.Iovec but uses uintptr for the
// base field instead of *byte so that we can use it with addresses that
// belong to the target process.
type remoteIovec struct {
	base uintptr
	len  uintptr
}

// processVmRead calls process_vm_readv
func processVmRead(pid int, addr uintptr, data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	localIov := sys.Iovec{Base: &data[0]}
	localIov.SetLen(len(data))
	remoteIov := remoteIovec{base: addr, len: uintptr(len(data))}
	n, _, err := syscall.Syscall6(sys.SYS_PROCESS_VM_READV, uintptr(pid), uintptr(unsafe.Pointer(&localIov)), 1, uintptr(unsafe.Pointer(&remoteIov)), 1, 0)
	if err != syscall.Errno(0) {
		return 0, err
	}
	return int(n), nil
}
