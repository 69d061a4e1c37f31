package native

import (
	"debug/elf"
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"

	"github.com/unloop/unloop/pkg/proc"
)

const _AARCH64_GREGS_SIZE = 34 * 8

func ptraceGetGRegs(tid int, regs *arm64PtraceRegs) (err error) {
	iov := sys.Iovec{Base: (*byte)(unsafe.Pointer(regs)), Len: _AARCH64_GREGS_SIZE}
	_, _, err = syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_GETREGSET, uintptr(tid), uintptr(elf.NT_PRSTATUS), uintptr(unsafe.Pointer(&iov)), 0, 0)
	if err == syscall.Errno(0) {
		err = nil
	}
	return
}

func ptraceSetGRegs(tid int, regs *arm64PtraceRegs) (err error) {
	iov := sys.Iovec{Base: (*byte)(unsafe.Pointer(regs)), Len: _AARCH64_GREGS_SIZE}
	_, _, err = syscall.Syscall6(syscall.SYS_PTRACE, sys.PTRACE_SETREGSET, uintptr(tid), uintptr(elf.NT_PRSTATUS), uintptr(unsafe.Pointer(&iov)), 0, 0)
	if err == syscall.Errno(0) {
		err = nil
	}
	return
}

// GetRegisters reads the general purpose registers of a stopped thread.
func (b *Backend) GetRegisters(t proc.ThreadHandle) (proc.Registers, error) {
	th, err := b.thread(t)
	if err != nil {
		return proc.Registers{}, err
	}
	var regs arm64PtraceRegs
	b.execPtraceFunc(func() { err = ptraceGetGRegs(th.tid, &regs) })
	if err != nil {
		return proc.Registers{}, err
	}
	return regs.toRegisters(), nil
}

// SetRegisters replaces the general purpose registers of a stopped thread.
func (b *Backend) SetRegisters(t proc.ThreadHandle, r proc.Registers) error {
	th, err := b.thread(t)
	if err != nil {
		return err
	}
	regs := fromRegisters(r)
	b.execPtraceFunc(func() { err = ptraceSetGRegs(th.tid, regs) })
	return err
}
