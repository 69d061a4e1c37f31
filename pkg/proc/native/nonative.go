//go:build !linux

package native

import "github.com/unloop/unloop/pkg/proc"

// Backend is a stub on platforms without ptrace support.
type Backend struct{}

// New returns ErrNativeBackendDisabled.
func New() (*Backend, error) {
	return nil, ErrNativeBackendDisabled
}

func (b *Backend) Close() error { return nil }

func (b *Backend) Attach(int) (proc.Handle, error) { return 0, ErrNativeBackendDisabled }
func (b *Backend) Suspend(proc.Handle) error       { return ErrNativeBackendDisabled }
func (b *Backend) Resume(proc.Handle) error        { return ErrNativeBackendDisabled }
func (b *Backend) Detach(proc.Handle) error        { return ErrNativeBackendDisabled }

func (b *Backend) ThreadList(proc.Handle) ([]proc.ThreadHandle, error) {
	return nil, ErrNativeBackendDisabled
}

func (b *Backend) GetRegisters(proc.ThreadHandle) (proc.Registers, error) {
	return proc.Registers{}, ErrNativeBackendDisabled
}

func (b *Backend) SetRegisters(proc.ThreadHandle, proc.Registers) error {
	return ErrNativeBackendDisabled
}

func (b *Backend) ReadMemory(proc.Handle, uint64, int) ([]byte, error) {
	return nil, ErrNativeBackendDisabled
}
