//go:build linux && !arm64

package native

import "github.com/unloop/unloop/pkg/proc"

// GetRegisters returns ErrUnsupportedArch.
func (b *Backend) GetRegisters(t proc.ThreadHandle) (proc.Registers, error) {
	return proc.Registers{}, ErrUnsupportedArch
}

// SetRegisters returns ErrUnsupportedArch.
func (b *Backend) SetRegisters(t proc.ThreadHandle, r proc.Registers) error {
	return ErrUnsupportedArch
}
