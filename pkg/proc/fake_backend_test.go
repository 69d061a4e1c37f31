package proc

import (
	"encoding/binary"
	"fmt"
	"syscall"
)

// fakeBackend simulates a target process. Memory is a map of byte
// addresses, calls are recorded in order.
type fakeBackend struct {
	pid     int
	threads []ThreadHandle
	regs    Registers
	mem     map[uint64]byte

	attachErr, suspendErr, resumeErr, detachErr error
	listErr, getErr, setErr, readErr            error

	calls []string
}

func newFakeBackend(pid int) *fakeBackend {
	return &fakeBackend{
		pid:     pid,
		threads: []ThreadHandle{ThreadHandle(pid)},
		mem:     make(map[uint64]byte),
	}
}

func (b *fakeBackend) record(format string, args ...interface{}) {
	b.calls = append(b.calls, fmt.Sprintf(format, args...))
}

func (b *fakeBackend) poke64(addr, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	for i := range buf {
		b.mem[addr+uint64(i)] = buf[i]
	}
}

func (b *fakeBackend) poke32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for i := range buf {
		b.mem[addr+uint64(i)] = buf[i]
	}
}

func (b *fakeBackend) Attach(pid int) (Handle, error) {
	b.record("attach")
	if b.attachErr != nil {
		return 0, b.attachErr
	}
	if pid != b.pid {
		return 0, syscall.ESRCH
	}
	return Handle(pid), nil
}

func (b *fakeBackend) Suspend(h Handle) error {
	b.record("suspend")
	return b.suspendErr
}

func (b *fakeBackend) Resume(h Handle) error {
	b.record("resume")
	return b.resumeErr
}

func (b *fakeBackend) Detach(h Handle) error {
	b.record("detach")
	return b.detachErr
}

func (b *fakeBackend) ThreadList(h Handle) ([]ThreadHandle, error) {
	b.record("threads")
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.threads, nil
}

func (b *fakeBackend) GetRegisters(t ThreadHandle) (Registers, error) {
	b.record("getregs")
	if b.getErr != nil {
		return Registers{}, b.getErr
	}
	return b.regs, nil
}

func (b *fakeBackend) SetRegisters(t ThreadHandle, regs Registers) error {
	b.record("setregs")
	if b.setErr != nil {
		return b.setErr
	}
	b.regs = regs
	return nil
}

func (b *fakeBackend) ReadMemory(h Handle, addr uint64, length int) ([]byte, error) {
	b.record("read %#x %d", addr, length)
	if b.readErr != nil {
		return nil, b.readErr
	}
	out := make([]byte, length)
	for i := range out {
		v, ok := b.mem[addr+uint64(i)]
		if !ok {
			return nil, syscall.EFAULT
		}
		out[i] = v
	}
	return out, nil
}
