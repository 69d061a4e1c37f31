package proc

import "fmt"

// MaxWindowSize is the largest MemoryWindow the engine will request.
const MaxWindowSize = 64

// MemoryWindow is a read-only copy of a range of the target's memory.
type MemoryWindow struct {
	addr uint64
	data []byte
}

// NewMemoryWindow returns a window over a copy of data, which was read at
// addr.
func NewMemoryWindow(addr uint64, data []byte) MemoryWindow {
	buf := make([]byte, len(data))
	copy(buf, data)
	return MemoryWindow{addr: addr, data: buf}
}

// Addr returns the address of the first byte of the window.
func (w MemoryWindow) Addr() uint64 {
	return w.addr
}

// Len returns the number of bytes in the window.
func (w MemoryWindow) Len() int {
	return len(w.data)
}

// Bytes returns a copy of the window contents.
func (w MemoryWindow) Bytes() []byte {
	buf := make([]byte, len(w.data))
	copy(buf, w.data)
	return buf
}

// Word decodes the i-th machine word of the window.
func (w MemoryWindow) Word(arch *Arch, i int) (uint64, error) {
	sz := arch.PtrSize()
	off := i * sz
	if i < 0 || off+sz > len(w.data) {
		return 0, fmt.Errorf("word %d out of range of %d byte window at %#x", i, len(w.data), w.addr)
	}
	switch sz {
	case 4:
		return uint64(arch.ByteOrder().Uint32(w.data[off:])), nil
	case 8:
		return arch.ByteOrder().Uint64(w.data[off:]), nil
	}
	return 0, fmt.Errorf("unsupported pointer size %d", sz)
}

// readWindow reads length bytes at addr through mem and wraps the result in
// a MemoryWindow.
func readWindow(mem MemoryReader, h Handle, addr uint64, length int) (MemoryWindow, error) {
	if length <= 0 || length > MaxWindowSize {
		return MemoryWindow{}, &MemoryReadError{Addr: addr, Len: length, Err: fmt.Errorf("window length must be between 1 and %d", MaxWindowSize)}
	}
	data, err := mem.ReadMemory(h, addr, length)
	if err != nil {
		return MemoryWindow{}, &MemoryReadError{Addr: addr, Len: length, Err: err}
	}
	if len(data) != length {
		return MemoryWindow{}, &MemoryReadError{Addr: addr, Len: length, Err: fmt.Errorf("short read: %d bytes", len(data))}
	}
	return NewMemoryWindow(addr, data), nil
}
