package proc

import "fmt"

// OpaqueRegs is the number of general purpose register words carried by a
// Registers snapshot that the engine never interprets. On arm64 these are
// X0 to X28 followed by PSTATE.
const OpaqueRegs = 30

// Registers is the saved register set of one stopped thread.
// It is captured by RegisterAccessor.GetRegisters, modified locally and
// written back as a whole by RegisterAccessor.SetRegisters.
type Registers struct {
	FP uint64 // frame pointer (X29)
	LR uint64 // link register (X30)
	SP uint64
	PC uint64

	Opaque [OpaqueRegs]uint64
}

func (r Registers) String() string {
	return fmt.Sprintf("FP=%#016x LR=%#016x SP=%#016x PC=%#016x", r.FP, r.LR, r.SP, r.PC)
}

// Slice returns the interpreted registers as a list of (name, value) pairs,
// in the order they are displayed.
func (r Registers) Slice() []Register {
	return []Register{
		{"FP", r.FP},
		{"LR", r.LR},
		{"SP", r.SP},
		{"PC", r.PC},
	}
}

// Register represents a single named register value.
type Register struct {
	Name  string
	Value uint64
}

// OpaqueSlice returns the registers that are carried through unchanged,
// named after their arm64 counterparts.
func (r Registers) OpaqueSlice() []Register {
	regs := make([]Register, 0, OpaqueRegs)
	for i, v := range r.Opaque[:OpaqueRegs-1] {
		regs = append(regs, Register{fmt.Sprintf("X%d", i), v})
	}
	return append(regs, Register{"PSTATE", r.Opaque[OpaqueRegs-1]})
}
