package proc

import (
	"encoding/binary"
	"errors"

	"golang.org/x/arch/arm64/arm64asm"
)

// Arch describes the properties of the target architecture the control
// flow strategies depend on.
type Arch struct {
	Name string

	ptrSize          int
	instructionWidth uint64
	byteOrder        binary.ByteOrder

	// asmDecode decodes the instruction in mem located at pc, returning its
	// text and whether it is an unconditional branch to itself.
	asmDecode func(mem []byte, pc uint64) (text string, selfBranch bool, err error)
}

// ARM64Arch returns an initialized ARM64 struct.
// Instructions are a fixed 4 bytes wide and the frame pointer (X29) points
// to the frame record {saved X29, saved X30} pushed by the prologue.
func ARM64Arch() *Arch {
	return &Arch{
		Name:             "arm64",
		ptrSize:          8,
		instructionWidth: 4,
		byteOrder:        binary.LittleEndian,
		asmDecode:        arm64AsmDecode,
	}
}

// PtrSize returns the size of a pointer on this architecture.
func (a *Arch) PtrSize() int {
	return a.ptrSize
}

// InstructionWidth returns the size in bytes of every instruction.
func (a *Arch) InstructionWidth() uint64 {
	return a.instructionWidth
}

// FrameRecordSize returns the size of the saved frame pointer and link
// register pair the frame pointer points to.
func (a *Arch) FrameRecordSize() int {
	return 2 * a.ptrSize
}

// ByteOrder returns the byte order used to decode memory words.
func (a *Arch) ByteOrder() binary.ByteOrder {
	return a.byteOrder
}

var errNoDecoder = errors.New("no instruction decoder for this architecture")

// Disassemble decodes the instruction at the start of mem, which was read
// from address pc.
func (a *Arch) Disassemble(mem []byte, pc uint64) (string, bool, error) {
	if a.asmDecode == nil {
		return "", false, errNoDecoder
	}
	return a.asmDecode(mem, pc)
}

func arm64AsmDecode(mem []byte, pc uint64) (string, bool, error) {
	inst, err := arm64asm.Decode(mem)
	if err != nil {
		return "", false, err
	}
	selfBranch := false
	if inst.Op == arm64asm.B && len(inst.Args) > 0 {
		// B and B.cond share an opcode, only the unconditional form has a
		// PC relative address as its first argument.
		if rel, isrel := inst.Args[0].(arm64asm.PCRel); isrel && rel == 0 {
			selfBranch = true
		}
	}
	return arm64asm.GNUSyntax(inst), selfBranch, nil
}
