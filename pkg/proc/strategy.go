package proc

import (
	"fmt"
	"strings"
)

// Strategy is a register transformation that moves a stuck thread out of
// the code it is looping in.
type Strategy uint8

const (
	StrategyNone    Strategy = iota // resume without changing anything
	InstructionSkip                 // advance PC past one instruction
	FrameUnwind                     // return to the caller of the current frame
)

func (s Strategy) String() string {
	switch s {
	case InstructionSkip:
		return "instruction skip"
	case FrameUnwind:
		return "frame unwind"
	default:
		return "none"
	}
}

// ParseStrategy maps the answer to the strategy prompt to a Strategy: a
// line starting with "1" selects InstructionSkip, "2" FrameUnwind, anything
// else StrategyNone. Only the line terminator is stripped, " 1" is not a
// valid choice.
func ParseStrategy(choice string) Strategy {
	choice = strings.TrimRight(choice, "\r\n")
	switch {
	case strings.HasPrefix(choice, "1"):
		return InstructionSkip
	case strings.HasPrefix(choice, "2"):
		return FrameUnwind
	default:
		return StrategyNone
	}
}

// SkipInstruction returns regs with PC advanced by one instruction. The call
// stack is left alone, so a thread spinning on a branch to itself falls
// through to the next instruction.
func SkipInstruction(arch *Arch, regs Registers) Registers {
	regs.PC += arch.InstructionWidth()
	return regs
}

// UnwindFrame pops the frame FP points to. frame must be the frame record
// read at FP: the caller's frame pointer followed by the return address.
//
// This assumes the standard frame pointer chain; frames without a prologue
// (leaf functions) produce garbage and are not detected.
func UnwindFrame(arch *Arch, regs Registers, frame MemoryWindow) (Registers, error) {
	if frame.Addr() != regs.FP {
		return regs, fmt.Errorf("frame record read at %#x, frame pointer is %#x", frame.Addr(), regs.FP)
	}
	savedFP, err := frame.Word(arch, 0)
	if err != nil {
		return regs, err
	}
	savedLR, err := frame.Word(arch, 1)
	if err != nil {
		return regs, err
	}
	regs.SP = regs.FP + uint64(arch.FrameRecordSize())
	regs.FP = savedFP
	regs.LR = savedLR
	regs.PC = savedLR
	return regs, nil
}

// apply runs strategy s on regs, reading the frame record through mem when
// it needs one.
func (s Strategy) apply(arch *Arch, mem MemoryReader, h Handle, regs Registers) (Registers, error) {
	switch s {
	case InstructionSkip:
		return SkipInstruction(arch, regs), nil
	case FrameUnwind:
		frame, err := readWindow(mem, h, regs.FP, arch.FrameRecordSize())
		if err != nil {
			return regs, err
		}
		return UnwindFrame(arch, regs, frame)
	}
	return regs, nil
}
