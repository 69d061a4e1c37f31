package native

import "github.com/unloop/unloop/pkg/proc"

// arm64PtraceRegs is the struct used by the linux kernel to return the
// general purpose registers for ARM64 CPUs (struct user_pt_regs).
type arm64PtraceRegs struct {
	Regs   [31]uint64
	Sp     uint64
	Pc     uint64
	Pstate uint64
}

const (
	arm64FPRegNum = 29
	arm64LRRegNum = 30

	opaquePstate = proc.OpaqueRegs - 1
)

// toRegisters maps X29 and X30 to FP and LR, X0-X28 and PSTATE travel
// untouched in Opaque.
func (r *arm64PtraceRegs) toRegisters() proc.Registers {
	regs := proc.Registers{
		FP: r.Regs[arm64FPRegNum],
		LR: r.Regs[arm64LRRegNum],
		SP: r.Sp,
		PC: r.Pc,
	}
	copy(regs.Opaque[:arm64FPRegNum], r.Regs[:arm64FPRegNum])
	regs.Opaque[opaquePstate] = r.Pstate
	return regs
}

func fromRegisters(regs proc.Registers) *arm64PtraceRegs {
	r := &arm64PtraceRegs{Sp: regs.SP, Pc: regs.PC, Pstate: regs.Opaque[opaquePstate]}
	copy(r.Regs[:arm64FPRegNum], regs.Opaque[:arm64FPRegNum])
	r.Regs[arm64FPRegNum] = regs.FP
	r.Regs[arm64LRRegNum] = regs.LR
	return r
}
