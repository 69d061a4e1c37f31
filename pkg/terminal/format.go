package terminal

import (
	"fmt"
	"strings"

	"github.com/unloop/unloop/pkg/proc"
)

func formatRegisters(b *strings.Builder, regs []proc.Register, colors bool) {
	for _, r := range regs {
		fmt.Fprintf(b, "%s = %#016x\n", highlight(fmt.Sprintf("%-6s", r.Name), ansiBlue, colors), r.Value)
	}
}

func formatInspection(insp proc.Inspection, showOpaque, colors bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Process %d, thread %d\n", insp.Pid, insp.Thread)
	formatRegisters(&b, insp.Regs.Slice(), colors)
	if showOpaque {
		formatRegisters(&b, insp.Regs.OpaqueSlice(), colors)
	}
	if insp.Instruction != "" {
		fmt.Fprintf(&b, "%#016x:\t%s\n", insp.Regs.PC, insp.Instruction)
	}
	if insp.SelfBranch {
		b.WriteString(highlight("Thread is spinning on a branch to itself", ansiYellow, colors))
		b.WriteByte('\n')
	}
	return b.String()
}

// FormatResult describes what a finished session did to the target.
func FormatResult(res *proc.Result, colors bool) string {
	if res == nil {
		return ""
	}
	var b strings.Builder
	if !res.Written {
		fmt.Fprintf(&b, "Process %d resumed, no changes made\n", res.Pid)
		return b.String()
	}
	fmt.Fprintf(&b, "Process %d resumed after %s\n", res.Pid, highlight(res.Strategy.String(), ansiGreen, colors))
	before, after := res.Before.Slice(), res.After.Slice()
	for i := range after {
		if before[i].Value == after[i].Value {
			continue
		}
		fmt.Fprintf(&b, "%s %#016x -> %#016x\n", highlight(fmt.Sprintf("%-6s", after[i].Name), ansiBlue, colors), before[i].Value, after[i].Value)
	}
	return b.String()
}
