// Package trace holds the execution side of an alignment: the ordered
// events a VM interpreter logged while running a program.
package trace

import (
	"fmt"

	"github.com/vk/etp/internal/masm"
)

// Event is one recorded VM micro-step.
type Event struct {
	// Func is the owning function symbol, usually still mangled.
	Func string
	// RawOp is the VM-level operation text as printed by the interpreter.
	RawOp string
	// Op is the source-level instruction the step belongs to.
	Op    masm.Op
	Cycle uint64
	Total uint64
	// Stack is the operand stack after the step, top first.
	Stack []uint64
}

// Authoritative reports whether e is the final cycle of its instruction.
// Earlier cycles have no source-level counterpart.
func (e *Event) Authoritative() bool {
	return e.Cycle == e.Total
}

// Top returns the stack value at depth i (0 is the top), or 0 when the
// snapshot is shorter than that.
func (e *Event) Top(i int) uint64 {
	if i < 0 || i >= len(e.Stack) {
		return 0
	}
	return e.Stack[i]
}

func (e *Event) String() string {
	return fmt.Sprintf("%s: %s (cycle %d/%d)", e.Func, e.Op, e.Cycle, e.Total)
}
