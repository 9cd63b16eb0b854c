package align

import (
	"fmt"

	"github.com/vk/etp/internal/masm"
)

// FrameKind records why a block was entered.
type FrameKind uint8

const (
	// FrameStart is the sentinel below the entry procedure.
	FrameStart FrameKind = iota
	// FrameExec is a call into a procedure with source.
	FrameExec
	// FrameTrueBranch is the taken true arm of a conditional.
	FrameTrueBranch
	// FrameFalseBranch is the taken false arm of a conditional.
	FrameFalseBranch
)

func (k FrameKind) String() string {
	switch k {
	case FrameStart:
		return "start"
	case FrameExec:
		return "exec"
	case FrameTrueBranch:
		return "true-branch"
	case FrameFalseBranch:
		return "false-branch"
	default:
		return fmt.Sprintf("frame-kind-invalid(%d)", uint8(k))
	}
}

// Frame is one call stack entry: where to resume once the entered block
// runs out of ops.
type Frame struct {
	Kind        FrameKind
	ReturnBlock masm.BlockKey
	ReturnPC    int
}

// topOfStack remembers the top of the operand stack for the last two
// authoritative trace events the engine looked at.
type topOfStack [2]uint64

func (r *topOfStack) roll(v uint64) {
	r[1] = r[0]
	r[0] = v
}

// prior is the value seen one event earlier, i.e. the operand pushed by the
// instruction preceding the one under the cursor.
func (r *topOfStack) prior() uint64 {
	return r[1]
}
