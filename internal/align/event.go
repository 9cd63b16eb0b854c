package align

import (
	"fmt"

	"github.com/vk/etp/internal/masm"
	"github.com/vk/etp/internal/memshadow"
)

// EventKind discriminates the logical events reported to a Sink.
type EventKind uint8

const (
	// EventEntry opens the run with the entry procedure's name.
	EventEntry EventKind = iota
	// EventInstruction is a source op matched against a trace event.
	EventInstruction
	// EventCall is a call instruction, reported before it is resolved.
	EventCall
	// EventEnter follows EventCall when the callee has source.
	EventEnter
	// EventCallSkipped follows EventCall when the callee is not traced
	// through source, either hidden or opaque.
	EventCallSkipped
	// EventReturn reports control returning to a caller.
	EventReturn
	// EventBranch opens a conditional.
	EventBranch
	// EventArmSkipped marks the untaken arm of a conditional.
	EventArmSkipped
	// EventElse separates the true and false arms.
	EventElse
	// EventBranchEnd closes a conditional.
	EventBranchEnd
	// EventMemoryWarning reports a load disagreeing with the memory shadow.
	EventMemoryWarning
	// EventMemoryWindow shows the shadow around an address just accessed.
	EventMemoryWindow
	// EventEntryReturned reports the entry procedure returning.
	EventEntryReturned
	// EventEnd closes the run.
	EventEnd
)

var eventKindNames = [...]string{
	EventEntry:         "entry",
	EventInstruction:   "instruction",
	EventCall:          "call",
	EventEnter:         "enter",
	EventCallSkipped:   "call-skipped",
	EventReturn:        "return",
	EventBranch:        "branch",
	EventArmSkipped:    "arm-skipped",
	EventElse:          "else",
	EventBranchEnd:     "branch-end",
	EventMemoryWarning: "memory-warning",
	EventMemoryWindow:  "memory-window",
	EventEntryReturned: "entry-returned",
	EventEnd:           "end",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("event-kind-invalid(%d)", uint8(k))
}

// Arm names one side of a conditional.
type Arm uint8

const (
	ArmTrue Arm = iota
	ArmFalse
)

func (a Arm) String() string {
	if a == ArmTrue {
		return "true"
	}
	return "false"
}

// Event is one logical step of the reconstructed trace. Which fields are
// set depends on Kind.
type Event struct {
	Kind EventKind
	// Depth is the conditional nesting level, starting at 1 inside the
	// entry procedure.
	Depth int
	// Func is a display name: the entry, the entered callee, the caller
	// returned to, or the skipped callee.
	Func string
	// Op and Stack describe an instruction; Stack is nil for EventCall.
	Op    masm.Op
	Stack []uint64
	// TraceFunc is the owning function symbol of a matched trace event.
	TraceFunc string
	Arm       Arm
	// Hidden is set on EventCallSkipped for callees the policy treats as
	// never traced.
	Hidden   bool
	Mismatch memshadow.Mismatch
	Window   memshadow.Window
	Reason   Reason
}

// Sink receives the events of a run in order.
type Sink interface {
	Emit(ev Event)
}

// Recorder is a Sink that keeps every event.
type Recorder struct {
	Events []Event
}

// Emit implements Sink.
func (r *Recorder) Emit(ev Event) {
	r.Events = append(r.Events, ev)
}

// Kinds returns the kinds of the recorded events, in order.
func (r *Recorder) Kinds() []EventKind {
	kinds := make([]EventKind, len(r.Events))
	for i, ev := range r.Events {
		kinds[i] = ev.Kind
	}
	return kinds
}
