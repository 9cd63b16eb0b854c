package align

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/ctxlog"
	"github.com/vk/etp/internal/masm"
	"github.com/vk/etp/internal/memshadow"
	"github.com/vk/etp/internal/symbol"
	"github.com/vk/etp/internal/trace"
)

// Reason tells how a successful run ended.
type Reason uint8

const (
	// ReasonReturned means the entry procedure ran to its end.
	ReasonReturned Reason = iota
	// ReasonTraceExhausted means the trace stopped first, as it does when
	// the VM halts on a failed assertion.
	ReasonTraceExhausted
)

func (r Reason) String() string {
	switch r {
	case ReasonReturned:
		return "returned"
	case ReasonTraceExhausted:
		return "trace-exhausted"
	default:
		return fmt.Sprintf("reason-invalid(%d)", uint8(r))
	}
}

// Result summarises a successful run.
type Result struct {
	Entry  string
	Reason Reason
	// Cursor is the index of the first trace event not consumed.
	Cursor         int
	Instructions   int
	Calls          int
	SkippedCalls   int
	Branches       int
	MemoryWarnings int
}

// Engine aligns one source arena with one trace. An Engine is good for a
// single Run and is not safe for concurrent use.
type Engine struct {
	arena  *masm.Arena
	events []trace.Event
	policy config.Alignment
	sink   Sink
	cache  *symbol.Cache
	shadow *memshadow.Shadow
	logger *slog.Logger

	block  masm.BlockKey
	pc     int
	stack  []Frame
	cursor int
	// observed is the index of the next event the memory shadow has not
	// seen yet.
	observed int
	tos      topOfStack
	depth    int

	pendingSkip   bool
	pendingWindow bool
	windowAddr    uint64

	result Result
}

// New creates an engine over a parsed arena and trace, reporting to sink.
func New(arena *masm.Arena, events []trace.Event, policy config.Alignment, sink Sink) *Engine {
	return &Engine{
		arena:  arena,
		events: events,
		policy: policy,
		sink:   sink,
		cache:  symbol.NewCache(symbol.Demangler{DropHash: policy.DropSymbolHash}, policy.SymbolCacheSize),
		shadow: memshadow.New(),
		block:  masm.NoBlock,
	}
}

// Shadow exposes the memory shadow built during the run.
func (e *Engine) Shadow() *memshadow.Shadow {
	return e.shadow
}

// CallDepth returns the number of frames on the call stack, including the
// sentinel below the entry procedure.
func (e *Engine) CallDepth() int {
	return len(e.stack)
}

// Position returns the current block and program counter.
func (e *Engine) Position() (masm.BlockKey, int) {
	return e.block, e.pc
}

// Run resolves entry (see ResolveEntry) and aligns the trace from there
// until the entry procedure returns or the trace runs out. Any emitted
// events stay emitted when Run fails part way.
func (e *Engine) Run(ctx context.Context, entry string) (*Result, error) {
	e.logger = ctxlog.FromContext(ctx)

	key, err := e.ResolveEntry(ctx, entry)
	if err != nil {
		return nil, err
	}
	name, _ := e.arena.Block(key).Name()

	e.block, e.pc = key, 0
	e.stack = []Frame{{Kind: FrameStart, ReturnBlock: key, ReturnPC: e.arena.Block(key).Len()}}
	e.result = Result{Entry: name}
	e.emit(Event{Kind: EventEntry, Func: name})

	if entry != "" {
		if err := e.seekEntry(name); err != nil {
			return nil, err
		}
		e.logger.Debug("Fast-forwarded trace to entry.", "entry", name, "cursor", e.cursor)
	}
	e.observed = e.cursor
	e.depth = 1

	for {
		done, err := e.step()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}

	e.result.Cursor = e.cursor
	e.emit(Event{Kind: EventEnd, Reason: e.result.Reason})

	res := e.result
	return &res, nil
}

// step performs one iteration of the alignment loop and reports whether
// the run is over.
func (e *Engine) step() (bool, error) {
	blk := e.arena.Block(e.block)
	if e.pc >= blk.Len() {
		return e.leave()
	}

	if e.pendingSkip {
		if done, err := e.skipOpaque(); done || err != nil {
			return done, err
		}
	}

	if e.pendingWindow {
		e.pendingWindow = false
		e.emit(Event{Kind: EventMemoryWindow, Depth: e.depth, Window: e.shadow.Window(e.windowAddr)})
	}

	if e.cursor >= len(e.events) {
		return e.exhausted(), nil
	}
	e.observeThrough(e.cursor)

	ev := &e.events[e.cursor]
	if !ev.Authoritative() {
		e.cursor++
		return false, nil
	}

	op := blk.OpAt(e.pc)
	if op.IsPlain() && slices.Contains(e.policy.SourceOnlyOpcodes, op.Opcode) {
		e.pc++
		return false, nil
	}

	e.tos.roll(ev.Top(0))

	if op.Equal(ev.Op) {
		e.emit(Event{Kind: EventInstruction, Depth: e.depth, Op: op, Stack: ev.Stack, TraceFunc: ev.Func})
		e.pendingWindow = e.access(op) != memshadow.AccessNone
		e.windowAddr = e.tos.prior()
		e.result.Instructions++
		e.pc++
		e.cursor++
		return false, nil
	}

	switch op.Kind {
	case masm.OpPlain:
		if slices.Contains(e.policy.CallOpcodes, op.Opcode) {
			return false, e.call(op, ev)
		}
		return false, e.desync(op, ev)
	case masm.OpConditional:
		e.branch(op)
		return false, nil
	default:
		return false, fmt.Errorf("unexpected op kind %s at pc %d", op.Kind, e.pc)
	}
}

// leave handles a block that has run out of ops. The sentinel frame is
// never popped: reaching it ends the run.
func (e *Engine) leave() (bool, error) {
	if len(e.stack) == 0 {
		return true, fmt.Errorf("%w: leaving block %s", ErrCallStackUnderflow, e.block)
	}
	top := e.stack[len(e.stack)-1]

	switch top.Kind {
	case FrameStart:
		e.logger.Debug("Entry procedure returned.", "entry", e.result.Entry, "cursor", e.cursor)
		e.emit(Event{Kind: EventEntryReturned, Depth: e.depth, Func: e.result.Entry})
		e.result.Reason = ReasonReturned
		return true, nil

	case FrameExec:
		e.pop(top)
		name, err := e.currentFunc()
		if err != nil {
			return true, err
		}
		e.emit(Event{Kind: EventReturn, Depth: e.depth, Func: name})

	case FrameTrueBranch:
		e.pop(top)
		e.depth--
		e.emit(Event{Kind: EventElse, Depth: e.depth})
		e.emit(Event{Kind: EventArmSkipped, Depth: e.depth, Arm: ArmFalse})
		e.emit(Event{Kind: EventBranchEnd, Depth: e.depth})

	case FrameFalseBranch:
		e.pop(top)
		e.depth--
		e.emit(Event{Kind: EventBranchEnd, Depth: e.depth})

	default:
		return true, fmt.Errorf("unexpected frame kind %s", top.Kind)
	}
	return false, nil
}

func (e *Engine) pop(f Frame) {
	e.stack = e.stack[:len(e.stack)-1]
	e.block, e.pc = f.ReturnBlock, f.ReturnPC
	e.logger.Debug("Popped frame.", "kind", f.Kind, "block", f.ReturnBlock, "pc", f.ReturnPC, "depth", len(e.stack))
}

func (e *Engine) enter(kind FrameKind, key masm.BlockKey) {
	e.stack = append(e.stack, Frame{Kind: kind, ReturnBlock: e.block, ReturnPC: e.pc + 1})
	e.block, e.pc = key, 0
	e.logger.Debug("Pushed frame.", "kind", kind, "block", key, "depth", len(e.stack))
}

// skipOpaque moves the cursor past the events of a callee without source,
// up to the first event owned by the function control returns to.
func (e *Engine) skipOpaque() (bool, error) {
	target, err := e.currentFunc()
	if err != nil {
		return true, err
	}
	from := e.cursor
	for {
		e.observeThrough(e.cursor)
		e.cursor++
		if e.cursor >= len(e.events) {
			return e.exhausted(), nil
		}
		fn, err := e.cache.Demangle(e.events[e.cursor].Func)
		if err != nil {
			return true, fmt.Errorf("demangling trace event %d: %w", e.cursor, err)
		}
		if fn == target {
			break
		}
	}
	e.pendingSkip = false
	e.logger.Debug("Resynchronised after opaque call.", "func", target, "skipped", e.cursor-from)
	return false, nil
}

func (e *Engine) call(op masm.Op, ev *trace.Event) error {
	if !op.HasArg {
		return e.desync(op, ev)
	}
	e.emit(Event{Kind: EventCall, Depth: e.depth, Op: op, TraceFunc: ev.Func})

	callee := strings.TrimPrefix(op.Arg, e.policy.CallTargetPrefix)
	e.pendingWindow = e.policy.MemIntrinsicPrefix != "" && strings.HasPrefix(callee, e.policy.MemIntrinsicPrefix)
	e.windowAddr = e.tos.prior()

	key, found := e.arena.Find(callee)
	switch {
	case found && e.hidden(callee):
		e.emit(Event{Kind: EventCallSkipped, Depth: e.depth, Func: callee, Hidden: true})
		e.result.SkippedCalls++
		e.pc++
	case found:
		e.enter(FrameExec, key)
		e.emit(Event{Kind: EventEnter, Depth: e.depth, Func: callee})
		e.result.Calls++
	default:
		e.emit(Event{Kind: EventCallSkipped, Depth: e.depth, Func: callee})
		e.result.SkippedCalls++
		e.pc++
		e.pendingSkip = true
	}
	return nil
}

func (e *Engine) hidden(callee string) bool {
	if !e.policy.SkipHiddenCallees || e.policy.HiddenCalleePrefix == "" {
		return false
	}
	return strings.HasPrefix(symbol.Parse(callee).Last(), e.policy.HiddenCalleePrefix)
}

// branch descends into the arm selected by the operand pushed before the
// conditional: nonzero takes the true arm.
func (e *Engine) branch(op masm.Op) {
	e.result.Branches++
	if e.tos.prior() != 0 {
		e.emit(Event{Kind: EventBranch, Depth: e.depth, Arm: ArmTrue})
		e.depth++
		e.enter(FrameTrueBranch, op.True)
		return
	}
	e.emit(Event{Kind: EventBranch, Depth: e.depth, Arm: ArmFalse})
	e.emit(Event{Kind: EventArmSkipped, Depth: e.depth, Arm: ArmTrue})
	e.emit(Event{Kind: EventElse, Depth: e.depth})
	e.depth++
	e.enter(FrameFalseBranch, op.False)
}

// currentFunc names the procedure the engine is in: the current block if
// it is named, else the nearest named block on the call stack.
func (e *Engine) currentFunc() (string, error) {
	if name, ok := e.arena.Block(e.block).Name(); ok {
		return name, nil
	}
	for i := len(e.stack) - 1; i >= 0; i-- {
		if name, ok := e.arena.Block(e.stack[i].ReturnBlock).Name(); ok {
			return name, nil
		}
	}
	return "", ErrNoFunction
}

func (e *Engine) desync(op masm.Op, ev *trace.Event) error {
	fn, _ := e.currentFunc()
	return &DesyncError{
		SourceFunc: fn,
		SourceOp:   op,
		PC:         e.pc,
		TraceFunc:  ev.Func,
		TraceOp:    ev.Op,
		TraceRawOp: ev.RawOp,
		Cursor:     e.cursor,
	}
}

func (e *Engine) exhausted() bool {
	e.logger.Debug("Trace exhausted before entry returned.", "entry", e.result.Entry, "depth", len(e.stack))
	e.result.Reason = ReasonTraceExhausted
	return true
}

// observeThrough feeds every event up to and including index i to the
// memory shadow, once each.
func (e *Engine) observeThrough(i int) {
	for ; e.observed <= i && e.observed < len(e.events); e.observed++ {
		ev := &e.events[e.observed]
		var prev *trace.Event
		if e.observed > 0 {
			prev = &e.events[e.observed-1]
		}
		m, bad := e.shadow.Observe(e.access(ev.Op), ev, prev)
		if !bad {
			continue
		}
		e.result.MemoryWarnings++
		e.logger.Warn("Memory mismatch.", "addr", m.Addr, "recorded", m.Recorded, "loaded", m.Loaded, "event", e.observed)
		e.emit(Event{Kind: EventMemoryWarning, Depth: e.depth, Mismatch: m})
	}
}

func (e *Engine) access(op masm.Op) memshadow.Access {
	switch {
	case !op.IsPlain():
		return memshadow.AccessNone
	case slices.Contains(e.policy.LoadOpcodes, op.Opcode):
		return memshadow.AccessLoad
	case slices.Contains(e.policy.StoreOpcodes, op.Opcode):
		return memshadow.AccessStore
	default:
		return memshadow.AccessNone
	}
}

func (e *Engine) emit(ev Event) {
	if e.sink != nil {
		e.sink.Emit(ev)
	}
}
