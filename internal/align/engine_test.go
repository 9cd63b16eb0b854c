package align

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/masm"
	"github.com/vk/etp/internal/testutil"
	"github.com/vk/etp/internal/trace"
)

func policy() config.Alignment {
	return config.Default().Alignment
}

func ev(fn string, op masm.Op, stack ...uint64) trace.Event {
	return trace.Event{Func: fn, RawOp: op.Opcode, Op: op, Cycle: 1, Total: 1, Stack: stack}
}

func push(v string) masm.Op { return masm.PlainArg("push", v) }

func exec(target string) masm.Op { return masm.PlainArg("exec", "::"+target) }

// moduleArena builds module m from name/ops pairs. Arms must be inserted by
// the caller beforehand.
func moduleArena(a *masm.Arena, procs map[string][]masm.Op, order ...string) *masm.Arena {
	var keys []masm.BlockKey
	for _, name := range order {
		keys = append(keys, a.Insert(masm.NewBlock(name, procs[name])))
	}
	a.PrefixModule("m", keys)
	return a
}

func TestEngine_SingleNoop(t *testing.T) {
	// --- Arrange ---
	arena := moduleArena(masm.NewArena(), map[string][]masm.Op{
		"main": {masm.Plain("noop")},
	}, "main")
	events := []trace.Event{ev("m::main", masm.Plain("noop"), 0)}
	rec := &Recorder{}
	e := New(arena, events, policy(), rec)

	// --- Act ---
	res, err := e.Run(testutil.Context(t), "main")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventEntry, EventInstruction, EventEntryReturned, EventEnd}, rec.Kinds())
	assert.Equal(t, "m::main", rec.Events[0].Func)
	assert.Equal(t, masm.Plain("noop"), rec.Events[1].Op)
	assert.Equal(t, 1, rec.Events[1].Depth)
	assert.Equal(t, ReasonReturned, res.Reason)
	assert.Equal(t, 1, res.Instructions)
	assert.Equal(t, 1, res.Cursor)
	assert.Equal(t, 1, e.CallDepth(), "only the sentinel frame remains")
}

func TestEngine_OpaqueCalleeResync(t *testing.T) {
	// --- Arrange ---
	arena := moduleArena(masm.NewArena(), map[string][]masm.Op{
		"main": {push("1"), exec("m::missing"), push("2")},
	}, "main")
	const mainSym = "_ZN1m4mainE"
	const calleeSym = "_ZN10intrinsics3foo3barE"
	events := []trace.Event{
		ev(mainSym, push("1"), 1),
		ev(calleeSym, masm.Plain("add"), 3),
		{Func: calleeSym, Op: masm.Plain("mul"), Cycle: 1, Total: 2, Stack: []uint64{3}},
		ev(calleeSym, masm.Plain("mul"), 9),
		ev(mainSym, push("2"), 2, 9),
	}
	rec := &Recorder{}
	e := New(arena, events, policy(), rec)

	// --- Act ---
	_, err := e.Run(testutil.Context(t), "")
	require.Error(t, err, "no run/init entry can be inferred from m::main")
	assert.ErrorIs(t, err, ErrNoDefaultEntry)

	rec = &Recorder{}
	e = New(arena, events, policy(), rec)
	res, err := e.Run(testutil.Context(t), "main")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []EventKind{
		EventEntry,
		EventInstruction,
		EventCall,
		EventCallSkipped,
		EventInstruction,
		EventEntryReturned,
		EventEnd,
	}, rec.Kinds())
	assert.Equal(t, "m::missing", rec.Events[3].Func)
	assert.False(t, rec.Events[3].Hidden)
	assert.Equal(t, push("2"), rec.Events[4].Op)
	assert.Equal(t, mainSym, rec.Events[4].TraceFunc)
	assert.Equal(t, 1, res.SkippedCalls)
	assert.Equal(t, len(events), res.Cursor)
	assert.Equal(t, ReasonReturned, res.Reason)
	assert.Equal(t, 1, e.CallDepth())
}

func TestEngine_EnterAndReturn(t *testing.T) {
	// --- Arrange ---
	arena := moduleArena(masm.NewArena(), map[string][]masm.Op{
		"main":   {push("0"), exec("m::helper"), push("2")},
		"helper": {push("1")},
	}, "main", "helper")
	events := []trace.Event{
		ev("m::main", push("0"), 0),
		ev("m::helper", push("1"), 1),
		ev("m::main", push("2"), 2, 1),
	}
	rec := &Recorder{}
	e := New(arena, events, policy(), rec)

	// --- Act ---
	res, err := e.Run(testutil.Context(t), "main")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []EventKind{
		EventEntry,
		EventInstruction,
		EventCall,
		EventEnter,
		EventInstruction,
		EventReturn,
		EventInstruction,
		EventEntryReturned,
		EventEnd,
	}, rec.Kinds())
	assert.Equal(t, exec("m::helper"), rec.Events[2].Op)
	assert.Equal(t, "m::helper", rec.Events[3].Func)
	assert.Equal(t, "m::main", rec.Events[5].Func)
	assert.Equal(t, 1, res.Calls)
	assert.Equal(t, 3, res.Instructions)
	assert.Equal(t, 1, e.CallDepth())
}

func TestEngine_BranchSelection(t *testing.T) {
	testCases := []struct {
		name      string
		condition string
		armOp     masm.Op
		wantKinds []EventKind
		wantArm   Arm
	}{
		{
			name:      "zero takes the false arm",
			condition: "0",
			armOp:     push("9"),
			wantArm:   ArmFalse,
			wantKinds: []EventKind{
				EventEntry,
				EventInstruction,
				EventBranch,
				EventArmSkipped,
				EventElse,
				EventInstruction,
				EventBranchEnd,
				EventEntryReturned,
				EventEnd,
			},
		},
		{
			name:      "nonzero takes the true arm",
			condition: "5",
			armOp:     push("7"),
			wantArm:   ArmTrue,
			wantKinds: []EventKind{
				EventEntry,
				EventInstruction,
				EventBranch,
				EventInstruction,
				EventElse,
				EventArmSkipped,
				EventBranchEnd,
				EventEntryReturned,
				EventEnd,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			a := masm.NewArena()
			tKey := a.Insert(masm.Bare([]masm.Op{push("7")}))
			fKey := a.Insert(masm.Bare([]masm.Op{push("9")}))
			arena := moduleArena(a, map[string][]masm.Op{
				"main": {push(tc.condition), masm.Conditional(tKey, fKey)},
			}, "main")

			var cond uint64
			if tc.condition != "0" {
				cond = 5
			}
			events := []trace.Event{
				ev("m::main", push(tc.condition), cond),
				ev("m::main", tc.armOp, 7, cond),
			}
			rec := &Recorder{}
			e := New(arena, events, policy(), rec)

			// --- Act ---
			res, err := e.Run(testutil.Context(t), "main")

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, tc.wantKinds, rec.Kinds())
			assert.Equal(t, tc.wantArm, rec.Events[2].Arm)
			assert.Equal(t, 1, res.Branches)
			assert.Equal(t, 1, e.CallDepth())

			for _, got := range rec.Events {
				switch got.Kind {
				case EventInstruction:
					if got.Op.Equal(tc.armOp) {
						assert.Equal(t, 2, got.Depth, "arm instructions are nested")
					}
				case EventArmSkipped:
					assert.NotEqual(t, tc.wantArm, got.Arm)
					assert.Equal(t, 1, got.Depth)
				case EventBranchEnd:
					assert.Equal(t, 1, got.Depth)
				}
			}
		})
	}
}

func TestEngine_HiddenCallee(t *testing.T) {
	arena := func() *masm.Arena {
		return moduleArena(masm.NewArena(), map[string][]masm.Op{
			"main":     {exec("m::__hidden"), push("1")},
			"__hidden": {push("3")},
		}, "main", "__hidden")
	}
	events := []trace.Event{ev("m::main", push("1"), 1)}

	t.Run("skipped by default", func(t *testing.T) {
		rec := &Recorder{}
		res, err := New(arena(), events, policy(), rec).Run(testutil.Context(t), "main")

		require.NoError(t, err)
		assert.Equal(t, []EventKind{
			EventEntry,
			EventCall,
			EventCallSkipped,
			EventInstruction,
			EventEntryReturned,
			EventEnd,
		}, rec.Kinds())
		assert.True(t, rec.Events[2].Hidden)
		assert.Equal(t, 1, res.SkippedCalls)
	})

	t.Run("entered when the policy is off", func(t *testing.T) {
		p := policy()
		p.SkipHiddenCallees = false

		_, err := New(arena(), events, p, &Recorder{}).Run(testutil.Context(t), "main")

		var desync *DesyncError
		require.ErrorAs(t, err, &desync)
		assert.Equal(t, "m::__hidden", desync.SourceFunc)
		assert.Equal(t, push("3"), desync.SourceOp)
		assert.Equal(t, push("1"), desync.TraceOp)
	})
}

func TestEngine_Desync(t *testing.T) {
	// --- Arrange ---
	arena := moduleArena(masm.NewArena(), map[string][]masm.Op{
		"main": {push("1"), masm.Plain("add")},
	}, "main")
	events := []trace.Event{
		ev("m::main", push("1"), 1),
		{Func: "m::main", RawOp: "mul", Op: masm.Plain("mul"), Cycle: 1, Total: 1, Stack: []uint64{1}},
	}
	rec := &Recorder{}

	// --- Act ---
	_, err := New(arena, events, policy(), rec).Run(testutil.Context(t), "main")

	// --- Assert ---
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDesync))
	var desync *DesyncError
	require.ErrorAs(t, err, &desync)
	assert.Equal(t, "m::main", desync.SourceFunc)
	assert.Equal(t, 1, desync.PC)
	assert.Equal(t, 1, desync.Cursor)
	assert.Contains(t, err.Error(), "src op add (pc 1)")
	assert.Contains(t, err.Error(), "op mul (`mul`)")
	assert.Equal(t, []EventKind{EventEntry, EventInstruction}, rec.Kinds(), "no end event after a failure")
}

func TestEngine_TraceExhausted(t *testing.T) {
	arena := moduleArena(masm.NewArena(), map[string][]masm.Op{
		"main": {push("1"), push("2")},
	}, "main")
	events := []trace.Event{ev("m::main", push("1"), 1)}
	rec := &Recorder{}

	res, err := New(arena, events, policy(), rec).Run(testutil.Context(t), "main")

	require.NoError(t, err)
	assert.Equal(t, ReasonTraceExhausted, res.Reason)
	assert.Equal(t, []EventKind{EventEntry, EventInstruction, EventEnd}, rec.Kinds())
	assert.Equal(t, ReasonTraceExhausted, rec.Events[2].Reason)
}

func TestEngine_SourceOnlyAndMicroSteps(t *testing.T) {
	arena := moduleArena(masm.NewArena(), map[string][]masm.Op{
		"main": {masm.PlainArg("trace", "240"), masm.Plain("u32assert")},
	}, "main")
	events := []trace.Event{
		{Func: "m::main", Op: masm.Plain("u32assert"), Cycle: 1, Total: 3},
		{Func: "m::main", Op: masm.Plain("u32assert"), Cycle: 2, Total: 3},
		{Func: "m::main", Op: masm.Plain("u32assert"), Cycle: 3, Total: 3, Stack: []uint64{4}},
	}
	rec := &Recorder{}

	res, err := New(arena, events, policy(), rec).Run(testutil.Context(t), "main")

	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventEntry, EventInstruction, EventEntryReturned, EventEnd}, rec.Kinds())
	assert.Equal(t, []uint64{4}, rec.Events[1].Stack)
	assert.Equal(t, 3, res.Cursor)
}

func TestEngine_MemoryShadow(t *testing.T) {
	// --- Arrange ---
	load := masm.Plain("mem_load")
	arena := moduleArena(masm.NewArena(), map[string][]masm.Op{
		"main": {push("8"), load, push("8"), load},
	}, "main")
	events := []trace.Event{
		ev("m::main", push("8"), 8),
		ev("m::main", load, 5),
		ev("m::main", push("8"), 8, 5),
		ev("m::main", load, 6, 5),
	}
	rec := &Recorder{}
	e := New(arena, events, policy(), rec)

	// --- Act ---
	res, err := e.Run(testutil.Context(t), "main")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []EventKind{
		EventEntry,
		EventInstruction,
		EventInstruction,
		EventMemoryWindow,
		EventInstruction,
		EventMemoryWarning,
		EventInstruction,
		EventEntryReturned,
		EventEnd,
	}, rec.Kinds())

	window := rec.Events[3].Window
	assert.Equal(t, uint64(8), window.Base)
	assert.Equal(t, [4]bool{true, false, false, false}, window.Known)
	assert.Equal(t, uint64(5), window.Words[0])

	warning := rec.Events[5].Mismatch
	assert.Equal(t, uint64(8), warning.Addr)
	assert.Equal(t, uint64(5), warning.Recorded)
	assert.Equal(t, uint64(6), warning.Loaded)
	assert.Equal(t, 1, res.MemoryWarnings)

	v, ok := e.Shadow().Get(8)
	require.True(t, ok)
	assert.Equal(t, uint64(5), v, "a mismatch leaves the recorded value alone")
}

// boundSink checks the program counter bound at every emitted event.
type boundSink struct {
	t     *testing.T
	e     *Engine
	arena *masm.Arena
	n     int
}

func (s *boundSink) Emit(Event) {
	s.n++
	block, pc := s.e.Position()
	if !s.arena.Valid(block) {
		return
	}
	if pc < 0 || pc > s.arena.Block(block).Len() {
		s.t.Errorf("pc %d out of range for block %s", pc, block)
	}
}

func TestEngine_ProgramCounterBound(t *testing.T) {
	a := masm.NewArena()
	tKey := a.Insert(masm.Bare([]masm.Op{exec("m::leaf")}))
	fKey := a.Insert(masm.Bare(nil))
	arena := moduleArena(a, map[string][]masm.Op{
		"main": {push("1"), masm.Conditional(tKey, fKey), push("2")},
		"leaf": {push("3")},
	}, "main", "leaf")
	events := []trace.Event{
		ev("m::main", push("1"), 1),
		ev("m::leaf", push("3"), 3, 1),
		ev("m::main", push("2"), 2, 3, 1),
	}

	sink := &boundSink{t: t, arena: arena}
	e := New(arena, events, policy(), sink)
	sink.e = e

	res, err := e.Run(testutil.Context(t), "main")

	require.NoError(t, err)
	assert.Equal(t, ReasonReturned, res.Reason)
	assert.Equal(t, 3, res.Instructions)
	assert.Greater(t, sink.n, 0)
	assert.Equal(t, 1, e.CallDepth())
}
