// Package align reconstructs the nested control flow behind a flat VM
// trace. An Engine walks the source blocks of a masm.Arena in lock-step
// with the trace events, keeping an explicit call stack so it can tell
// when a procedure or branch arm has run to its end, resynchronising after
// calls into procedures that have no source, and picking the taken arm of
// every conditional from the operand the preceding instruction pushed.
//
// The engine does not format anything. It reports a sequence of logical
// events (entering and returning from procedures, branches taken and
// skipped, instructions executed, memory warnings) to a Sink.
package align
