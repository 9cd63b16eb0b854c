package testutil

import (
	"fmt"
	"strings"
)

const traceMarker = "[TRACE executor]"

// LogBuilder assembles a synthetic executor log: a source listing
// followed by a trace.
type LogBuilder struct {
	src    strings.Builder
	events strings.Builder
	module string
}

// NewLog starts an empty log with the usual package banner.
func NewLog() *LogBuilder {
	b := &LogBuilder{}
	b.src.WriteString("Creating Miden package /tmp/test.masp\n")
	return b
}

// Module opens a new source module.
func (b *LogBuilder) Module(name string) *LogBuilder {
	b.module = name
	fmt.Fprintf(&b.src, "# mod %s\n\n", name)
	return b
}

// Proc adds an exported procedure with the given body lines, each one
// already indented relative to the procedure.
func (b *LogBuilder) Proc(name string, body ...string) *LogBuilder {
	fmt.Fprintf(&b.src, "export.%s\n", name)
	for _, line := range body {
		fmt.Fprintf(&b.src, "    %s\n", line)
	}
	b.src.WriteString("end\n\n")
	return b
}

// Step adds a single-cycle trace event.
func (b *LogBuilder) Step(fn, op string, stack ...uint64) *LogBuilder {
	return b.Cycles(fn, op, 1, 1, stack...)
}

// Cycles adds a trace event for one cycle of a multi-cycle instruction.
func (b *LogBuilder) Cycles(fn, op string, cycle, total int, stack ...uint64) *LogBuilder {
	nums := make([]string, len(stack))
	for i, v := range stack {
		nums[i] = fmt.Sprint(v)
	}
	fmt.Fprintf(&b.events, "%s in %s(...)\n", traceMarker, fn)
	fmt.Fprintf(&b.events, "%s executed `%s` of `%s` (cycle %d/%d)\n", traceMarker, op, op, cycle, total)
	fmt.Fprintf(&b.events, "%s stack state: [%s]\n", traceMarker, strings.Join(nums, ", "))
	return b
}

// String renders the log, closing it with the end marker.
func (b *LogBuilder) String() string {
	return b.src.String() + "test " + b.module + " ... FAILED\n" + b.events.String() + "Stack Trace:\n"
}
