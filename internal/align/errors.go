package align

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/etp/internal/masm"
)

var (
	// ErrEntryNotFound means no block name ends with the requested entry.
	ErrEntryNotFound = errors.New("failed to find requested entry function")
	// ErrAmbiguousEntry means more than one block name ends with the entry.
	ErrAmbiguousEntry = errors.New("found multiple potential entry functions")
	// ErrNoDefaultEntry means no entry was requested and none could be
	// inferred from the first trace event.
	ErrNoDefaultEntry = errors.New("failed to determine default entry function")
	// ErrEntryNotTraced means the requested entry never appears in the trace.
	ErrEntryNotTraced = errors.New("entry function does not appear in the trace")
	// ErrDesync means source and trace disagree in an unexplained way.
	ErrDesync = errors.New("mismatched operations")
	// ErrCallStackUnderflow means a block ended with no frame to return to.
	ErrCallStackUnderflow = errors.New("underflowed the call stack")
	// ErrNoFunction means no named block encloses the current position.
	ErrNoFunction = errors.New("failed to find a current function name")
)

// AmbiguousEntryError lists the block names a requested entry matched.
type AmbiguousEntryError struct {
	Entry      string
	Candidates []string
}

func (e *AmbiguousEntryError) Error() string {
	return fmt.Sprintf("%s for %q:\n  %s", ErrAmbiguousEntry, e.Entry, strings.Join(e.Candidates, "\n  "))
}

// Is makes errors.Is(err, ErrAmbiguousEntry) hold.
func (e *AmbiguousEntryError) Is(target error) bool {
	return target == ErrAmbiguousEntry
}

// DesyncError describes the first source op the trace could not account
// for, with both sides' functions and ops.
type DesyncError struct {
	SourceFunc string
	SourceOp   masm.Op
	PC         int
	TraceFunc  string
	TraceOp    masm.Op
	TraceRawOp string
	Cursor     int
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("%s at trace event %d:\n  src func: %s\n    src op %s (pc %d)\n  trace func: %s\n    op %s (`%s`)",
		ErrDesync, e.Cursor, e.SourceFunc, e.SourceOp, e.PC, e.TraceFunc, e.TraceOp, e.TraceRawOp)
}

// Is makes errors.Is(err, ErrDesync) hold.
func (e *DesyncError) Is(target error) bool {
	return target == ErrDesync
}
