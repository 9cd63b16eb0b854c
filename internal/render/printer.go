package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/vk/etp/internal/align"
	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/masm"
	"github.com/vk/etp/internal/memshadow"
)

const skipping = "(SKIPPING)"

// Printer is an align.Sink writing the text listing to an io.Writer. The
// first write error is kept and reported by Err; later events are dropped.
type Printer struct {
	w      io.Writer
	layout config.Layout
	buf    strings.Builder
	err    error
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer, layout config.Layout) *Printer {
	return &Printer{w: w, layout: layout}
}

// Err returns the first error encountered while writing.
func (p *Printer) Err() error {
	return p.err
}

// Emit implements align.Sink.
func (p *Printer) Emit(ev align.Event) {
	if p.err != nil {
		return
	}
	p.buf.Reset()

	switch ev.Kind {
	case align.EventEntry:
		fmt.Fprintf(&p.buf, "ENTRY AT %s\n", ev.Func)
	case align.EventInstruction:
		p.op(ev.Depth, ev.Op, ev.Stack, true)
	case align.EventCall:
		p.op(ev.Depth, ev.Op, nil, false)
	case align.EventEnter:
		fmt.Fprintf(&p.buf, "\nENTERING %s {{{\n", ev.Func)
	case align.EventCallSkipped, align.EventArmSkipped:
		p.line(ev.Depth+1, skipping)
	case align.EventReturn:
		fmt.Fprintf(&p.buf, "RETURN TO %s }}}\n\n", ev.Func)
	case align.EventBranch:
		p.line(ev.Depth, "if.true")
	case align.EventElse:
		p.line(ev.Depth, "else")
	case align.EventBranchEnd:
		p.line(ev.Depth, "end")
	case align.EventMemoryWarning:
		fmt.Fprintf(&p.buf, "WARNING: memory mismatch at addr %x:\n  Expecting %x, found %x\n",
			ev.Mismatch.Addr, ev.Mismatch.Loaded, ev.Mismatch.Recorded)
	case align.EventMemoryWindow:
		if !p.layout.ShowMemory {
			return
		}
		p.window(ev.Window)
	case align.EventEntryReturned:
		p.buf.WriteString("RETURNED FROM ENTRY POINT\n")
	case align.EventEnd:
		p.buf.WriteString("\nEND OF TRACE\n")
	default:
		p.err = fmt.Errorf("render: unexpected event kind %s", ev.Kind)
		return
	}

	_, p.err = io.WriteString(p.w, p.buf.String())
}

func (p *Printer) indent(depth int) string {
	n := depth * p.layout.IndentWidth
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

func (p *Printer) line(depth int, text string) {
	p.buf.WriteString(p.indent(depth))
	p.buf.WriteString(text)
	p.buf.WriteByte('\n')
}

// op writes an instruction, and when withStack is set its stack starting
// at the stack column. An instruction already reaching the column puts
// the stack on a line of its own.
func (p *Printer) op(depth int, op masm.Op, stack []uint64, withStack bool) {
	text := p.indent(depth) + op.String()
	if !withStack {
		p.buf.WriteString(text)
		p.buf.WriteByte('\n')
		return
	}

	col := p.layout.StackColumn
	pad := col - len(text)
	if len(text) >= col {
		p.buf.WriteString(text)
		p.buf.WriteByte('\n')
		text = ""
		pad = col
	}
	p.buf.WriteString(text)
	p.buf.WriteString(strings.Repeat(" ", pad))
	p.buf.WriteString(FormatStack(stack))
	p.buf.WriteByte('\n')
}

// FormatStack renders the interesting prefix of a top-first stack: up to
// two entries past the last nonzero one. Values below 256 print in
// decimal, others in hex with an h suffix.
func FormatStack(stack []uint64) string {
	trailingZeros := 0
	for i := len(stack) - 1; i >= 0 && stack[i] == 0; i-- {
		trailingZeros++
	}
	n := min(len(stack)+2-trailingZeros, len(stack))

	var sb strings.Builder
	sb.WriteByte('[')
	for _, v := range stack[:n] {
		if v < 256 {
			fmt.Fprintf(&sb, " %d", v)
		} else {
			fmt.Fprintf(&sb, " %xh", v)
		}
	}
	if n < len(stack) {
		sb.WriteString(" ...")
	}
	sb.WriteString(" ]")
	return sb.String()
}

func (p *Printer) window(w memshadow.Window) {
	fmt.Fprintf(&p.buf, "\n| %08x: ", w.Base)
	for i, v := range w.Words {
		if w.Known[i] {
			fmt.Fprintf(&p.buf, " %016x", v)
		} else {
			p.buf.WriteString("  ????????????????")
		}
	}
	p.buf.WriteString(" |\n\n")
}
