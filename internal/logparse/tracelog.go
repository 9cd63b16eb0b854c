package logparse

import (
	"strconv"
	"strings"

	"github.com/vk/etp/internal/trace"
)

const stepStackMarker = "&step.stack ="

func (p *parser) atTraceMarker() bool {
	return p.hasPrefix(p.g.TraceMarker)
}

// pendingEvent accumulates the three lines that make up one trace event.
type pendingEvent struct {
	ev      trace.Event
	hasFunc bool
	hasExec bool
}

// parseTrace reads trace lines until the end marker or end of input.
func (p *parser) parseTrace() ([]trace.Event, error) {
	var (
		events []trace.Event
		cur    pendingEvent
	)

	for {
		p.skipSpace()
		if p.eof() || (p.g.EndMarker != "" && p.hasPrefix(p.g.EndMarker)) {
			break
		}

		if !p.consume(p.g.TraceMarker) {
			if p.atStepStack() {
				p.skipLine()
				continue
			}
			return nil, p.errorf("expected %q line", p.g.TraceMarker)
		}
		p.skipInline()

		switch {
		case p.peekWord() == "in":
			if cur.hasFunc {
				return nil, p.errorf("trace event for %q is incomplete", cur.ev.Func)
			}
			p.pos += len("in")
			fn, err := p.parseTraceIn()
			if err != nil {
				return nil, err
			}
			cur = pendingEvent{ev: trace.Event{Func: fn}, hasFunc: true}

		case p.peekWord() == "executed":
			if !cur.hasFunc || cur.hasExec {
				return nil, p.errorf("unexpected executed line")
			}
			p.pos += len("executed")
			if err := p.parseTraceExecuted(&cur.ev); err != nil {
				return nil, err
			}
			cur.hasExec = true

		case p.hasPrefix("stack state:"):
			if !cur.hasExec {
				return nil, p.errorf("unexpected stack state line")
			}
			p.pos += len("stack state:")
			stack, err := p.parseStack()
			if err != nil {
				return nil, err
			}
			cur.ev.Stack = stack
			events = append(events, cur.ev)
			cur = pendingEvent{}

		default:
			// Some other executor line kind; not needed for alignment.
			p.skipLine()
		}
	}

	if cur.hasFunc {
		return nil, p.errorf("trace ended inside the event for %q", cur.ev.Func)
	}
	return events, nil
}

// atStepStack reports whether the cursor is on a `[...] &step.stack = [...]`
// debugger line.
func (p *parser) atStepStack() bool {
	if p.peek() != '[' {
		return false
	}
	line := p.input[p.pos:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.Contains(line, stepStackMarker)
}

// parseTraceIn reads `<symbol>(...)` after `in`.
func (p *parser) parseTraceIn() (string, error) {
	p.skipSpace()
	fn, err := p.readSymbol()
	if err != nil {
		return "", err
	}
	if err := p.expect("("); err != nil {
		return "", err
	}
	i := strings.IndexByte(p.input[p.pos:], ')')
	if i < 0 {
		return "", p.errorf("unterminated argument list")
	}
	p.pos += i + 1
	return fn, nil
}

// parseTraceExecuted reads "`raw` of `op` (cycle C/T)" after `executed`.
func (p *parser) parseTraceExecuted(ev *trace.Event) error {
	p.skipSpace()
	if err := p.expect("`"); err != nil {
		return err
	}
	i := strings.IndexByte(p.input[p.pos:], '`')
	if i < 0 {
		return p.errorf("unterminated operation text")
	}
	ev.RawOp = p.input[p.pos : p.pos+i]
	p.pos += i + 1

	p.skipSpace()
	if err := p.expect("of"); err != nil {
		return err
	}
	p.skipSpace()
	if err := p.expect("`"); err != nil {
		return err
	}
	op, err := p.parseBasicOp(false)
	if err != nil {
		return err
	}
	ev.Op = op
	if err := p.expect("`"); err != nil {
		return err
	}

	p.skipSpace()
	if err := p.expect("(cycle"); err != nil {
		return err
	}
	p.skipSpace()
	cycle, err := p.parseNum()
	if err != nil {
		return err
	}
	if err := p.expect("/"); err != nil {
		return err
	}
	total, err := p.parseNum()
	if err != nil {
		return err
	}
	if err := p.expect(")"); err != nil {
		return err
	}
	if cycle < 1 || cycle > total {
		return p.errorf("cycle %d/%d out of range", cycle, total)
	}
	ev.Cycle, ev.Total = cycle, total
	return nil
}

// parseStack reads `[n0, n1, ...]`, allowing a trailing comma.
func (p *parser) parseStack() ([]uint64, error) {
	p.skipSpace()
	if err := p.expect("["); err != nil {
		return nil, err
	}
	p.skipSpace()

	stack := []uint64{}
	for isDigit(p.peek()) {
		n, err := p.parseNum()
		if err != nil {
			return nil, err
		}
		stack = append(stack, n)
		p.skipSpace()
		if !p.consume(",") {
			break
		}
		p.skipSpace()
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return stack, nil
}

func (p *parser) parseNum() (uint64, error) {
	digits := p.readRun(isDigit)
	if digits == "" {
		return 0, p.errorf("expected number")
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		p.pos -= len(digits)
		return 0, p.errorf("invalid number %q: %v", digits, err)
	}
	p.skipSpace()
	return n, nil
}
