package logparse

import (
	"strings"

	"github.com/vk/etp/internal/config"
	"github.com/vk/etp/internal/masm"
	"github.com/vk/etp/internal/trace"
)

// Result is the pair of models built from one log.
type Result struct {
	Blocks  *masm.Arena
	Events  []trace.Event
	Modules []string
}

// Parse builds the source blocks and the trace events from input.
func Parse(input string, g config.Grammar) (*Result, error) {
	p := &parser{
		input: input,
		g:     g,
		arena: masm.NewArena(),
	}
	return p.parse()
}

type parser struct {
	input string
	pos   int
	g     config.Grammar
	arena *masm.Arena
}

func (p *parser) parse() (*Result, error) {
	if !p.skipUntil(p.atModuleMarker) {
		return nil, p.errorf("no %q module marker found", "# "+p.g.ModuleMarker)
	}

	var modules []string
	for p.atModuleMarker() {
		name, err := p.parseModule()
		if err != nil {
			return nil, err
		}
		modules = append(modules, name)
	}

	if !p.skipUntil(p.atTraceMarker) {
		return nil, p.errorf("no %q trace marker found", p.g.TraceMarker)
	}

	events, err := p.parseTrace()
	if err != nil {
		return nil, err
	}

	return &Result{Blocks: p.arena, Events: events, Modules: modules}, nil
}

// --- scanning helpers ---

func (p *parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

// consume advances past s if the input continues with it.
func (p *parser) consume(s string) bool {
	if !p.hasPrefix(s) {
		return false
	}
	p.pos += len(s)
	return true
}

func (p *parser) expect(s string) error {
	if !p.consume(s) {
		return p.errorf("expected %q", s)
	}
	return nil
}

// skipSpace skips whitespace and any noise lines.
func (p *parser) skipSpace() {
	for !p.eof() {
		switch p.input[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
			continue
		}
		if !p.atNoise() {
			return
		}
		p.skipLine()
	}
}

func (p *parser) atNoise() bool {
	for _, n := range p.g.NoisePrefixes {
		if n != "" && p.hasPrefix(n) {
			return true
		}
	}
	return false
}

// skipLine moves to the start of the next line.
func (p *parser) skipLine() {
	if i := strings.IndexByte(p.input[p.pos:], '\n'); i >= 0 {
		p.pos += i + 1
		return
	}
	p.pos = len(p.input)
}

// skipUntil advances one byte at a time until at reports true, returning
// false if the input runs out first.
func (p *parser) skipUntil(at func() bool) bool {
	for !p.eof() {
		if at() {
			return true
		}
		p.pos++
	}
	return false
}

// peekWord returns the identifier run at the cursor without consuming it.
func (p *parser) peekWord() string {
	end := p.pos
	for end < len(p.input) && isIdentChar(p.input[end]) {
		end++
	}
	return p.input[p.pos:end]
}

// readRun consumes bytes while ok holds, returning them.
func (p *parser) readRun(ok func(byte) bool) string {
	start := p.pos
	for !p.eof() && ok(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// readSymbol consumes a symbol: a symbol character followed by symbol
// characters or digits.
func (p *parser) readSymbol() (string, error) {
	if !isSymbolStart(p.peek()) {
		return "", p.errorf("expected symbol")
	}
	return p.readRun(func(c byte) bool { return isSymbolStart(c) || isDigit(c) }), nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || isDigit(c) || c == '_'
}

func isSymbolStart(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	}
	switch c {
	case '.', '/', '@', '_', '-', ':', '#', '$':
		return true
	}
	return false
}
