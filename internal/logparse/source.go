package logparse

import (
	"regexp"

	"github.com/vk/etp/internal/masm"
)

var keywords = map[string]bool{
	"export": true,
	"proc":   true,
	"if":     true,
	"else":   true,
	"end":    true,
}

// localsSuffix matches the `.N` locals count some listings append to
// procedure names, e.g. `proc.foo.2`.
var localsSuffix = regexp.MustCompile(`\.\d+$`)

func (p *parser) atModuleMarker() bool {
	save := p.pos
	defer func() { p.pos = save }()

	if !p.consume("#") {
		return false
	}
	p.skipInline()
	return p.hasPrefix(p.g.ModuleMarker)
}

// skipInline skips spaces and tabs only.
func (p *parser) skipInline() {
	p.readRun(func(c byte) bool { return c == ' ' || c == '\t' })
}

// parseModule reads `# mod <name>` and the procedures that follow, then
// qualifies every procedure with the module name.
func (p *parser) parseModule() (string, error) {
	if err := p.expect("#"); err != nil {
		return "", err
	}
	p.skipInline()
	if err := p.expect(p.g.ModuleMarker); err != nil {
		return "", err
	}
	p.skipSpace()
	name, err := p.readSymbol()
	if err != nil {
		return "", err
	}
	p.skipSpace()

	var keys []masm.BlockKey
	for p.atProc() {
		key, err := p.parseProc()
		if err != nil {
			return "", err
		}
		keys = append(keys, key)
	}
	p.arena.PrefixModule(name, keys)
	return name, nil
}

func (p *parser) atProc() bool {
	if p.peek() == '@' {
		return true
	}
	return p.hasPrefix("export.") || p.hasPrefix("proc.")
}

// parseProc reads one procedure definition, including any annotations
// such as `@callconv("wasm")` placed before it.
func (p *parser) parseProc() (masm.BlockKey, error) {
	for p.peek() == '@' {
		if err := p.skipAnnotation(); err != nil {
			return masm.NoBlock, err
		}
	}

	if !p.consume("export.") && !p.consume("proc.") {
		return masm.NoBlock, p.errorf("expected procedure definition")
	}
	name, err := p.readSymbol()
	if err != nil {
		return masm.NoBlock, err
	}
	name = localsSuffix.ReplaceAllString(name, "")
	p.skipSpace()

	ops, err := p.parseOps()
	if err != nil {
		return masm.NoBlock, err
	}
	if len(ops) == 0 {
		return masm.NoBlock, p.errorf("procedure %q has no instructions", name)
	}
	if err := p.expectKeyword("end"); err != nil {
		return masm.NoBlock, err
	}
	return p.arena.Insert(masm.NewBlock(name, ops)), nil
}

func (p *parser) skipAnnotation() error {
	p.pos++ // '@'
	if p.readRun(isIdentChar) == "" {
		return p.errorf("expected annotation name")
	}
	if p.peek() == '(' {
		depth := 0
		for !p.eof() {
			c := p.input[p.pos]
			p.pos++
			if c == '(' {
				depth++
			} else if c == ')' {
				depth--
				if depth == 0 {
					break
				}
			}
		}
		if depth != 0 {
			return p.errorf("unterminated annotation")
		}
	}
	p.skipSpace()
	return nil
}

// parseOps reads ops until a block terminator (`else`, `end`) or anything
// that cannot start an op.
func (p *parser) parseOps() ([]masm.Op, error) {
	var ops []masm.Op
	for !p.eof() {
		word := p.peekWord()
		if word == "" || word == "else" || word == "end" {
			break
		}
		var (
			op  masm.Op
			err error
		)
		if word == "if" {
			op, err = p.parseConditional()
		} else if keywords[word] {
			break
		} else {
			op, err = p.parseBasicOp(true)
		}
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// parseBasicOp reads `opcode[.arg]`. Outside the trace region reserved
// words are rejected as opcodes.
func (p *parser) parseBasicOp(rejectKeywords bool) (masm.Op, error) {
	opcode := p.peekWord()
	if opcode == "" {
		return masm.Op{}, p.errorf("expected instruction")
	}
	if rejectKeywords && keywords[opcode] {
		return masm.Op{}, p.errorf("unexpected keyword %q", opcode)
	}
	p.pos += len(opcode)

	if !p.consume(".") {
		p.skipSpace()
		return masm.Plain(opcode), nil
	}

	var arg string
	switch c := p.peek(); {
	case isDigit(c):
		arg = p.readRun(isDigit)
	case c == '[':
		start := p.pos
		p.pos++
		if p.readRun(func(c byte) bool { return isDigit(c) || c == ',' }) == "" {
			return masm.Op{}, p.errorf("expected index list")
		}
		if err := p.expect("]"); err != nil {
			return masm.Op{}, err
		}
		arg = p.input[start:p.pos]
	case isSymbolStart(c):
		arg, _ = p.readSymbol()
	default:
		return masm.Op{}, p.errorf("expected argument for %q", opcode)
	}
	p.skipSpace()
	return masm.PlainArg(opcode, arg), nil
}

// parseConditional reads `if.true ops [else ops] end`. `if.false` is
// accepted with its arms swapped.
func (p *parser) parseConditional() (masm.Op, error) {
	var negate bool
	switch {
	case p.consume("if.true"):
	case p.consume("if.false"):
		negate = true
	default:
		return masm.Op{}, p.errorf("expected if.true")
	}
	p.skipSpace()

	tops, err := p.parseOps()
	if err != nil {
		return masm.Op{}, err
	}
	var fops []masm.Op
	if p.peekWord() == "else" {
		p.pos += len("else")
		p.skipSpace()
		if fops, err = p.parseOps(); err != nil {
			return masm.Op{}, err
		}
	}
	if err := p.expectKeyword("end"); err != nil {
		return masm.Op{}, err
	}

	if negate {
		tops, fops = fops, tops
	}
	tKey := p.arena.Insert(masm.Bare(tops))
	fKey := p.arena.Insert(masm.Bare(fops))
	return masm.Conditional(tKey, fKey), nil
}

func (p *parser) expectKeyword(kw string) error {
	if p.peekWord() != kw {
		return p.errorf("expected %q", kw)
	}
	p.pos += len(kw)
	p.skipSpace()
	return nil
}
