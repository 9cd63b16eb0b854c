package masm

import "fmt"

// OpKind discriminates the Op variants.
type OpKind uint8

const (
	// OpPlain is a single instruction with an optional literal argument.
	OpPlain OpKind = iota
	// OpConditional is a two-way branch over two child blocks.
	OpConditional
)

func (k OpKind) String() string {
	switch k {
	case OpPlain:
		return "plain"
	case OpConditional:
		return "conditional"
	default:
		return fmt.Sprintf("op-kind-invalid(%d)", uint8(k))
	}
}

// Op is a tagged union over OpKind. Opcode, Arg and HasArg are meaningful
// for OpPlain; True and False for OpConditional.
type Op struct {
	Kind   OpKind
	Opcode string
	Arg    string
	HasArg bool
	True   BlockKey
	False  BlockKey
}

// Plain builds a plain op without an argument.
func Plain(opcode string) Op {
	return Op{Kind: OpPlain, Opcode: opcode}
}

// PlainArg builds a plain op carrying one literal argument.
func PlainArg(opcode, arg string) Op {
	return Op{Kind: OpPlain, Opcode: opcode, Arg: arg, HasArg: true}
}

// Conditional builds a branch op over the given arms.
func Conditional(t, f BlockKey) Op {
	return Op{Kind: OpConditional, True: t, False: f}
}

// IsPlain reports whether o is a plain instruction.
func (o Op) IsPlain() bool {
	return o.Kind == OpPlain
}

// Equal reports structural equality. Conditionals compare by arm keys.
func (o Op) Equal(other Op) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case OpPlain:
		return o.Opcode == other.Opcode && o.HasArg == other.HasArg && o.Arg == other.Arg
	case OpConditional:
		return o.True == other.True && o.False == other.False
	default:
		return false
	}
}

// String renders o in source form, e.g. `push.1` or `if.true(#2, #3)`.
func (o Op) String() string {
	switch o.Kind {
	case OpPlain:
		if o.HasArg {
			return o.Opcode + "." + o.Arg
		}
		return o.Opcode
	case OpConditional:
		return fmt.Sprintf("if.true(%s, %s)", o.True, o.False)
	default:
		return o.Kind.String()
	}
}
