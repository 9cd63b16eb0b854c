package memshadow

import (
	"fmt"
	"strconv"

	"github.com/vk/etp/internal/trace"
)

// WindowWords is the number of words shown by Window.
const WindowWords = 4

// Access classifies how a trace event touches memory.
type Access int

const (
	AccessNone Access = iota
	AccessLoad
	AccessStore
)

func (a Access) String() string {
	switch a {
	case AccessNone:
		return "none"
	case AccessLoad:
		return "load"
	case AccessStore:
		return "store"
	default:
		return fmt.Sprintf("access-invalid(%d)", int(a))
	}
}

// Mismatch describes a load that disagreed with the recorded value.
type Mismatch struct {
	Addr     uint64
	Recorded uint64
	Loaded   uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("memory mismatch at addr %x: expecting %x, found %x", m.Addr, m.Loaded, m.Recorded)
}

// Window is an aligned group of WindowWords words around an address.
type Window struct {
	Base  uint64
	Words [WindowWords]uint64
	Known [WindowWords]bool
}

// Shadow maps addresses to the last value observed there.
type Shadow struct {
	mem map[uint64]uint64
}

// New creates an empty shadow.
func New() *Shadow {
	return &Shadow{mem: make(map[uint64]uint64)}
}

// Len returns the number of known addresses.
func (s *Shadow) Len() int {
	return len(s.mem)
}

// Get returns the value recorded at addr.
func (s *Shadow) Get(addr uint64) (uint64, bool) {
	v, ok := s.mem[addr]
	return v, ok
}

// Load checks a loaded value against the shadow. An unknown address is
// recorded; a known one is left untouched and a disagreement is returned.
func (s *Shadow) Load(addr, val uint64) (Mismatch, bool) {
	recorded, ok := s.mem[addr]
	if !ok {
		s.mem[addr] = val
		return Mismatch{}, false
	}
	if recorded != val {
		return Mismatch{Addr: addr, Recorded: recorded, Loaded: val}, true
	}
	return Mismatch{}, false
}

// Store unconditionally records val at addr.
func (s *Shadow) Store(addr, val uint64) {
	s.mem[addr] = val
}

// Observe applies one trace event. Only the first cycle of an instruction
// is considered; prev is the event logged just before it, whose stack is
// the operand stack the instruction started from.
//
// A load takes its address from a literal argument, else from the top of
// prev's stack, and its value from the top of ev's stack. A store with an
// argument writes prev's top there; without one it writes prev's second
// element to the address on prev's top.
func (s *Shadow) Observe(access Access, ev, prev *trace.Event) (Mismatch, bool) {
	if access == AccessNone || ev == nil || prev == nil || ev.Cycle != 1 {
		return Mismatch{}, false
	}

	litAddr, hasLit := literalAddr(ev)
	switch access {
	case AccessLoad:
		addr := prev.Top(0)
		if hasLit {
			addr = litAddr
		}
		return s.Load(addr, ev.Top(0))
	case AccessStore:
		if hasLit {
			s.Store(litAddr, prev.Top(0))
		} else {
			s.Store(prev.Top(0), prev.Top(1))
		}
	}
	return Mismatch{}, false
}

// Window returns the WindowWords-aligned words surrounding addr.
func (s *Shadow) Window(addr uint64) Window {
	w := Window{Base: addr - addr%WindowWords}
	for i := range w.Words {
		w.Words[i], w.Known[i] = s.mem[w.Base+uint64(i)]
	}
	return w
}

func literalAddr(ev *trace.Event) (uint64, bool) {
	if !ev.Op.HasArg {
		return 0, false
	}
	addr, err := strconv.ParseUint(ev.Op.Arg, 10, 64)
	if err != nil {
		return 0, false
	}
	return addr, true
}
