package masm

import (
	"fmt"
	"strings"

	"github.com/vk/etp/internal/symbol"
)

// BlockKey is an opaque, arena-scoped reference to a Block.
type BlockKey int32

// NoBlock is the zero reference; it never names an arena slot.
const NoBlock BlockKey = -1

func (k BlockKey) String() string {
	if k == NoBlock {
		return "#none"
	}
	return fmt.Sprintf("#%d", int32(k))
}

// Block is an ordered sequence of Ops. Procedure bodies are named; branch
// arms are anonymous.
type Block struct {
	name string
	ops  []Op
}

// NewBlock creates a named procedure block. The name is local until the
// owning module is applied with Arena.PrefixModule.
func NewBlock(name string, ops []Op) Block {
	return Block{name: name, ops: ops}
}

// Bare creates an anonymous block, used for branch arms.
func Bare(ops []Op) Block {
	return Block{ops: ops}
}

// Name returns the block name and whether the block is named.
func (b *Block) Name() (string, bool) {
	return b.name, b.name != ""
}

// Len returns the number of ops in the block.
func (b *Block) Len() int {
	return len(b.ops)
}

// OpAt returns the op at pc. pc must be in range.
func (b *Block) OpAt(pc int) Op {
	return b.ops[pc]
}

// Arena owns every Block of one run. Blocks are only reachable by key.
type Arena struct {
	blocks []Block
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Insert moves b into the arena and returns its key.
func (a *Arena) Insert(b Block) BlockKey {
	a.blocks = append(a.blocks, b)
	return BlockKey(len(a.blocks) - 1)
}

// Len returns the number of blocks, named and anonymous.
func (a *Arena) Len() int {
	return len(a.blocks)
}

// Valid reports whether k names a block of this arena.
func (a *Arena) Valid(k BlockKey) bool {
	return k >= 0 && int(k) < len(a.blocks)
}

// Block returns the block stored under k. The pointer must not be retained
// beyond the arena's lifetime.
func (a *Arena) Block(k BlockKey) *Block {
	return &a.blocks[k]
}

// PrefixModule qualifies the named blocks among keys with module, turning
// `main` into `module::main`. Anonymous blocks are left untouched.
func (a *Arena) PrefixModule(module string, keys []BlockKey) {
	for _, k := range keys {
		b := &a.blocks[k]
		if b.name != "" {
			b.name = symbol.Join(module, b.name)
		}
	}
}

// Find returns the key of the block whose name equals name exactly.
func (a *Arena) Find(name string) (BlockKey, bool) {
	for i := range a.blocks {
		if a.blocks[i].name != "" && a.blocks[i].name == name {
			return BlockKey(i), true
		}
	}
	return NoBlock, false
}

// FindSuffix returns the keys of all named blocks whose name ends with
// suffix, in arena order.
func (a *Arena) FindSuffix(suffix string) []BlockKey {
	var keys []BlockKey
	for i := range a.blocks {
		name := a.blocks[i].name
		if name != "" && strings.HasSuffix(name, suffix) {
			keys = append(keys, BlockKey(i))
		}
	}
	return keys
}

// Names returns the names of all named blocks, in arena order.
func (a *Arena) Names() []string {
	var names []string
	for i := range a.blocks {
		if a.blocks[i].name != "" {
			names = append(names, a.blocks[i].name)
		}
	}
	return names
}
