package align

import (
	"context"
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/vk/etp/internal/ctxlog"
	"github.com/vk/etp/internal/masm"
	"github.com/vk/etp/internal/symbol"
)

// ResolveEntry picks the block the run starts in.
//
// A non-empty entry is matched as a suffix of every procedure name and must
// match exactly one. An empty entry is inferred from the first trace event:
// its function is used as is when it ends in the run suffix, or with the
// init suffix replaced by the run suffix.
func (e *Engine) ResolveEntry(ctx context.Context, entry string) (masm.BlockKey, error) {
	logger := ctxlog.FromContext(ctx)

	if entry != "" {
		keys := e.arena.FindSuffix(entry)
		switch len(keys) {
		case 0:
			if hint := e.suggestEntry(entry); hint != "" {
				return masm.NoBlock, fmt.Errorf("%w: %s (did you mean %q?)", ErrEntryNotFound, entry, hint)
			}
			return masm.NoBlock, fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
		case 1:
			logger.Debug("Resolved requested entry.", "entry", entry, "block", keys[0])
			return keys[0], nil
		default:
			candidates := make([]string, 0, len(keys))
			for _, k := range keys {
				name, _ := e.arena.Block(k).Name()
				candidates = append(candidates, name)
			}
			return masm.NoBlock, &AmbiguousEntryError{Entry: entry, Candidates: candidates}
		}
	}

	if len(e.events) == 0 {
		return masm.NoBlock, fmt.Errorf("%w: trace is empty", ErrNoDefaultEntry)
	}
	first, err := e.cache.Demangle(e.events[0].Func)
	if err != nil {
		return masm.NoBlock, fmt.Errorf("%w: %w", ErrNoDefaultEntry, err)
	}

	p := symbol.Parse(first)
	switch p.Last() {
	case e.policy.EntryRunSuffix:
		if k, ok := e.arena.Find(first); ok {
			logger.Debug("Inferred entry from first trace event.", "entry", first)
			return k, nil
		}
	case e.policy.EntryInitSuffix:
		run := p.WithLast(e.policy.EntryRunSuffix).String()
		if k, ok := e.arena.Find(run); ok {
			logger.Debug("Inferred entry from initializer.", "init", first, "entry", run)
			return k, nil
		}
	}
	return masm.NoBlock, fmt.Errorf("%w: first traced function is %s", ErrNoDefaultEntry, first)
}

func (e *Engine) suggestEntry(entry string) string {
	names := e.arena.Names()
	if len(names) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(entry, names)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// seekEntry advances the cursor to the first event owned by name.
func (e *Engine) seekEntry(name string) error {
	for ; e.cursor < len(e.events); e.cursor++ {
		fn, err := e.cache.Demangle(e.events[e.cursor].Func)
		if err != nil {
			return fmt.Errorf("demangling trace event %d: %w", e.cursor, err)
		}
		if fn == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrEntryNotTraced, name)
}
