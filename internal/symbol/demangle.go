// internal/symbol/demangle.go
package symbol

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingNested is returned when `_Z` is not followed by `N`.
	ErrMissingNested = errors.New("expected 'N' after '_Z'")
	// ErrMissingLength is returned when a path component has no length prefix.
	ErrMissingLength = errors.New("expected length prefix in mangled path")
	// ErrTruncated is returned when the input ends inside a mangled path.
	ErrTruncated = errors.New("truncated mangled path")
)

type demangleState int

const (
	stateCopy demangleState = iota
	stateUnderscore
	stateMangleStart
	statePath
)

// Demangler decodes `_ZN...E` regions embedded in symbols.
type Demangler struct {
	// DropHash removes a trailing Rust legacy hash component (`h` followed by
	// 16 hex digits) from each decoded path.
	DropHash bool
}

// Demangle decodes s with the zero Demangler, keeping every path component.
func Demangle(s string) (string, error) {
	return Demangler{}.Demangle(s)
}

// Demangle returns s with its mangled region replaced by the `::`-joined
// path components. Text outside the mangled region is copied verbatim.
func (d Demangler) Demangle(s string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(s))

	state := stateCopy
	count := 0
	var parts []string

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case stateCopy:
			if c == '_' {
				state = stateUnderscore
				continue
			}
			sb.WriteByte(c)

		case stateUnderscore:
			if c == 'Z' {
				state = stateMangleStart
				continue
			}
			sb.WriteByte('_')
			sb.WriteByte(c)
			state = stateCopy

		case stateMangleStart:
			if c != 'N' {
				return "", fmt.Errorf("%w at offset %d in %q", ErrMissingNested, i, s)
			}
			state = statePath
			count = 0
			parts = parts[:0]

		case statePath:
			switch {
			case c >= '0' && c <= '9':
				count = count*10 + int(c-'0')
			case c == 'E' && count == 0:
				d.writePath(&sb, parts)
				state = stateCopy
			case count == 0:
				return "", fmt.Errorf("%w at offset %d in %q", ErrMissingLength, i, s)
			default:
				if i+count > len(s) {
					return "", fmt.Errorf("%w in %q", ErrTruncated, s)
				}
				parts = append(parts, s[i:i+count])
				i += count - 1
				count = 0
			}
		}
	}

	switch state {
	case stateUnderscore:
		sb.WriteByte('_')
	case stateMangleStart, statePath:
		return "", fmt.Errorf("%w in %q", ErrTruncated, s)
	}

	return sb.String(), nil
}

func (d Demangler) writePath(sb *strings.Builder, parts []string) {
	if d.DropHash && len(parts) > 1 && isLegacyHash(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 {
		return
	}
	if sb.Len() > 0 && !strings.HasSuffix(sb.String(), Separator) {
		sb.WriteString(Separator)
	}
	sb.WriteString(strings.Join(parts, Separator))
}

// isLegacyHash reports whether part looks like `h0123456789abcdef`.
func isLegacyHash(part string) bool {
	if len(part) != 17 || part[0] != 'h' {
		return false
	}
	for i := 1; i < len(part); i++ {
		c := part[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
