// internal/symbol/path.go
package symbol

import (
	"slices"
	"strings"
)

// Separator joins the components of a symbol path.
const Separator = "::"

// Path is the structured representation of a `::`-separated symbol, such as
// a fully-qualified procedure name `std::math::u64::add`.
type Path struct {
	Segments []string
}

// Parse splits a demangled symbol into its path segments. An empty string
// yields an empty Path.
func Parse(s string) Path {
	if s == "" {
		return Path{}
	}
	return Path{Segments: strings.Split(s, Separator)}
}

// Join builds a symbol string from its components, skipping empty ones.
func Join(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, Separator)
}

// String serializes the Path back into its canonical `a::b::c` form.
func (p Path) String() string {
	return strings.Join(p.Segments, Separator)
}

// Last returns the final segment, or "" for an empty path.
func (p Path) Last() string {
	if len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[len(p.Segments)-1]
}

// WithLast returns a copy of p with its final segment replaced.
func (p Path) WithLast(last string) Path {
	if len(p.Segments) == 0 {
		return Path{Segments: []string{last}}
	}
	segs := slices.Clone(p.Segments)
	segs[len(segs)-1] = last
	return Path{Segments: segs}
}

// Equal checks segment-wise equality.
func (p Path) Equal(other Path) bool {
	return slices.Equal(p.Segments, other.Segments)
}
