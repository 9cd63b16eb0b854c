// internal/symbol/doc.go

/*
Package symbol decodes and manipulates the procedure symbols that appear in
VM trace logs and MASM source listings.

Trace logs name the owning function of every step with a symbol that is
partly plain text (the module path) and partly a length-prefixed mangled
path, e.g. `root::_ZN4test4main17h0123456789abcdefE`. Demangle turns the
mangled region into a readable `::`-separated path so it can be compared
with the names of source procedures.

Path gives a structured view of such `a::b::c` names, and Cache amortises
demangling over a single run, where the same few symbols are decoded over
and over while scanning past opaque callees.
*/
package symbol
