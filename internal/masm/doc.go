// Package masm models the structured source side of a trace: procedures
// and branch arms as Blocks of Ops, all owned by a single Arena and
// referenced through BlockKey values.
package masm
