// Package render turns the events of an alignment run into the annotated
// text listing: one line per executed instruction with the operand stack
// aligned in a column, banners around procedure calls, and if/else/end
// markers around branches, with untaken paths marked (SKIPPING).
package render
