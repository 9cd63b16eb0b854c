// Package hcl provides the HCL implementation of the config.Loader
// interface. A policy file holds up to one each of the `alignment`,
// `layout` and `grammar` blocks; every attribute is optional and overrides
// the matching field of config.Default.
//
// Attribute expressions are evaluated with an `env` object holding the
// process environment, plus a few string and collection functions:
//
//	layout {
//	  show_memory  = env.ETP_SHOW_MEMORY == "1"
//	  stack_column = 48
//	}
//	alignment {
//	  call_opcodes = concat(["exec", "call"], ["syscall"])
//	}
package hcl
