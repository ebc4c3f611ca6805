/*
Package dsl provides a fluent builder for constructing behavioral programs in Go.

It produces the same bprog.Definition a YAML program file decodes to, which is
useful for tests and for generating programs on the fly.

Example usage:

	b := dsl.New("hot-cold")
	b.Thread("add-hot").
		Step(2).Request("hot").
		Step(3).Request("hot")
	b.Thread("add-cold").
		Step(6).Request("cold").
		Step(7).Request("cold")
	b.Thread("interleave").Loop().
		Step(10).WaitFor("hot").Block("cold").
		Step(12).WaitFor("cold").Block("hot")

	prog, err := b.Build()
	// ... pass prog to rewind.New(...)
*/
package dsl
