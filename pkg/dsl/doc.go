/*
Package dsl provides a fluent builder for Tick stories.

It is the programmatic counterpart of story files: tests, examples and hosts
that generate stories use it instead of YAML. Without an explicit state
machine the builder lays out a flat one, one leaf per action, with the first
action's state as the initial state.

	b := dsl.New("greeting")
	b.Action("greet").Answer("welcome").Outputs("GREETED")
	b.Action("bye").Inputs("GREETED").Final()
	b.Intent("hello").Goal("greet")
	b.Intent("goodbye").Goal("bye")
	b.Unknown("sorry").Retries(2).Exit("greet")

	cfg, err := b.Build()
	// pass cfg to tick.New(...)
*/
package dsl
