/*
Package dsl provides a fluent Go builder for Ramal flows.

It is the programmatic counterpart of YAML flow documents and is handy for
tests, examples and flows generated at runtime.

Example usage:

	b := dsl.New("politica-datos").Name("Politica de datos")

	b.Message("start", "Hola {{ debtor.name | cliente }}, aceptas la politica de datos?").
		Buttons("Sí", "No").
		ReplyTo("check")

	b.Condition("check").
		When("user_response", "contains_ignore_case", "si", "accepted").
		Default("rejected")

	b.Message("accepted", "Gracias!")
	b.Message("rejected", "Te conectamos con un asesor.").Handoff("policy_rejected")

	graph, err := b.Graph()
*/
package dsl
