// Package condition evaluates the predicates of condition nodes.
//
// Evaluation is a pure function of an operator, the actual value read from
// the session and the expected value declared in the flow. Values are coerced
// to strings before comparison, so "1" equals 1. Numeric operators parse both
// sides as decimal numbers.
package condition
