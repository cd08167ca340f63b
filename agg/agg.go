// Package agg provides the aggregation functions workers fold chunks
// with and the manager combines partials with. Every op must be
// associative and commutative with the given identity; that contract is
// what makes the result independent of chunk boundaries and arrival
// order, and it is not checked at runtime.
package agg

import "math"

// Op is a named binary aggregation over uint64.
type Op struct {
	Name     string
	Identity uint64
	Combine  func(a, b uint64) uint64
}

var registry = map[string]Op{}

// Register adds an op to the registry, replacing any op with the same
// name.
func Register(op Op) {
	registry[op.Name] = op
}

// Lookup resolves an op identifier as carried in requests and tasks.
func Lookup(name string) (Op, bool) {
	op, ok := registry[name]
	return op, ok
}

// Fold reduces values with op, seeded with the identity so an empty
// slice yields the identity element.
func Fold(values []uint64, op Op) uint64 {
	acc := op.Identity
	for _, v := range values {
		acc = op.Combine(acc, v)
	}
	return acc
}

// Built-in ops. Sum and product wrap on overflow.
var (
	Sum = Op{Name: "sum", Identity: 0, Combine: func(a, b uint64) uint64 { return a + b }}

	Product = Op{Name: "product", Identity: 1, Combine: func(a, b uint64) uint64 { return a * b }}

	Max = Op{Name: "max", Identity: 0, Combine: func(a, b uint64) uint64 {
		if a > b {
			return a
		}
		return b
	}}

	Min = Op{Name: "min", Identity: math.MaxUint64, Combine: func(a, b uint64) uint64 {
		if a < b {
			return a
		}
		return b
	}}
)

func init() {
	Register(Sum)
	Register(Product)
	Register(Max)
	Register(Min)
}
