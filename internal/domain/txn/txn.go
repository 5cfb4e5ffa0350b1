// Package txn abstracts the one-operation-one-transaction contract the
// services rely on for table/order consistency.
package txn

import "context"

// Runner executes fn inside a single transaction with isolation strong
// enough to detect write conflicts (serializable or equivalent). The
// transaction handle travels in the context; repositories route their
// queries through it when present. fn returning an error rolls back.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func (f RunnerFunc) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Passthrough runs fn directly with no transaction. Used by tests whose
// fakes guarantee their own atomicity.
var Passthrough Runner = RunnerFunc(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
