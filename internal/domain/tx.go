package domain

import "context"

// Tx is an opaque database transaction handle. Repositories that accept one
// assert it to their concrete transaction type; passing a handle from a
// different store is a programming error.
type Tx interface{}

// TxManager runs fn inside a single database transaction. The transaction is
// committed when fn returns nil and rolled back otherwise. All state-machine
// transitions execute through this so that the row-lock re-read, state
// assertion, write, history entry and staged notifications commit or roll
// back together.
type TxManager interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}
