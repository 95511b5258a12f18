package ports

import "context"

// Tx is an opaque transaction handle owned by the persistence adapter
// (a *gorm.DB for the sql adapters).
type Tx interface{}

// UnitOfWork runs fn inside one database transaction.
// A non-nil error from fn rolls back, nil commits.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}
