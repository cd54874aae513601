package ports

import "context"

// Tx is the storage transaction carried through a context. Only the
// persistence adapter that opened it knows its concrete type.
type Tx interface{}

// UnitOfWork runs fn so that every review document and object store write
// made with the returned context commits or rolls back together. A non-nil
// error from fn rolls back.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// InTx reports whether ctx carries an open transaction. Adapters use it to
// skip side caches for writes that may still roll back.
func InTx(ctx context.Context) bool {
	return TxFromContext(ctx) != nil
}
