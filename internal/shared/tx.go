package shared

import "context"

// TxRunner is the transaction boundary every interactor wraps its use case
// in. Load entities, check permission, mutate and side-effect commit as one
// unit, or everything rolls back on the first error.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
