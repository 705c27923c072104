package sheets

import (
	"context"

	"txlens/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionMirror holds a copy of the filtered transaction view.
	TransactionMirror interface {
		// ReplaceTransactions overwrites the mirror with txs.
		ReplaceTransactions(ctx context.Context, txs []core.Transaction) error
	}
)
