package memory

import (
	"context"
	"sync"

	"txlens/internal/core"
	ports "txlens/internal/sheets"
)

var _ ports.TransactionMirror = (*Mirror)(nil)

// Mirror keeps the last replaced snapshot in memory.
type Mirror struct {
	mu       sync.Mutex
	items    []core.Transaction
	replaced int
	err      error
}

func New() *Mirror {
	return &Mirror{}
}

// FailWith makes subsequent ReplaceTransactions calls return err. Pass nil
// to clear it.
func (m *Mirror) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mirror) ReplaceTransactions(ctx context.Context, txs []core.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items = append([]core.Transaction(nil), txs...)
	m.replaced++
	return nil
}

// Snapshot returns a copy of the mirrored rows.
func (m *Mirror) Snapshot() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.items...)
}

// Replaced reports how many successful replacements happened.
func (m *Mirror) Replaced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced
}
