package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"txlens/internal/amqp"
	"txlens/internal/core"
	"txlens/internal/sheets"
)

// ViewSource yields the current filtered transaction view.
type ViewSource interface {
	FilteredTransactions(ctx context.Context) ([]core.Transaction, error)
}

// SyncWorker mirrors the filtered view into a spreadsheet. Each sync is a
// full replacement, so duplicate or reordered messages are harmless.
type SyncWorker struct {
	source ViewSource
	mirror sheets.TransactionMirror

	mu       sync.Mutex // serializes mirror writes
	lastSync time.Time
	lastRows int
}

func NewSyncWorker(source ViewSource, mirror sheets.TransactionMirror) *SyncWorker {
	return &SyncWorker{
		source: source,
		mirror: mirror,
	}
}

// HandleViewChanged processes a single view changed message from AMQP.
func (w *SyncWorker) HandleViewChanged(ctx context.Context, msg *amqp.ViewChangedMessage) error {
	slog.InfoContext(ctx, "Processing view changed message",
		"message_id", msg.ID,
		"reason", msg.Reason,
		"rows", msg.Rows)

	// Messages published before the last completed sync are already covered.
	if !msg.Timestamp.IsZero() && msg.Timestamp.Before(w.LastSync()) {
		slog.DebugContext(ctx, "View change already mirrored", "message_id", msg.ID)
		return nil
	}

	return w.SyncNow(ctx, msg.Reason)
}

// SyncNow reads the filtered view and replaces the mirror with it.
func (w *SyncWorker) SyncNow(ctx context.Context, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	started := time.Now()
	txs, err := w.source.FilteredTransactions(ctx)
	if err != nil {
		return fmt.Errorf("read filtered view: %w", err)
	}

	if err := w.mirror.ReplaceTransactions(ctx, txs); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}

	w.lastSync = started
	w.lastRows = len(txs)

	slog.InfoContext(ctx, "Filtered view mirrored",
		"reason", reason,
		"rows", len(txs),
		"duration", time.Since(started))

	return nil
}

// Run performs a full sync every interval until ctx is cancelled. Failures
// are logged and retried on the next tick.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.SyncNow(ctx, amqp.ReasonResync); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}

// LastSync returns when the last successful sync started.
func (w *SyncWorker) LastSync() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSync
}

// LastRows returns how many rows the last successful sync wrote.
func (w *SyncWorker) LastRows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRows
}
