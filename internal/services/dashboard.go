package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"txlens/internal/aggregate"
	"txlens/internal/amqp"
	"txlens/internal/categorizer"
	"txlens/internal/core"
	"txlens/internal/export"
	"txlens/internal/ingest"
)

var ErrEmptyMerchant = errors.New("merchant name is required")

// DefaultExportPath is where ExportCSV writes when no path is configured.
const DefaultExportPath = "filtered_transactions.csv"

type (
	// Store is the persistence the dashboard needs.
	Store interface {
		ingest.Appender
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		ExcludeMerchant(ctx context.Context, merchant string) error
		ListExcluded(ctx context.Context) ([]string, error)
		ReinstateAll(ctx context.Context) (int64, error)
		Ping(ctx context.Context) error
		Close() error
	}

	// Publisher announces view changes to other processes.
	Publisher interface {
		PublishViewChanged(ctx context.Context, reason string, rows int64) error
		Close() error
	}

	Options struct {
		Categorizer  *categorizer.Categorizer // nil uses the built-in rules
		Mapping      ingest.ColumnMapping     // zero value uses the default headers
		TopMerchants int
		ExportPath   string
		Publisher    Publisher // optional
	}

	// Overview is everything the dashboard renders from the filtered view.
	Overview struct {
		StoredRows   int64
		FilteredRows int
		Total        decimal.Decimal
		TopMerchants []aggregate.MerchantTotal
		Categories   []aggregate.CategoryTotal
		Shares       []aggregate.CategoryShare
		Trend        aggregate.Trend
		Excluded     []string
	}
)

// Dashboard orchestrates ingestion, exclusion and aggregation over the store.
// Every read recomputes from the store; nothing is cached.
type Dashboard struct {
	store      Store
	ingester   *ingest.Ingester
	publisher  Publisher
	topN       int
	exportPath string
}

func NewDashboard(store Store, opts Options) *Dashboard {
	if opts.Mapping == (ingest.ColumnMapping{}) {
		opts.Mapping = ingest.DefaultColumnMapping()
	}
	if opts.TopMerchants <= 0 {
		opts.TopMerchants = aggregate.DefaultTopMerchants
	}
	if opts.ExportPath == "" {
		opts.ExportPath = DefaultExportPath
	}
	return &Dashboard{
		store:      store,
		ingester:   ingest.NewIngester(store, opts.Categorizer, opts.Mapping),
		publisher:  opts.Publisher,
		topN:       opts.TopMerchants,
		exportPath: opts.ExportPath,
	}
}

// Ingest appends the files in order. On error the results of the files
// already stored are returned along with it.
func (s *Dashboard) Ingest(ctx context.Context, sources []ingest.Source) ([]ingest.Result, error) {
	results, err := s.ingester.IngestAll(ctx, sources)

	var rows int64
	for _, r := range results {
		rows += int64(r.Rows)
	}
	if rows > 0 {
		s.publish(ctx, amqp.ReasonIngest, rows)
	}

	if err != nil {
		return results, fmt.Errorf("ingest: %w", err)
	}
	return results, nil
}

// Overview reads the store and computes the dashboard aggregates over the
// filtered view.
func (s *Dashboard) Overview(ctx context.Context) (Overview, error) {
	all, excluded, err := s.load(ctx)
	if err != nil {
		return Overview{}, err
	}

	filtered := aggregate.Filter(all, excluded)
	categories := aggregate.CategoryTotals(filtered)

	return Overview{
		StoredRows:   int64(len(all)),
		FilteredRows: len(filtered),
		Total:        aggregate.Total(filtered),
		TopMerchants: aggregate.TopMerchants(filtered, s.topN),
		Categories:   categories,
		Shares:       aggregate.CategoryShares(categories),
		Trend:        aggregate.MonthlyTrend(filtered),
		Excluded:     excluded,
	}, nil
}

// Search runs a merchant search over every stored row, excluded or not.
func (s *Dashboard) Search(ctx context.Context, query string) (aggregate.MerchantReport, error) {
	all, err := s.store.ListTransactions(ctx)
	if err != nil {
		return aggregate.MerchantReport{}, fmt.Errorf("search: %w", err)
	}
	return aggregate.SearchMerchant(all, query), nil
}

// ExcludeMerchant hides an exact description from the dashboard aggregates.
func (s *Dashboard) ExcludeMerchant(ctx context.Context, merchant string) error {
	merchant = strings.TrimSpace(merchant)
	if merchant == "" {
		return ErrEmptyMerchant
	}
	if err := s.store.ExcludeMerchant(ctx, merchant); err != nil {
		return err
	}
	s.publish(ctx, amqp.ReasonExclude, 1)
	return nil
}

// ListExcluded returns the removed merchants sorted by name.
func (s *Dashboard) ListExcluded(ctx context.Context) ([]string, error) {
	return s.store.ListExcluded(ctx)
}

// ReinstateAll clears every exclusion and returns how many were removed.
func (s *Dashboard) ReinstateAll(ctx context.Context) (int64, error) {
	n, err := s.store.ReinstateAll(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publish(ctx, amqp.ReasonReinstate, n)
	}
	return n, nil
}

// AllTransactions returns every stored row.
func (s *Dashboard) AllTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

// FilteredTransactions returns the stored rows minus excluded merchants.
func (s *Dashboard) FilteredTransactions(ctx context.Context) ([]core.Transaction, error) {
	all, excluded, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.Filter(all, excluded), nil
}

// ExportCSV writes the filtered view to the configured export path.
func (s *Dashboard) ExportCSV(ctx context.Context) (string, int, error) {
	txs, err := s.FilteredTransactions(ctx)
	if err != nil {
		return "", 0, err
	}
	if err := export.WriteCSVFile(s.exportPath, txs); err != nil {
		return "", 0, fmt.Errorf("export csv: %w", err)
	}
	slog.InfoContext(ctx, "Filtered view exported", "path", s.exportPath, "rows", len(txs))
	return s.exportPath, len(txs), nil
}

// WriteCSV streams the filtered view as CSV.
func (s *Dashboard) WriteCSV(ctx context.Context, w io.Writer) error {
	txs, err := s.FilteredTransactions(ctx)
	if err != nil {
		return err
	}
	return export.WriteCSV(w, txs)
}

// WriteXLSX streams the filtered view as an Excel workbook.
func (s *Dashboard) WriteXLSX(ctx context.Context, w io.Writer) error {
	txs, err := s.FilteredTransactions(ctx)
	if err != nil {
		return err
	}
	return export.WriteXLSX(w, txs)
}

// ExportPath is where ExportCSV writes.
func (s *Dashboard) ExportPath() string { return s.exportPath }

// Ping reports whether the store is reachable; /readyz uses it.
func (s *Dashboard) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Dashboard) load(ctx context.Context) ([]core.Transaction, []string, error) {
	all, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, nil, err
	}
	excluded, err := s.store.ListExcluded(ctx)
	if err != nil {
		return nil, nil, err
	}
	return all, excluded, nil
}

func (s *Dashboard) publish(ctx context.Context, reason string, rows int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishViewChanged(ctx, reason, rows); err != nil {
		// The change is already stored; the mirror catches up on its next full sync.
		slog.ErrorContext(ctx, "Failed to publish view changed message",
			"reason", reason, "rows", rows, "error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *Dashboard) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close dashboard service: %w", errors.Join(errs...))
	}

	return nil
}
