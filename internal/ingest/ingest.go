// Package ingest turns uploaded CSV exports into normalized transactions and
// appends them to the store.
//
// Ingestion is best effort: missing columns are synthesized as blanks with a
// warning, and unparseable dates or amounts become null values instead of
// failing the batch.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"txlens/internal/categorizer"
	"txlens/internal/core"
)

// ErrNoHeader is returned for a file that is empty or holds only blank
// lines.
var ErrNoHeader = errors.New("file has no header row")

// ColumnMapping names the header used for each logical column. Header
// matching is case-sensitive.
type ColumnMapping struct {
	Date        string
	Description string
	Category    string
	Amount      string
}

// DefaultColumnMapping expects the headers Date, Description, Category and
// Amount.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		Date:        "Date",
		Description: "Description",
		Category:    "Category",
		Amount:      "Amount",
	}
}

// Appender persists a normalized batch.
type Appender interface {
	AppendTransactions(ctx context.Context, txs []core.Transaction) ([]int64, error)
}

// Batch is the normalized, not yet persisted, content of one file.
type Batch struct {
	Transactions    []core.Transaction
	Warnings        []string
	UnparsedDates   int
	UnparsedAmounts int
	Categorized     int // rows whose category came from the rule set
}

// Result describes one ingested file.
type Result struct {
	File            string
	BatchID         string
	Rows            int
	IDs             []int64
	Warnings        []string
	UnparsedDates   int
	UnparsedAmounts int
	Categorized     int
}

// Source is one uploaded file.
type Source struct {
	Name   string
	Reader io.Reader
}

// Ingester parses uploaded files, categorizes blank rows and appends each
// file to the store as one batch.
type Ingester struct {
	store       Appender
	categorizer *categorizer.Categorizer
	mapping     ColumnMapping
}

// NewIngester uses the built-in keyword rules when c is nil.
func NewIngester(store Appender, c *categorizer.Categorizer, mapping ColumnMapping) *Ingester {
	if c == nil {
		c = categorizer.Default()
	}
	return &Ingester{
		store:       store,
		categorizer: c,
		mapping:     mapping,
	}
}

// ReadCSV reads a header row and all records. Short rows are allowed.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrNoHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}
	return header, records, nil
}

// Normalize maps raw records onto the four logical columns.
func (in *Ingester) Normalize(header []string, records [][]string) Batch {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var b Batch
	col := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		b.Warnings = append(b.Warnings, fmt.Sprintf("Column '%s' missing from uploaded file. Filling with blanks.", name))
		return -1
	}
	dateIdx := col(in.mapping.Date)
	descIdx := col(in.mapping.Description)
	catIdx := col(in.mapping.Category)
	amtIdx := col(in.mapping.Amount)

	cell := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	b.Transactions = make([]core.Transaction, 0, len(records))
	for _, rec := range records {
		t := core.Transaction{
			Description: cell(rec, descIdx),
			Category:    cell(rec, catIdx),
		}

		if raw := cell(rec, dateIdx); raw != "" {
			if d, ok := parseDate(raw); ok {
				t.Date = d
			} else {
				b.UnparsedDates++
			}
		}

		if raw := cell(rec, amtIdx); raw != "" {
			if a, err := core.ParseAmount(raw); err == nil {
				t.Amount = decimal.NewNullDecimal(a)
			} else {
				b.UnparsedAmounts++
			}
		}

		if t.Category == "" {
			t.Category = in.categorizer.Categorize(t.Description)
			b.Categorized++
		}

		b.Transactions = append(b.Transactions, t)
	}

	return b
}

// Ingest parses one CSV file and appends its rows to the store.
func (in *Ingester) Ingest(ctx context.Context, r io.Reader, name string) (Result, error) {
	res := Result{File: name, BatchID: uuid.NewString()}

	header, records, err := ReadCSV(r)
	if err != nil {
		return res, fmt.Errorf("parse %s: %w", name, err)
	}

	batch := in.Normalize(header, records)
	res.Warnings = batch.Warnings
	res.UnparsedDates = batch.UnparsedDates
	res.UnparsedAmounts = batch.UnparsedAmounts
	res.Categorized = batch.Categorized

	for _, w := range batch.Warnings {
		slog.WarnContext(ctx, "Ingestion warning", "file", name, "batch_id", res.BatchID, "warning", w)
	}

	ids, err := in.store.AppendTransactions(ctx, batch.Transactions)
	if err != nil {
		return res, fmt.Errorf("append %s: %w", name, err)
	}
	res.IDs = ids
	res.Rows = len(ids)

	slog.InfoContext(ctx, "File ingested",
		"file", name,
		"batch_id", res.BatchID,
		"rows", res.Rows,
		"categorized", res.Categorized,
		"unparsed_dates", res.UnparsedDates,
		"unparsed_amounts", res.UnparsedAmounts)

	return res, nil
}

// IngestAll ingests files one after another. It stops at the first failing
// file and returns the results of the files already ingested.
func (in *Ingester) IngestAll(ctx context.Context, sources []Source) ([]Result, error) {
	results := make([]Result, 0, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := in.Ingest(ctx, src.Reader, src.Name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
