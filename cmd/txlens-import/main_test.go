package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"txlens/internal/config"
	"txlens/internal/export"
)

const sampleCSV = `Date,Description,Category,Amount
2024-01-03,Starbucks,,4.50
2024-01-09,Costco,Groceries,120.00
2024-02-02,Starbucks,,5.50
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		SQLiteDBPath:      filepath.Join(dir, "txlens.db"),
		ExportPath:        filepath.Join(dir, "filtered_transactions.csv"),
		TopMerchants:      5,
		ColumnDate:        "Date",
		ColumnDescription: "Description",
		ColumnCategory:    "Category",
		ColumnAmount:      "Amount",
	}
}

func runCmd(t *testing.T, cfg *config.Config, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), cfg, args, &out); err != nil {
		t.Fatalf("run %v: %v", args, err)
	}
	return out.String()
}

func TestRun_ImportSummarySearch(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "january.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	out := runCmd(t, cfg, "import", path)
	if !strings.Contains(out, "january.csv: 3 rows") {
		t.Errorf("import output = %q", out)
	}

	out = runCmd(t, cfg, "summary")
	for _, want := range []string{"Stored rows: 3", "Total: $130.00", "Costco", "2024-01", "2024-02"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}

	out = runCmd(t, cfg, "search", "starbucks")
	for _, want := range []string{"Matches: 2", "Total: $10.00", "Monthly average: $5.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("search missing %q:\n%s", want, out)
		}
	}
}

func TestRun_ExcludeExportReinstate(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "tx.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	runCmd(t, cfg, "import", path)

	if out := runCmd(t, cfg, "exclude", "Costco"); !strings.Contains(out, `Removed "Costco"`) {
		t.Errorf("exclude output = %q", out)
	}
	if out := runCmd(t, cfg, "summary"); !strings.Contains(out, "Total: $10.00") {
		t.Errorf("summary after exclude:\n%s", out)
	}

	out := runCmd(t, cfg, "export")
	if !strings.Contains(out, "Exported 2 rows") {
		t.Errorf("export output = %q", out)
	}
	data, err := os.ReadFile(cfg.ExportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if strings.Contains(string(data), "Costco") {
		t.Error("excluded merchant written to export")
	}

	xlsxPath := filepath.Join(t.TempDir(), "view.xlsx")
	runCmd(t, cfg, "export", xlsxPath)
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("xlsx rows = %d, want header + 2", len(rows))
	}

	if out := runCmd(t, cfg, "reinstate"); !strings.Contains(out, "Reinstated 1 merchants") {
		t.Errorf("reinstate output = %q", out)
	}
}

func TestRun_Usage(t *testing.T) {
	cfg := testConfig(t)
	tests := [][]string{
		nil,
		{"unknown"},
		{"import"},
		{"exclude"},
		{"search"},
		{"-bogus"},
	}

	for _, args := range tests {
		err := run(context.Background(), cfg, args, &bytes.Buffer{})
		if !errors.Is(err, errUsage) {
			t.Errorf("run %v: expected usage error, got %v", args, err)
		}
	}
}
