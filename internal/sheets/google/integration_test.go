//go:build integration

package google

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"txlens/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_ReplaceTransactions(t *testing.T) {
	if os.Getenv("GOOGLE_SPREADSHEET_ID") == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewFromEnv(ctx)
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}

	txs := []core.Transaction{
		{Date: core.NewDate(2024, 1, 2), Description: "Integration test", Category: "Other",
			Amount: decimal.NewNullDecimal(decimal.RequireFromString("1.23"))},
	}
	if err := client.ReplaceTransactions(ctx, txs); err != nil {
		t.Fatalf("ReplaceTransactions: %v", err)
	}

	resp, err := client.svc.Spreadsheets.Values.Get(client.spreadsheetID, client.sheetName+"!A:D").Context(ctx).Do()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(resp.Values) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(resp.Values))
	}
}
