package http

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"txlens/internal/aggregate"
	"txlens/internal/core"
	"txlens/internal/services"
)

func TestBarWidth(t *testing.T) {
	tests := []struct {
		value, limit string
		want         int
	}{
		{"50", "100", 50},
		{"100", "100", 100},
		{"0.1", "100", 2},
		{"-5", "100", 0},
		{"5", "0", 0},
		{"150", "100", 100},
		{"33.5", "100", 34},
	}

	for _, tt := range tests {
		got := barWidth(decimal.RequireFromString(tt.value), decimal.RequireFromString(tt.limit))
		if got != tt.want {
			t.Errorf("barWidth(%s, %s) = %d, want %d", tt.value, tt.limit, got, tt.want)
		}
	}
}

func TestTrendChart(t *testing.T) {
	months := []aggregate.MonthTotal{
		{Month: core.Month{Year: 2024, Month: time.January}, Total: decimal.NewFromInt(100)},
		{Month: core.Month{Year: 2024, Month: time.February}, Total: decimal.NewFromInt(0)},
		{Month: core.Month{Year: 2024, Month: time.March}, Total: decimal.NewFromInt(50)},
	}

	chart := trendChart(months, core.FormatMoney)
	if chart.Empty {
		t.Fatal("chart unexpectedly empty")
	}
	// Highest value at the top padding, zero on the bottom padding.
	want := "20.0,20.0 300.0,140.0 580.0,80.0"
	if chart.Points != want {
		t.Errorf("Points = %q, want %q", chart.Points, want)
	}
	if chart.BaselineY != "140.0" {
		t.Errorf("BaselineY = %q, want 140.0", chart.BaselineY)
	}
	if len(chart.Dots) != 3 || chart.Dots[0].Label != "2024-01" || chart.Dots[0].Amount != "$100.00" {
		t.Errorf("Dots = %+v", chart.Dots)
	}

	if !trendChart(nil, core.FormatMoney).Empty {
		t.Error("chart without months should be empty")
	}

	single := trendChart(months[:1], core.FormatMoney)
	if !strings.HasPrefix(single.Points, "300.0,") {
		t.Errorf("single month should be centered, got %q", single.Points)
	}
}

func TestNewOverviewView_SharesOnlyPositiveCategories(t *testing.T) {
	categories := []aggregate.CategoryTotal{
		{Category: "Coffee", Total: decimal.NewFromInt(30)},
		{Category: "Refunds", Total: decimal.NewFromInt(-20)},
		{Category: "Groceries", Total: decimal.NewFromInt(90)},
	}
	ov := services.Overview{
		Total:      decimal.NewFromInt(100),
		Categories: categories,
		Shares:     aggregate.CategoryShares(categories),
		Trend:      aggregate.Trend{Undated: decimal.Zero},
	}

	view := newOverviewView(ov)
	if len(view.Categories) != 3 {
		t.Fatalf("got %d category rows, want 3", len(view.Categories))
	}
	if len(view.Shares) != 2 {
		t.Fatalf("got %d share rows, want 2", len(view.Shares))
	}
	if view.Shares[0].Share != "25.0%" || view.Shares[1].Share != "75.0%" {
		t.Errorf("shares = %q, %q", view.Shares[0].Share, view.Shares[1].Share)
	}
	if view.Categories[1].Share != "" || view.Categories[1].Width != 0 {
		t.Errorf("negative category should have no share, got %+v", view.Categories[1])
	}
	if view.Categories[1].Amount != "-$20.00" {
		t.Errorf("refund amount = %q", view.Categories[1].Amount)
	}
	if view.HasUndated {
		t.Error("HasUndated should be false")
	}
}

func TestNewSearchView(t *testing.T) {
	txs := []core.Transaction{
		{Date: core.NewDate(2024, 1, 3), Description: "Starbucks #12", Amount: decimal.NewNullDecimal(decimal.RequireFromString("4.50"))},
		{Date: core.NewDate(2024, 2, 3), Description: "Starbucks", Amount: decimal.NewNullDecimal(decimal.RequireFromString("5.50"))},
		{Description: "Starbucks"},
	}
	report := aggregate.SearchMerchant(txs, "starbucks")

	view := newSearchView(report, []string{"Starbucks"})
	if !view.Searched || view.Count != 3 {
		t.Fatalf("Searched=%v Count=%d", view.Searched, view.Count)
	}
	if view.Total != "$10.00" || view.Average != "$5.00" {
		t.Errorf("Total=%s Average=%s", view.Total, view.Average)
	}
	if len(view.Merchants) != 2 {
		t.Fatalf("got %d merchants, want 2 distinct", len(view.Merchants))
	}
	if view.Merchants[0].Description != "Starbucks" || !view.Merchants[0].Excluded {
		t.Errorf("Merchants[0] = %+v", view.Merchants[0])
	}
	if view.Merchants[1].Excluded {
		t.Errorf("Merchants[1] should not be excluded")
	}
	if view.Matches[2].Date != "" || view.Matches[2].Amount != "" {
		t.Errorf("undated blank-amount match = %+v", view.Matches[2])
	}
}
