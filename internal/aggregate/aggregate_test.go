package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"

	"txlens/internal/core"
)

func tx(date, desc, cat, amount string) core.Transaction {
	t := core.Transaction{Description: desc, Category: cat}
	if date != "" {
		d, err := core.ParseISODate(date)
		if err != nil {
			panic(err)
		}
		t.Date = d
	}
	if amount != "" {
		t.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	return t
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sample() []core.Transaction {
	return []core.Transaction{
		tx("2024-01-03", "Costco", "Groceries", "250.00"),
		tx("2024-01-05", "Starbucks", "Coffee", "4.50"),
		tx("2024-02-07", "Starbucks", "Coffee", "5.50"),
		tx("2024-02-10", "Uber", "Transportation", "18.00"),
		tx("2024-02-11", "Amazon", "Shopping", "60.00"),
		tx("2024-03-01", "Target", "Shopping", "35.00"),
		tx("2024-03-02", "Lyft", "Transportation", "12.00"),
		tx("", "Cash", "Other", "7.00"),
		tx("2024-03-09", "Refund", "Shopping", "-80.00"),
		tx("2024-03-10", "Mystery", "Other", ""),
	}
}

func TestFilterExactMatch(t *testing.T) {
	in := sample()
	got := Filter(in, []string{"Costco", "starbucks"})
	if len(got) != len(in)-1 {
		t.Fatalf("expected only exact 'Costco' dropped, got %d rows", len(got))
	}
	for _, r := range got {
		if r.Description == "Costco" {
			t.Fatal("Costco should be filtered")
		}
	}
	if len(Filter(in, nil)) != len(in) {
		t.Fatal("empty exclusion set must keep everything")
	}
}

func TestTopMerchantsExcludesCostco(t *testing.T) {
	txs := sample()

	top := TopMerchants(txs, DefaultTopMerchants)
	if len(top) != 5 || top[0].Description != "Costco" {
		t.Fatalf("Costco should lead before exclusion: %+v", top)
	}

	top = TopMerchants(Filter(txs, []string{"Costco"}), DefaultTopMerchants)
	for _, m := range top {
		if m.Description == "Costco" {
			t.Fatalf("Costco present after exclusion: %+v", top)
		}
	}
	if top[0].Description != "Amazon" || !top[0].Total.Equal(dec("60")) {
		t.Errorf("top merchant = %+v", top[0])
	}
}

func TestTopMerchantsTieBreak(t *testing.T) {
	txs := []core.Transaction{
		tx("2024-01-01", "Zeta", "", "10"),
		tx("2024-01-01", "Alpha", "", "10"),
		tx("2024-01-01", "Mid", "", "5"),
		tx("2024-01-01", "Alpha", "", "0"),
	}
	top := TopMerchants(txs, 2)
	if len(top) != 2 || top[0].Description != "Alpha" || top[1].Description != "Zeta" {
		t.Fatalf("unexpected order: %+v", top)
	}
	if all := TopMerchants(txs, 0); len(all) != 3 {
		t.Fatalf("n=0 should return all merchants, got %d", len(all))
	}
}

func TestCategoryTotalsAndShares(t *testing.T) {
	totals := CategoryTotals(sample())

	want := map[string]string{
		"Groceries":      "250",
		"Transportation": "30",
		"Shopping":       "15",
		"Coffee":         "10",
		"Other":          "7",
	}
	if len(totals) != len(want) {
		t.Fatalf("got %d categories: %+v", len(totals), totals)
	}
	for _, ct := range totals {
		if !ct.Total.Equal(dec(want[ct.Category])) {
			t.Errorf("%s = %s, want %s", ct.Category, ct.Total, want[ct.Category])
		}
	}
	if totals[0].Category != "Groceries" {
		t.Errorf("largest category first, got %s", totals[0].Category)
	}

	shares := CategoryShares([]CategoryTotal{
		{Category: "A", Total: dec("75")},
		{Category: "B", Total: dec("25")},
		{Category: "Refunds", Total: dec("-40")},
		{Category: "Zero", Total: decimal.Zero},
	})
	if len(shares) != 2 {
		t.Fatalf("only positive totals become slices: %+v", shares)
	}
	if !shares[0].Share.Equal(dec("0.75")) || !shares[1].Share.Equal(dec("0.25")) {
		t.Errorf("shares = %s, %s", shares[0].Share, shares[1].Share)
	}

	if CategoryShares([]CategoryTotal{{Category: "Refunds", Total: dec("-1")}}) != nil {
		t.Error("all non-positive totals should yield no slices")
	}
}

func TestMonthlyTrendReconciles(t *testing.T) {
	txs := sample()
	trend := MonthlyTrend(txs)

	if len(trend.Months) != 3 {
		t.Fatalf("expected 3 months, got %+v", trend.Months)
	}
	wantMonths := []string{"2024-01", "2024-02", "2024-03"}
	for i, m := range trend.Months {
		if m.Month.String() != wantMonths[i] {
			t.Errorf("month[%d] = %s, want %s", i, m.Month, wantMonths[i])
		}
	}
	if !trend.Undated.Equal(dec("7")) {
		t.Errorf("undated = %s, want 7", trend.Undated)
	}
	if !trend.Total().Equal(Total(txs)) {
		t.Errorf("months + undated = %s, total = %s", trend.Total(), Total(txs))
	}

	empty := MonthlyTrend(nil)
	if len(empty.Months) != 0 || !empty.Undated.IsZero() {
		t.Errorf("empty trend = %+v", empty)
	}
}

func TestSearchMerchant(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		matches   int
		total     string
		average   string
		hasMonths bool
	}{
		{"starbucks example", "Starbucks", 2, "10", "5", true},
		{"case insensitive", "starB", 2, "10", "5", true},
		{"no match", "Netflix", 0, "0", "0", false},
		{"blank query", "  ", 0, "0", "0", false},
		{"undated only", "cash", 1, "7", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := SearchMerchant(sample(), tt.query)
			if len(r.Matches) != tt.matches {
				t.Errorf("matches = %d, want %d", len(r.Matches), tt.matches)
			}
			if !r.Total.Equal(dec(tt.total)) {
				t.Errorf("total = %s, want %s", r.Total, tt.total)
			}
			if !r.MonthlyAverage.Equal(dec(tt.average)) {
				t.Errorf("average = %s, want %s", r.MonthlyAverage, tt.average)
			}
			if r.HasMonths != tt.hasMonths {
				t.Errorf("HasMonths = %v, want %v", r.HasMonths, tt.hasMonths)
			}
		})
	}
}

func TestNullAmountsCountAsZero(t *testing.T) {
	txs := []core.Transaction{tx("2024-05-01", "Mystery", "Other", ""), tx("2024-05-02", "Mystery", "Other", "3")}
	if !Total(txs).Equal(dec("3")) {
		t.Fatalf("total = %s", Total(txs))
	}
	top := TopMerchants(txs, 5)
	if len(top) != 1 || !top[0].Total.Equal(dec("3")) {
		t.Fatalf("top = %+v", top)
	}
}
