// Package aggregate computes the dashboard views from a transaction set.
//
// Every function is pure and recomputes from its input; nothing is cached
// between calls. Missing amounts count as zero.
package aggregate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"txlens/internal/core"
)

// DefaultTopMerchants is the number of merchants shown on the dashboard.
const DefaultTopMerchants = 5

type (
	MerchantTotal struct {
		Description string
		Total       decimal.Decimal
	}

	CategoryTotal struct {
		Category string
		Total    decimal.Decimal
	}

	// CategoryShare is one slice of the category breakdown. Share is in [0,1].
	CategoryShare struct {
		Category string
		Total    decimal.Decimal
		Share    decimal.Decimal
	}

	MonthTotal struct {
		Month core.Month
		Total decimal.Decimal
	}

	// Trend is the per-month series plus the sum of undated rows, so that
	// the months and Undated together add up to the overall total.
	Trend struct {
		Months  []MonthTotal
		Undated decimal.Decimal
	}

	MerchantReport struct {
		Query          string
		Matches        []core.Transaction
		Total          decimal.Decimal
		MonthlyAverage decimal.Decimal
		Months         []MonthTotal
		HasMonths      bool
	}
)

// Filter drops transactions whose description exactly equals an excluded
// merchant. The input is not modified.
func Filter(txs []core.Transaction, excluded []string) []core.Transaction {
	if len(excluded) == 0 {
		out := make([]core.Transaction, len(txs))
		copy(out, txs)
		return out
	}

	skip := make(map[string]struct{}, len(excluded))
	for _, m := range excluded {
		skip[m] = struct{}{}
	}

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if _, ok := skip[t.Description]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Total sums every amount.
func Total(txs []core.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txs {
		sum = sum.Add(t.Value())
	}
	return sum
}

// TopMerchants groups by description and returns the n largest totals.
// Ties are ordered by description. n <= 0 returns every merchant.
func TopMerchants(txs []core.Transaction, n int) []MerchantTotal {
	sums, order := groupBy(txs, func(t core.Transaction) string { return t.Description })

	out := make([]MerchantTotal, 0, len(order))
	for _, k := range order {
		out = append(out, MerchantTotal{Description: k, Total: sums[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Description < out[j].Description
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CategoryTotals groups by category, largest total first.
func CategoryTotals(txs []core.Transaction) []CategoryTotal {
	sums, order := groupBy(txs, func(t core.Transaction) string { return t.Category })

	out := make([]CategoryTotal, 0, len(order))
	for _, k := range order {
		out = append(out, CategoryTotal{Category: k, Total: sums[k]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// CategoryShares converts totals into proportions. Only strictly positive
// totals become slices; zero and negative categories are left out so the
// shares always sum to one.
func CategoryShares(totals []CategoryTotal) []CategoryShare {
	positive := decimal.Zero
	for _, ct := range totals {
		if ct.Total.IsPositive() {
			positive = positive.Add(ct.Total)
		}
	}
	if !positive.IsPositive() {
		return nil
	}

	out := make([]CategoryShare, 0, len(totals))
	for _, ct := range totals {
		if !ct.Total.IsPositive() {
			continue
		}
		out = append(out, CategoryShare{
			Category: ct.Category,
			Total:    ct.Total,
			Share:    ct.Total.Div(positive),
		})
	}
	return out
}

// MonthlyTrend sums amounts per calendar month, ascending. Rows without a
// date are accumulated into Undated.
func MonthlyTrend(txs []core.Transaction) Trend {
	sums := make(map[core.Month]decimal.Decimal)
	trend := Trend{Undated: decimal.Zero}

	for _, t := range txs {
		if !t.HasDate() {
			trend.Undated = trend.Undated.Add(t.Value())
			continue
		}
		m := t.Date.Month()
		cur, ok := sums[m]
		if !ok {
			cur = decimal.Zero
		}
		sums[m] = cur.Add(t.Value())
	}

	trend.Months = make([]MonthTotal, 0, len(sums))
	for m, v := range sums {
		trend.Months = append(trend.Months, MonthTotal{Month: m, Total: v})
	}
	sort.Slice(trend.Months, func(i, j int) bool {
		return trend.Months[i].Month.Before(trend.Months[j].Month)
	})
	return trend
}

// Total returns the months plus the undated remainder.
func (tr Trend) Total() decimal.Decimal {
	sum := tr.Undated
	for _, m := range tr.Months {
		sum = sum.Add(m.Total)
	}
	return sum
}

// SearchMerchant matches descriptions containing query, ignoring case.
// It is meant to run on the unfiltered set so excluded merchants stay
// searchable. The monthly average divides the sum of the monthly totals by
// the number of distinct months; undated matches count toward Total only.
func SearchMerchant(txs []core.Transaction, query string) MerchantReport {
	report := MerchantReport{
		Query:          query,
		Total:          decimal.Zero,
		MonthlyAverage: decimal.Zero,
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return report
	}

	for _, t := range txs {
		if strings.Contains(strings.ToLower(t.Description), needle) {
			report.Matches = append(report.Matches, t)
		}
	}
	report.Total = Total(report.Matches)

	trend := MonthlyTrend(report.Matches)
	report.Months = trend.Months
	if len(trend.Months) > 0 {
		report.HasMonths = true
		monthly := trend.Total().Sub(trend.Undated)
		report.MonthlyAverage = monthly.Div(decimal.NewFromInt(int64(len(trend.Months))))
	}
	return report
}

// groupBy sums by key and returns the keys in first-seen order.
func groupBy(txs []core.Transaction, key func(core.Transaction) string) (map[string]decimal.Decimal, []string) {
	sums := make(map[string]decimal.Decimal)
	var order []string
	for _, t := range txs {
		k := key(t)
		cur, ok := sums[k]
		if !ok {
			order = append(order, k)
			cur = decimal.Zero
		}
		sums[k] = cur.Add(t.Value())
	}
	return sums, order
}
