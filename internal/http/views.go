package http

import (
	"sort"

	"github.com/shopspring/decimal"

	"txlens/internal/aggregate"
	"txlens/internal/core"
	"txlens/internal/ingest"
	"txlens/internal/services"
)

// Template data. Amounts are formatted here so templates stay logic-free.
type (
	merchantRow struct {
		Description string
		Amount      string
		Width       int
	}

	categoryRow struct {
		Category string
		Amount   string
		Share    string
		Width    int
	}

	monthRow struct {
		Month  string
		Amount string
	}

	overviewView struct {
		StoredRows   int64
		FilteredRows int
		Total        string
		TopMerchants []merchantRow
		Categories   []categoryRow
		Shares       []categoryRow
		Months       []monthRow
		Undated      string
		HasUndated   bool
		Chart        chartView
		Excluded     []string
	}

	matchRow struct {
		Date        string
		Description string
		Category    string
		Amount      string
	}

	merchantChoice struct {
		Description string
		Excluded    bool
	}

	searchView struct {
		Query     string
		Searched  bool
		Count     int
		Total     string
		Average   string
		HasMonths bool
		Months    []monthRow
		Chart     chartView
		Matches   []matchRow
		Merchants []merchantChoice
	}

	uploadFileRow struct {
		Name            string
		BatchID         string
		Rows            int
		Categorized     int
		UnparsedDates   int
		UnparsedAmounts int
		Warnings        []string
	}

	uploadView struct {
		Files     []uploadFileRow
		TotalRows int
		Error     string
	}
)

func newOverviewView(ov services.Overview) overviewView {
	view := overviewView{
		StoredRows:   ov.StoredRows,
		FilteredRows: ov.FilteredRows,
		Total:        core.FormatMoney(ov.Total),
		Undated:      core.FormatMoney(ov.Trend.Undated),
		HasUndated:   !ov.Trend.Undated.IsZero(),
		Chart:        trendChart(ov.Trend.Months, core.FormatMoney),
		Excluded:     ov.Excluded,
	}

	maxMerchant := decimal.Zero
	for _, m := range ov.TopMerchants {
		if m.Total.GreaterThan(maxMerchant) {
			maxMerchant = m.Total
		}
	}
	for _, m := range ov.TopMerchants {
		view.TopMerchants = append(view.TopMerchants, merchantRow{
			Description: m.Description,
			Amount:      core.FormatMoney(m.Total),
			Width:       barWidth(m.Total, maxMerchant),
		})
	}

	shares := make(map[string]aggregate.CategoryShare, len(ov.Shares))
	for _, s := range ov.Shares {
		shares[s.Category] = s
	}
	for _, c := range ov.Categories {
		row := categoryRow{Category: c.Category, Amount: core.FormatMoney(c.Total)}
		if s, ok := shares[c.Category]; ok {
			row.Share = formatShare(s.Share)
			row.Width = barWidth(s.Share, decimal.NewFromInt(1))
		}
		view.Categories = append(view.Categories, row)
	}
	for _, s := range ov.Shares {
		view.Shares = append(view.Shares, categoryRow{
			Category: s.Category,
			Amount:   core.FormatMoney(s.Total),
			Share:    formatShare(s.Share),
			Width:    barWidth(s.Share, decimal.NewFromInt(1)),
		})
	}

	view.Months = monthRows(ov.Trend.Months)
	return view
}

func newSearchView(report aggregate.MerchantReport, excluded []string) searchView {
	view := searchView{
		Query:     report.Query,
		Searched:  sanitizeInput(report.Query) != "",
		Count:     len(report.Matches),
		Total:     core.FormatMoney(report.Total),
		Average:   core.FormatMoney(report.MonthlyAverage),
		HasMonths: report.HasMonths,
		Months:    monthRows(report.Months),
		Chart:     trendChart(report.Months, core.FormatMoney),
	}

	isExcluded := make(map[string]bool, len(excluded))
	for _, e := range excluded {
		isExcluded[e] = true
	}

	seen := make(map[string]bool)
	for _, t := range report.Matches {
		amount := ""
		if t.Amount.Valid {
			amount = core.FormatMoney(t.Amount.Decimal)
		}
		view.Matches = append(view.Matches, matchRow{
			Date:        t.Date.String(),
			Description: t.Description,
			Category:    t.Category,
			Amount:      amount,
		})
		if !seen[t.Description] {
			seen[t.Description] = true
			view.Merchants = append(view.Merchants, merchantChoice{
				Description: t.Description,
				Excluded:    isExcluded[t.Description],
			})
		}
	}
	sort.Slice(view.Merchants, func(i, j int) bool {
		return view.Merchants[i].Description < view.Merchants[j].Description
	})
	return view
}

func newUploadView(results []ingest.Result, err error) uploadView {
	view := uploadView{}
	for _, r := range results {
		view.TotalRows += r.Rows
		view.Files = append(view.Files, uploadFileRow{
			Name:            r.File,
			BatchID:         r.BatchID,
			Rows:            r.Rows,
			Categorized:     r.Categorized,
			UnparsedDates:   r.UnparsedDates,
			UnparsedAmounts: r.UnparsedAmounts,
			Warnings:        r.Warnings,
		})
	}
	if err != nil {
		view.Error = err.Error()
	}
	return view
}

func monthRows(months []aggregate.MonthTotal) []monthRow {
	rows := make([]monthRow, 0, len(months))
	for _, m := range months {
		rows = append(rows, monthRow{Month: m.Month.String(), Amount: core.FormatMoney(m.Total)})
	}
	return rows
}
