package http

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"txlens/internal/aggregate"
)

// Trend chart geometry, in SVG user units.
const (
	chartWidth   = 600
	chartHeight  = 160
	chartPadding = 20
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// barWidth scales value against limit as a rounded percentage. Non-positive
// values get no bar; tiny positive values get a visible sliver.
func barWidth(value, limit decimal.Decimal) int {
	if !limit.IsPositive() || !value.IsPositive() {
		return 0
	}
	width := int(value.Mul(decimal.NewFromInt(100)).Div(limit).Round(0).IntPart())
	if width < 2 {
		width = 2
	}
	if width > 100 {
		width = 100
	}
	return width
}

// formatShare renders a [0,1] share as a percentage with one decimal.
func formatShare(share decimal.Decimal) string {
	return share.Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

type chartDot struct {
	X, Y   string
	Label  string
	Amount string
}

type chartView struct {
	Width, Height int
	Points        string // SVG polyline points
	BaselineY     string // y of the zero line
	Dots          []chartDot
	Empty         bool
}

// trendChart lays out monthly totals as an SVG polyline. The y range always
// includes zero so refunds dip below the baseline.
func trendChart(months []aggregate.MonthTotal, format func(decimal.Decimal) string) chartView {
	view := chartView{Width: chartWidth, Height: chartHeight}
	if len(months) == 0 {
		view.Empty = true
		return view
	}

	lo, hi := 0.0, 0.0
	values := make([]float64, len(months))
	for i, m := range months {
		v := m.Total.InexactFloat64()
		values[i] = v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	plotW := float64(chartWidth - 2*chartPadding)
	plotH := float64(chartHeight - 2*chartPadding)
	yOf := func(v float64) float64 {
		return chartPadding + (hi-v)/span*plotH
	}

	points := make([]string, 0, len(months))
	for i, m := range months {
		x := float64(chartWidth) / 2
		if len(months) > 1 {
			x = chartPadding + float64(i)*plotW/float64(len(months)-1)
		}
		y := yOf(values[i])
		xs, ys := fmt.Sprintf("%.1f", x), fmt.Sprintf("%.1f", y)
		points = append(points, xs+","+ys)
		view.Dots = append(view.Dots, chartDot{
			X:      xs,
			Y:      ys,
			Label:  m.Month.String(),
			Amount: format(m.Total),
		})
	}
	view.Points = strings.Join(points, " ")
	view.BaselineY = fmt.Sprintf("%.1f", yOf(0))
	return view
}
