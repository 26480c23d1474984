// Package chart renders the running balance of an account as a PNG line chart.
package chart

import (
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
)

// Default image size in pixels.
const (
	DefaultWidth  = 800
	DefaultHeight = 400
)

// RenderBalance writes a PNG of the balance points to w.
func RenderBalance(w io.Writer, title string, points []ledger.Point) error {
	if len(points) == 0 {
		return fmt.Errorf("RenderBalance: no points")
	}

	xs := make([]time.Time, 0, len(points))
	ys := make([]float64, 0, len(points))
	lo, hi := points[0].Balance, points[0].Balance
	for _, p := range points {
		day, err := time.Parse(domain.DateLayout, p.Date)
		if err != nil {
			return fmt.Errorf("RenderBalance: date %q: %w", p.Date, err)
		}
		xs = append(xs, day)
		ys = append(ys, p.Balance)
		lo = min(lo, p.Balance)
		hi = max(hi, p.Balance)
	}

	// A single point or a flat line still needs two x values and a
	// non-empty y range.
	if len(xs) == 1 {
		xs = append(xs, xs[0].AddDate(0, 0, 1))
		ys = append(ys, ys[0])
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	graph := chart.Chart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  DefaultWidth,
		Height: DefaultHeight,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: func(v interface{}) string {
				if vf, isFloat := v.(float64); isFloat {
					return fmt.Sprintf("%.2f", vf)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Balance",
				XValues: xs,
				YValues: ys,
			},
		},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("RenderBalance: render: %w", err)
	}
	return nil
}

// RenderAccount charts the last days of an account ending at today.
func RenderAccount(w io.Writer, acc domain.Account, days int, today time.Time) error {
	points := ledger.GraphData(acc.Transactions, days, today)
	return RenderBalance(w, acc.Name, points)
}
