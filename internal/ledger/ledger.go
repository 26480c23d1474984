// Package ledger derives balances from transaction lists. Sums are computed
// with exact decimal arithmetic and converted back to float64 at the edge,
// because the wire format stores amounts as JSON numbers.
package ledger

import (
	"sort"
	"time"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/shopspring/decimal"
)

// Balance is the sum of all non-deleted transactions.
func Balance(txs []domain.Transaction) float64 {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Deleted {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(tx.Amount))
	}
	return sum.InexactFloat64()
}

// GoalBalance is the money parked in a goal: the negated sum of non-deleted
// transactions carrying the goal id. Deposits are debits on the account, so
// they add to the goal.
func GoalBalance(txs []domain.Transaction, goalID string) float64 {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Deleted || tx.GoalID != goalID {
			continue
		}
		sum = sum.Sub(decimal.NewFromFloat(tx.Amount))
	}
	return sum.InexactFloat64()
}

// GoalProgress returns the goal balance as a fraction of its target, capped at 1.
func GoalProgress(txs []domain.Transaction, goal domain.Goal) float64 {
	if goal.Target <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(GoalBalance(txs, goal.ID)).Div(decimal.NewFromFloat(goal.Target))
	if p.GreaterThan(decimal.NewFromInt(1)) {
		return 1
	}
	if p.IsNegative() {
		return 0
	}
	return p.InexactFloat64()
}

// Point is one day of a balance graph.
type Point struct {
	Date    string  `json:"date"`
	Balance float64 `json:"balance"`
}

// GraphData returns the end-of-day running balance for each of the days
// ending at today, oldest first. Deleted transactions are ignored.
func GraphData(txs []domain.Transaction, days int, today time.Time) []Point {
	if days <= 0 {
		return []Point{}
	}

	live := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Deleted {
			live = append(live, tx)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return ParseDate(live[i].Date).Before(ParseDate(live[j].Date))
	})

	start := truncateDay(today).AddDate(0, 0, -(days - 1))
	points := make([]Point, 0, days)
	running := decimal.Zero
	next := 0
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		for next < len(live) && !ParseDate(live[next].Date).After(day) {
			running = running.Add(decimal.NewFromFloat(live[next].Amount))
			next++
		}
		points = append(points, Point{Date: day.Format(domain.DateLayout), Balance: running.InexactFloat64()})
	}
	return points
}

// ParseDate parses a transaction date. Unparseable dates map to the zero time.
func ParseDate(s string) time.Time {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Today formats t as a transaction date in t's location.
func Today(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
