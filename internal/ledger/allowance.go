package ledger

import (
	"time"

	"github.com/dvloznov/kids-bank/internal/domain"
)

// maxCatchUp bounds how many missed payments are posted at once.
const maxCatchUp = 60

// DueAllowances returns the dates of the allowance payments owed up to and
// including today. An allowance that was never paid is due today.
func DueAllowances(al domain.Allowance, today time.Time) []string {
	if al.Amount <= 0 {
		return nil
	}
	day := truncateDay(today)

	if al.LastPaid == "" {
		return []string{day.Format(domain.DateLayout)}
	}
	last, err := time.Parse(domain.DateLayout, al.LastPaid)
	if err != nil {
		return []string{day.Format(domain.DateLayout)}
	}

	var due []string
	for next := advance(last, al.Interval); !next.After(day) && len(due) < maxCatchUp; next = advance(next, al.Interval) {
		due = append(due, next.Format(domain.DateLayout))
	}
	return due
}

func advance(t time.Time, interval domain.AllowanceInterval) time.Time {
	if interval == domain.AllowanceMonthly {
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 7)
}
