package ledger

import (
	"testing"
	"time"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestBalance(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "1", Amount: 0.1},
		{ID: "2", Amount: 0.2},
		{ID: "3", Amount: -5, Deleted: true},
	}
	assert.Equal(t, 0.3, Balance(txs))
}

func TestGoalBalance(t *testing.T) {
	txs := []domain.Transaction{
		{ID: "1", Amount: -10, GoalID: "g1", Category: domain.GoalsCategory},
		{ID: "2", Amount: -5, GoalID: "g1", Category: domain.GoalsCategory},
		{ID: "3", Amount: 3, GoalID: "g1", Category: domain.GoalsCategory},
		{ID: "4", Amount: -100, GoalID: "g1", Deleted: true},
		{ID: "5", Amount: -7, GoalID: "g2"},
	}
	assert.Equal(t, 12.0, GoalBalance(txs, "g1"))
	assert.Equal(t, 7.0, GoalBalance(txs, "g2"))
	assert.Equal(t, 0.0, GoalBalance(txs, "missing"))
}

func TestGoalProgress(t *testing.T) {
	txs := []domain.Transaction{{ID: "1", Amount: -25, GoalID: "g1"}}

	assert.Equal(t, 0.25, GoalProgress(txs, domain.Goal{ID: "g1", Target: 100}))
	assert.Equal(t, 1.0, GoalProgress(txs, domain.Goal{ID: "g1", Target: 10}))
	assert.Equal(t, 0.0, GoalProgress(txs, domain.Goal{ID: "g1"}))
}

func TestGraphData(t *testing.T) {
	today := time.Date(2024, 3, 5, 15, 0, 0, 0, time.UTC)
	txs := []domain.Transaction{
		{ID: "old", Date: "2024-02-01", Amount: 10},
		{ID: "b", Date: "2024-03-04", Amount: -2},
		{ID: "a", Date: "2024-03-03", Amount: 5},
		{ID: "gone", Date: "2024-03-04", Amount: 100, Deleted: true},
	}

	got := GraphData(txs, 4, today)

	assert.Equal(t, []Point{
		{Date: "2024-03-02", Balance: 10},
		{Date: "2024-03-03", Balance: 15},
		{Date: "2024-03-04", Balance: 13},
		{Date: "2024-03-05", Balance: 13},
	}, got)
}

func TestGraphData_NoDays(t *testing.T) {
	assert.Empty(t, GraphData(nil, 0, time.Now()))
}

func TestDueAllowances(t *testing.T) {
	today := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		al   domain.Allowance
		want []string
	}{
		{"never paid", domain.Allowance{Amount: 5, Interval: domain.AllowanceWeekly}, []string{"2024-03-20"}},
		{"weekly catch up", domain.Allowance{Amount: 5, Interval: domain.AllowanceWeekly, LastPaid: "2024-03-01"}, []string{"2024-03-08", "2024-03-15"}},
		{"monthly", domain.Allowance{Amount: 5, Interval: domain.AllowanceMonthly, LastPaid: "2024-01-20"}, []string{"2024-02-20", "2024-03-20"}},
		{"nothing due", domain.Allowance{Amount: 5, Interval: domain.AllowanceWeekly, LastPaid: "2024-03-18"}, nil},
		{"zero amount", domain.Allowance{Interval: domain.AllowanceWeekly}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DueAllowances(tt.al, today))
		})
	}
}
