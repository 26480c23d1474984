package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/state"
)

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// JSON writes v as indented JSON.
func (f *OutputFormatter) JSON(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Print writes data as JSON, or the table built from header and rows in
// text mode.
func (f *OutputFormatter) Print(data any, header []string, rows [][]string) error {
	if f.Format == "json" {
		return f.JSON(data)
	}
	table := tablewriter.NewWriter(f.Writer)
	table.SetHeader(header)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return nil
}

// Message writes a one line confirmation. In JSON mode data is written
// instead, or {"message": ...} when data is nil.
func (f *OutputFormatter) Message(data any, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if f.Format == "json" {
		if data == nil {
			data = map[string]string{"message": msg}
		}
		return f.JSON(data)
	}
	_, err := fmt.Fprintln(f.Writer, msg)
	return err
}

// formatAmount renders money with two decimals.
func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// parseAmount reads a decimal amount from the command line.
func parseAmount(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return d.InexactFloat64(), nil
}

var errAmbiguous = errors.New("ambiguous name")

// resolveAccount accepts an account id or a case-insensitive name.
func resolveAccount(st *state.State, ref string) (string, domain.Account, error) {
	accounts := st.Accounts()
	if acc, ok := accounts[ref]; ok {
		return ref, acc, nil
	}

	var found []string
	for _, id := range accounts.IDs() {
		if strings.EqualFold(accounts[id].Name, ref) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", domain.Account{}, fmt.Errorf("%q: %w", ref, state.ErrAccountNotFound)
	case 1:
		return found[0], accounts[found[0]], nil
	default:
		return "", domain.Account{}, fmt.Errorf("account %q: %w, use the id", ref, errAmbiguous)
	}
}

// resolveGoal accepts a goal id or a case-insensitive name.
func resolveGoal(acc domain.Account, ref string) (domain.Goal, error) {
	if i := acc.FindGoal(ref); i >= 0 {
		return acc.Goals[i], nil
	}

	var found []domain.Goal
	for _, g := range acc.Goals {
		if strings.EqualFold(g.Name, ref) {
			found = append(found, g)
		}
	}
	switch len(found) {
	case 0:
		return domain.Goal{}, fmt.Errorf("%q: %w", ref, state.ErrGoalNotFound)
	case 1:
		return found[0], nil
	default:
		return domain.Goal{}, fmt.Errorf("goal %q: %w, use the id", ref, errAmbiguous)
	}
}
