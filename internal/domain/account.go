package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Account is a named ledger. Accounts are keyed by id in an AccountMap;
// the id is not repeated inside the value.
type Account struct {
	Name         string
	Image        string
	Transactions []Transaction
	Goals        []Goal
	Allowance    *Allowance

	Extra map[string]json.RawMessage
}

// Goal is a savings target inside an account. Its balance is derived from
// transactions carrying its id.
type Goal struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Target  float64 `json:"target"`
	Icon    string  `json:"icon,omitempty"`
	Created int64   `json:"created,omitempty"`
}

// AllowanceInterval is how often an allowance is paid.
type AllowanceInterval string

const (
	AllowanceWeekly  AllowanceInterval = "weekly"
	AllowanceMonthly AllowanceInterval = "monthly"
)

// Allowance is a recurring credit paid into an account.
type Allowance struct {
	Amount   float64           `json:"amount"`
	Interval AllowanceInterval `json:"interval"`
	LastPaid string            `json:"lastPaid,omitempty"`
}

// AccountMap maps account ids to accounts.
type AccountMap map[string]Account

var accountFields = []string{"name", "image", "transactions", "goals", "allowance"}

// UnmarshalJSON decodes an account and keeps unknown members in Extra.
func (a *Account) UnmarshalJSON(data []byte) error {
	known, extra, err := splitFields(data, accountFields)
	if err != nil {
		return fmt.Errorf("Account.UnmarshalJSON: %w", err)
	}

	var out Account
	if err := decodeInto(known["name"], &out.Name); err != nil {
		return fmt.Errorf("Account.UnmarshalJSON: name: %w", err)
	}
	if err := decodeInto(known["image"], &out.Image); err != nil {
		return fmt.Errorf("Account.UnmarshalJSON: image: %w", err)
	}
	if err := decodeInto(known["transactions"], &out.Transactions); err != nil {
		return fmt.Errorf("Account.UnmarshalJSON: transactions: %w", err)
	}
	if err := decodeInto(known["goals"], &out.Goals); err != nil {
		return fmt.Errorf("Account.UnmarshalJSON: goals: %w", err)
	}
	if err := decodeInto(known["allowance"], &out.Allowance); err != nil {
		return fmt.Errorf("Account.UnmarshalJSON: allowance: %w", err)
	}
	out.Extra = extra

	*a = out
	return nil
}

// MarshalJSON writes the account in the shared wire shape.
func (a Account) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.Extra)+5)
	for k, v := range a.Extra {
		m[k] = v
	}
	m["name"] = a.Name
	if a.Image != "" {
		m["image"] = a.Image
	}
	txs := a.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	m["transactions"] = txs
	if len(a.Goals) > 0 {
		m["goals"] = a.Goals
	}
	if a.Allowance != nil {
		m["allowance"] = a.Allowance
	}
	return json.Marshal(m)
}

// Clone returns a copy that shares no slices or maps with a.
func (a Account) Clone() Account {
	out := a
	if a.Transactions != nil {
		out.Transactions = make([]Transaction, len(a.Transactions))
		for i, tx := range a.Transactions {
			out.Transactions[i] = tx.Clone()
		}
	}
	if a.Goals != nil {
		out.Goals = append([]Goal(nil), a.Goals...)
	}
	if a.Allowance != nil {
		al := *a.Allowance
		out.Allowance = &al
	}
	out.Extra = cloneExtra(a.Extra)
	return out
}

// Clone returns a copy of the transaction with its own Extra map.
func (t Transaction) Clone() Transaction {
	out := t
	out.Extra = cloneExtra(t.Extra)
	return out
}

// FindGoal returns the index of the goal with the given id, or -1.
func (a Account) FindGoal(goalID string) int {
	for i, g := range a.Goals {
		if g.ID == goalID {
			return i
		}
	}
	return -1
}

// Clone deep-copies the map.
func (m AccountMap) Clone() AccountMap {
	if m == nil {
		return nil
	}
	out := make(AccountMap, len(m))
	for id, acc := range m {
		out[id] = acc.Clone()
	}
	return out
}

// IDs returns the account ids in ascending order.
func (m AccountMap) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
