package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DateLayout is the calendar-day format used by Transaction.Date.
const DateLayout = "2006-01-02"

// Transaction is one ledger entry of an account.
// Amount is positive for money in and negative for money out.
// Timestamp is the write time in milliseconds since the epoch and is only used
// to pick a winner when the same transaction exists on two replicas.
// Fields written by other clients that this type does not know about are kept
// in Extra and written back unchanged.
type Transaction struct {
	ID          string
	Date        string
	Amount      float64
	Description string
	Timestamp   int64
	Deleted     bool
	Category    string
	GoalID      string

	Extra map[string]json.RawMessage
}

var transactionFields = []string{"id", "date", "amount", "description", "timestamp", "deleted", "category", "goalId"}

// UnmarshalJSON decodes a transaction, coercing legacy numeric ids to strings.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	known, extra, err := splitFields(data, transactionFields)
	if err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: %w", err)
	}

	var out Transaction
	if out.ID, err = decodeID(known["id"]); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: id: %w", err)
	}
	if out.Timestamp, err = decodeMillis(known["timestamp"]); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: timestamp: %w", err)
	}
	if err := decodeInto(known["date"], &out.Date); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: date: %w", err)
	}
	if err := decodeInto(known["amount"], &out.Amount); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: amount: %w", err)
	}
	if err := decodeInto(known["description"], &out.Description); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: description: %w", err)
	}
	if err := decodeInto(known["deleted"], &out.Deleted); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: deleted: %w", err)
	}
	if err := decodeInto(known["category"], &out.Category); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: category: %w", err)
	}
	if out.GoalID, err = decodeID(known["goalId"]); err != nil {
		return fmt.Errorf("Transaction.UnmarshalJSON: goalId: %w", err)
	}
	out.Extra = extra

	*t = out
	return nil
}

// MarshalJSON writes the wire shape shared with every other client.
func (t Transaction) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(t.Extra)+8)
	for k, v := range t.Extra {
		m[k] = v
	}
	m["id"] = t.ID
	m["date"] = t.Date
	m["amount"] = t.Amount
	m["description"] = t.Description
	m["timestamp"] = t.Timestamp
	if t.Deleted {
		m["deleted"] = true
	}
	if t.Category != "" {
		m["category"] = t.Category
	}
	if t.GoalID != "" {
		m["goalId"] = t.GoalID
	}
	return json.Marshal(m)
}

// splitFields separates the named members of a JSON object from the rest.
func splitFields(data []byte, names []string) (map[string]json.RawMessage, map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, nil, err
	}

	known := make(map[string]json.RawMessage, len(names))
	for _, name := range names {
		if v, ok := all[name]; ok {
			known[name] = v
			delete(all, name)
		}
	}
	if len(all) == 0 {
		all = nil
	}
	return known, all, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeInto(raw json.RawMessage, v any) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// decodeID accepts a string or a number. Zero and false count as absent.
func decodeID(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case 'f':
		return "", nil
	case 't':
		return "true", nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return "", err
	}
	if f, err := n.Float64(); err == nil && f == 0 {
		return "", nil
	}
	return n.String(), nil
}

// decodeMillis accepts integral or fractional numbers and numeric strings.
func decodeMillis(raw json.RawMessage) (int64, error) {
	if isNull(raw) {
		return 0, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		trimmed = []byte(s)
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return 0, err
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
