package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SyncPayload is the plaintext replicated to the remote object.
type SyncPayload struct {
	Accounts   AccountMap
	DeletedIDs []string
}

type wirePayload struct {
	Accounts   AccountMap `json:"accounts"`
	DeletedIDs []string   `json:"deletedIds"`
}

// MarshalJSON always writes both members, with empty values instead of null.
func (p SyncPayload) MarshalJSON() ([]byte, error) {
	w := wirePayload{Accounts: p.Accounts, DeletedIDs: p.DeletedIDs}
	if w.Accounts == nil {
		w.Accounts = AccountMap{}
	}
	if w.DeletedIDs == nil {
		w.DeletedIDs = []string{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads the wrapped shape only. Use DecodePayload for remote
// objects, which may also be legacy account maps.
func (p *SyncPayload) UnmarshalJSON(data []byte) error {
	var w wirePayload
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Accounts = w.Accounts
	p.DeletedIDs = w.DeletedIDs
	return nil
}

// PayloadFormat tells which shape a decoded remote object had.
type PayloadFormat int

const (
	// PayloadWrapped is {"accounts": {...}, "deletedIds": [...]}.
	PayloadWrapped PayloadFormat = iota
	// PayloadLegacy is a bare account map written by older clients.
	PayloadLegacy
)

func (f PayloadFormat) String() string {
	switch f {
	case PayloadWrapped:
		return "wrapped"
	case PayloadLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("PayloadFormat(%d)", int(f))
	}
}

// DecodedPayload is a remote payload normalized to the wrapped shape.
type DecodedPayload struct {
	Format  PayloadFormat
	Payload SyncPayload
}

// DecodePayload detects the payload shape. An object carrying a "deletedIds"
// array is wrapped; anything else is read as a legacy account map with no
// tombstones.
func DecodePayload(data []byte) (DecodedPayload, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return DecodedPayload{}, fmt.Errorf("DecodePayload: %w", err)
	}

	if raw, ok := members["deletedIds"]; ok && isArray(raw) {
		var w wirePayload
		if err := json.Unmarshal(data, &w); err != nil {
			return DecodedPayload{}, fmt.Errorf("DecodePayload: wrapped: %w", err)
		}
		if w.Accounts == nil {
			w.Accounts = AccountMap{}
		}
		if w.DeletedIDs == nil {
			w.DeletedIDs = []string{}
		}
		return DecodedPayload{
			Format:  PayloadWrapped,
			Payload: SyncPayload{Accounts: w.Accounts, DeletedIDs: w.DeletedIDs},
		}, nil
	}

	accounts := AccountMap{}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return DecodedPayload{}, fmt.Errorf("DecodePayload: legacy: %w", err)
	}
	if accounts == nil {
		accounts = AccountMap{}
	}
	return DecodedPayload{
		Format:  PayloadLegacy,
		Payload: SyncPayload{Accounts: accounts, DeletedIDs: []string{}},
	}, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
