// Package export writes the account data out of the app: JSON backups that
// can be imported again and CSV for spreadsheets.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dvloznov/kids-bank/internal/domain"
)

// Backup is the backup file layout.
type Backup struct {
	Accounts          domain.AccountMap `json:"accounts"`
	DeletedAccountIDs []string          `json:"deletedAccountIds"`
}

// WriteBackup writes p as an indented backup file.
func WriteBackup(w io.Writer, p domain.SyncPayload) error {
	b := Backup{Accounts: p.Accounts, DeletedAccountIDs: p.DeletedIDs}
	if b.Accounts == nil {
		b.Accounts = domain.AccountMap{}
	}
	if b.DeletedAccountIDs == nil {
		b.DeletedAccountIDs = []string{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("WriteBackup: %w", err)
	}
	return nil
}

// ParseBackup reads a backup file. Besides the wrapped layout it accepts a
// bare account map, which older versions exported.
func ParseBackup(data []byte) (Backup, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return Backup{}, fmt.Errorf("ParseBackup: %w", err)
	}

	if raw, ok := members["accounts"]; ok && isObject(raw) {
		var b Backup
		if err := json.Unmarshal(data, &b); err != nil {
			return Backup{}, fmt.Errorf("ParseBackup: %w", err)
		}
		if b.Accounts == nil {
			b.Accounts = domain.AccountMap{}
		}
		if b.DeletedAccountIDs == nil {
			b.DeletedAccountIDs = []string{}
		}
		return b, nil
	}

	accounts := domain.AccountMap{}
	if err := json.Unmarshal(data, &accounts); err != nil {
		return Backup{}, fmt.Errorf("ParseBackup: bare account map: %w", err)
	}
	return Backup{Accounts: accounts, DeletedAccountIDs: []string{}}, nil
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
