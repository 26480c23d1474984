package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/dvloznov/kids-bank/internal/domain"
)

var csvHeader = []string{"Account ID", "Account Name", "Transaction ID", "Date", "Description", "Amount", "Timestamp"}

// WriteCSV writes one row per transaction, accounts in id order. An account
// without transactions still gets a row with the transaction columns empty.
func WriteCSV(w io.Writer, accounts domain.AccountMap) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("WriteCSV: header: %w", err)
	}

	for _, id := range accounts.IDs() {
		acc := accounts[id]
		if len(acc.Transactions) == 0 {
			if err := cw.Write([]string{id, acc.Name, "", "", "", "", ""}); err != nil {
				return fmt.Errorf("WriteCSV: account %s: %w", id, err)
			}
			continue
		}

		for _, tx := range acc.Transactions {
			ts := ""
			if tx.Timestamp != 0 {
				ts = strconv.FormatInt(tx.Timestamp, 10)
			}
			row := []string{
				id,
				acc.Name,
				tx.ID,
				tx.Date,
				tx.Description,
				strconv.FormatFloat(tx.Amount, 'f', -1, 64),
				ts,
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("WriteCSV: account %s: %w", id, err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}
	return nil
}
