package notionsync

import (
	"github.com/jomei/notionapi"

	"github.com/dvloznov/kids-bank/internal/domain"
	"github.com/dvloznov/kids-bank/internal/ledger"
)

// Property names shared by the mappers and the page lookups.
const (
	propAccountID     = "Account ID"
	propTransactionID = "Transaction ID"
)

// AccountToProperties maps an account to a row of the Accounts database.
func AccountToProperties(id string, acc domain.Account) notionapi.Properties {
	props := notionapi.Properties{
		propAccountID: notionapi.TitleProperty{Title: richText(id)},
		"Name":        notionapi.RichTextProperty{RichText: richText(acc.Name)},
		"Balance":     notionapi.NumberProperty{Number: ledger.Balance(acc.Transactions)},
		"Goals":       notionapi.NumberProperty{Number: float64(len(acc.Goals))},
	}

	if acc.Allowance != nil {
		props["Allowance"] = notionapi.NumberProperty{Number: acc.Allowance.Amount}
		props["Allowance Interval"] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(acc.Allowance.Interval)},
		}
	}

	return props
}

// TransactionToProperties maps a transaction to a row of the Transactions
// database. The account is linked by id and named for readability.
func TransactionToProperties(accountID, accountName string, tx domain.Transaction) notionapi.Properties {
	props := notionapi.Properties{
		propTransactionID: notionapi.TitleProperty{Title: richText(tx.ID)},
		propAccountID:     notionapi.RichTextProperty{RichText: richText(accountID)},
		"Account":         notionapi.RichTextProperty{RichText: richText(accountName)},
		"Amount":          notionapi.NumberProperty{Number: tx.Amount},
		"Description":     notionapi.RichTextProperty{RichText: richText(tx.Description)},
	}

	if d := ledger.ParseDate(tx.Date); !d.IsZero() {
		date := notionapi.Date(d)
		props["Date"] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &date}}
	}
	if tx.Category != "" {
		props["Category"] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Category}}
	}
	if tx.GoalID != "" {
		props["Goal ID"] = notionapi.RichTextProperty{RichText: richText(tx.GoalID)}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type:      notionapi.ObjectTypeText,
			Text:      &notionapi.Text{Content: content},
			PlainText: content,
		},
	}
}

// titleValue reads the plain text of a title property.
func titleValue(page notionapi.Page, name string) string {
	if title, ok := page.Properties[name].(*notionapi.TitleProperty); ok && len(title.Title) > 0 {
		return title.Title[0].PlainText
	}
	return ""
}
