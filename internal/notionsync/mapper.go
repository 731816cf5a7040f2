package notionsync

import (
	"time"

	"github.com/dvloznov/optifi/internal/domain"
	"github.com/jomei/notionapi"
)

// Database property names.
const (
	PropKey         = "Key"
	PropDate        = "Date"
	PropType        = "Type"
	PropDescription = "Description"
	PropAmount      = "Amount"
	PropSource      = "Source"
	PropStatus      = "Reconciliation"
)

// Reconciliation statuses written to PropStatus.
const (
	StatusMatched   = "Matched"
	StatusUnmatched = "Unmatched"
)

// Entry is one bank transaction to publish. Status may be empty when the row
// has not been through reconciliation.
type Entry struct {
	Tx     domain.BankTransaction
	Status string
}

// BankTransactionToNotionProperties maps an entry onto the database columns.
// The title holds the natural key so reruns find the same page.
func BankTransactionToNotionProperties(e Entry) notionapi.Properties {
	amount, _ := e.Tx.Amount.Float64()

	props := notionapi.Properties{
		PropKey: notionapi.TitleProperty{
			Title: []notionapi.RichText{plainText(e.Tx.Key().String())},
		},
		PropDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(e.Tx.Date.In(time.UTC))
					return &d
				}(),
			},
		},
		PropType: notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(e.Tx.Type)},
		},
		PropDescription: notionapi.RichTextProperty{
			RichText: []notionapi.RichText{plainText(e.Tx.Description)},
		},
		PropAmount: notionapi.NumberProperty{
			Number: amount,
		},
	}

	if e.Tx.Source != "" {
		props[PropSource] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: e.Tx.Source},
		}
	}
	if e.Status != "" {
		props[PropStatus] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: e.Status},
		}
	}

	return props
}

func plainText(s string) notionapi.RichText {
	return notionapi.RichText{
		Type: notionapi.ObjectTypeText,
		Text: &notionapi.Text{Content: s},
	}
}

// extractKey returns the natural key stored in a page's title, or "".
func extractKey(page notionapi.Page) string {
	switch p := page.Properties[PropKey].(type) {
	case *notionapi.TitleProperty:
		return firstPlainText(p.Title)
	case notionapi.TitleProperty:
		return firstPlainText(p.Title)
	}
	return ""
}

// extractSelect returns the option name of a select property, or "".
func extractSelect(page notionapi.Page, name string) string {
	switch p := page.Properties[name].(type) {
	case *notionapi.SelectProperty:
		return p.Select.Name
	case notionapi.SelectProperty:
		return p.Select.Name
	}
	return ""
}

func firstPlainText(rt []notionapi.RichText) string {
	if len(rt) == 0 {
		return ""
	}
	if rt[0].PlainText != "" {
		return rt[0].PlainText
	}
	if rt[0].Text != nil {
		return rt[0].Text.Content
	}
	return ""
}
