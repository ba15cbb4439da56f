package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetsync/budgetsync/internal/model"
)

func TestDetectLinks(t *testing.T) {
	tests := []struct {
		name       string
		txn        model.BankTransaction
		wantLabels []string
		wantURLs   []string
	}{
		{
			name: "marketplace with order id links to order page",
			txn:  model.BankTransaction{Payee: "AMAZON PAYMENTS", Memo: "303-1234567-1234567 AMZN.COM/BILL"},
			wantLabels: []string{
				"Amazon order 303-1234567-1234567",
			},
			wantURLs: []string{
				"https://www.amazon.de/gp/your-account/order-details?orderID=303-1234567-1234567",
			},
		},
		{
			name:       "marketplace without order id links to order history",
			txn:        model.BankTransaction{Payee: "AMZN Mktp DE", Memo: "card payment"},
			wantLabels: []string{"Amazon order history"},
			wantURLs:   []string{"https://www.amazon.de/gp/css/order-history"},
		},
		{
			name:       "payment processor links to activity",
			txn:        model.BankTransaction{Payee: "PayPal Europe", Memo: "Steam Purchase"},
			wantLabels: []string{"PayPal activity"},
			wantURLs:   []string{"https://www.paypal.com/activities"},
		},
		{
			name: "processor fronting marketplace yields both links",
			txn:  model.BankTransaction{Payee: "PAYPAL", Memo: "AMAZON EU 302-7654321-7654321"},
			wantLabels: []string{
				"Amazon order 302-7654321-7654321",
				"PayPal activity",
			},
			wantURLs: []string{
				"https://www.amazon.de/gp/your-account/order-details?orderID=302-7654321-7654321",
				"https://www.paypal.com/activities",
			},
		},
		{
			name: "keyword requires word boundary",
			txn:  model.BankTransaction{Payee: "Amazonia Organics", Memo: "smoothie"},
		},
		{
			name: "order id alone does not trigger without marketplace keyword",
			txn:  model.BankTransaction{Payee: "Some Shop", Memo: "ref 303-1234567-1234567"},
		},
		{
			name: "plain transaction yields no links",
			txn:  model.BankTransaction{Payee: "REWE Markt", Memo: "Groceries"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := DetectLinks(&tt.txn)
			require.Len(t, links, len(tt.wantLabels))
			for i, link := range links {
				assert.Equal(t, tt.wantLabels[i], link.Label)
				assert.Equal(t, tt.wantURLs[i], link.URL)
			}
		})
	}
}
