package rules

import (
	"fmt"
	"regexp"

	"github.com/budgetsync/budgetsync/internal/model"
)

// Fixed pattern families for transactions whose true counterparty is hidden
// behind a marketplace or payment processor. These run independently of the
// user's ruleset.
var (
	marketplacePattern = regexp.MustCompile(`(?i)\b(amazon|amzn)\b`)
	orderIDPattern     = regexp.MustCompile(`\d{3}-\d{7}-\d{7}`)
	processorPattern   = regexp.MustCompile(`(?i)\bpaypal\b`)
)

const (
	orderDetailsURL  = "https://www.amazon.de/gp/your-account/order-details?orderID=%s"
	orderHistoryURL  = "https://www.amazon.de/gp/css/order-history"
	processorHistURL = "https://www.paypal.com/activities"
)

// DetectLinks tests the combined payee and memo text against the marketplace
// and payment-processor families. Both checks run independently; a
// transaction may produce zero, one, or two links.
func DetectLinks(txn *model.BankTransaction) []model.ExternalLink {
	text := MatchText(txn, model.FieldCombined)

	var links []model.ExternalLink

	if marketplacePattern.MatchString(text) {
		if orderID := orderIDPattern.FindString(text); orderID != "" {
			links = append(links, model.ExternalLink{
				Label: fmt.Sprintf("Amazon order %s", orderID),
				URL:   fmt.Sprintf(orderDetailsURL, orderID),
			})
		} else {
			links = append(links, model.ExternalLink{
				Label: "Amazon order history",
				URL:   orderHistoryURL,
			})
		}
	}

	if processorPattern.MatchString(text) {
		links = append(links, model.ExternalLink{
			Label: "PayPal activity",
			URL:   processorHistURL,
		})
	}

	return links
}
