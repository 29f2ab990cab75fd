package payment

import (
	"fmt"
	"net/url"
	"strings"
)

// DeepLink builds a payment-rail deep link pre-filled with the schedule's
// recipient and amount. It is a best-effort convenience appended to the
// reminder text; an empty base disables it.
func DeepLink(base string, s Schedule) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	q := url.Values{}
	q.Set("to", s.Recipient)
	q.Set("amount", fmt.Sprintf("%.2f", s.Amount))
	if s.Description != "" {
		q.Set("concept", s.Description)
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode()
}
