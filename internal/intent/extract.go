package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	amountRe = regexp.MustCompile(`\$?(\d+(?:\.\d{2})?)`)

	// Ordered payee patterns, most specific first:
	// "to/for Internet Provider", "my electricity bill", "electricity bill",
	// "bill to Internet Provider".
	payeeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:to|for)\s+([A-Za-z\s]+)`),
		regexp.MustCompile(`(?i)my\s+([A-Za-z\s]+)\s+bill`),
		regexp.MustCompile(`(?i)([A-Za-z\s]+)\s+bill`),
		regexp.MustCompile(`(?i)bill\s+to\s+([A-Za-z\s]+)`),
	}

	recipientRe = regexp.MustCompile(`(?i)to\s+(\w+)`)
)

// ExtractAmount finds the first monetary amount in the text.
func ExtractAmount(text string) (float64, bool) {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}

// ExtractPayee finds a biller or payee name using the ordered phrase patterns.
func ExtractPayee(text string) (string, bool) {
	for _, re := range payeeRes {
		if m := re.FindStringSubmatch(text); m != nil {
			payee := strings.TrimSpace(m[1])
			if payee != "" {
				return payee, true
			}
		}
	}
	return "", false
}

// ExtractRecipient finds a single-word transfer recipient ("to John").
func ExtractRecipient(text string) (string, bool) {
	m := recipientRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
