package bot

import (
	"fmt"
	"strings"
	"time"
)

// Quarter maps a month to its calendar quarter label.
func Quarter(m time.Month) string {
	switch {
	case m <= time.March:
		return "Q1"
	case m <= time.June:
		return "Q2"
	case m <= time.September:
		return "Q3"
	default:
		return "Q4"
	}
}

// WeekOfMonth returns the 1-based seven-day bucket of the day of month.
func WeekOfMonth(day int) int {
	return ((day - 1) / 7) + 1
}

// SheetName builds the dated ledger sheet name for a product.
func SheetName(t time.Time, product string) string {
	return fmt.Sprintf("%s %d %s", Quarter(t.Month()), t.Year(), product)
}

var agentlabsKeywords = []string{"agentlabs", "llm", "intent base", "dialogflow"}

var appcenterKeywords = []string{
	"shopee", "email", "qcrm", "appcenter", "survey", "tokopedia",
	"email broadcast", "tiktok", "csat", "agent copilot",
}

// RouteProduct maps the classifier's free-form product value onto one of
// the two ledger products by keyword containment, or "Unknown".
func RouteProduct(raw string) string {
	p := strings.ToLower(strings.TrimSpace(raw))
	for _, k := range agentlabsKeywords {
		if strings.Contains(p, k) {
			return "Agentlabs"
		}
	}
	for _, k := range appcenterKeywords {
		if strings.Contains(p, k) {
			return "Appcenter"
		}
	}
	return "Unknown"
}
