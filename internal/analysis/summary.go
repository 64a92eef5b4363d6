package analysis

import (
	"fmt"
	"strings"

	"github.com/churnlabs/churnguard/internal/models"
)

const summaryFallback = "**CSV Analysis Complete!** Your data has been analyzed. Ask me anything about your customers!"

// SummaryMessage renders the chat-facing analysis recap shown as the
// first assistant message after a run completes. A result without
// summary counts gets the generic fallback line.
func SummaryMessage(result *models.AnalysisResult) string {
	if result == nil || result.Summary.TotalCustomers == 0 {
		return summaryFallback
	}

	s := result.Summary
	total := s.TotalCustomers

	var b strings.Builder
	b.WriteString("**CSV Analysis Complete!**\n\n")
	b.WriteString("**Key Statistics:**\n")
	fmt.Fprintf(&b, "- **Total Customers:** %d\n", total)
	fmt.Fprintf(&b, "- **High Risk:** %d customers (%.1f%%)\n", s.HighRiskCustomers, percent(s.HighRiskCustomers, total))
	fmt.Fprintf(&b, "- **Medium Risk:** %d customers (%.1f%%)\n", s.MediumRiskCustomers, percent(s.MediumRiskCustomers, total))
	fmt.Fprintf(&b, "- **Low Risk:** %d customers (%.1f%%)\n", s.LowRiskCustomers, percent(s.LowRiskCustomers, total))
	fmt.Fprintf(&b, "- **Revenue at Risk:** $%.2f\n", s.TotalRevenueAtRisk)

	if drivers := topN(result.Insights.TopChurnDrivers, 2); len(drivers) > 0 {
		b.WriteString("\n**Top Insights:**\n")
		for _, d := range drivers {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	if actions := topN(result.Insights.RecommendedActions, 2); len(actions) > 0 {
		b.WriteString("\n**Immediate Actions Needed:**\n")
		for _, a := range actions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}

	b.WriteString("\nAsk me anything about your customer data!")
	return b.String()
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func topN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}
