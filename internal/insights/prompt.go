package insights

import (
	"fmt"
	"strings"

	"budgetly/internal/core"
)

// BuildPrompt renders the advisor prompt for a spending breakdown.
func BuildPrompt(total core.Money, count int, breakdown []core.CategoryShare) string {
	var b strings.Builder
	b.WriteString("You are a financial advisor. Analyze spending data and provide 3-5 actionable money-saving tips.\n\n")
	fmt.Fprintf(&b, "Total: $%s\nTransactions: %d\n\nCategories:\n", total.String(), count)
	for i, share := range breakdown {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- %s: $%s (%.1f%%)", share.Category, share.Total.String(), share.Percentage)
	}
	b.WriteString("\n\nProvide specific advice based on highest spending categories.")
	return b.String()
}
