package cli

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"budgetly/internal/core"
)

const barWidth = 30

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	upStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	downStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
)

// RenderSummary writes a colored monthly summary for terminals.
func RenderSummary(w io.Writer, sum core.MonthlySummary) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(sum.Label()))
	b.WriteString("\n\n")

	total := valueStyle.Render(sum.Total.Display())
	if change := sum.ChangeLabel(); change != "" {
		if sum.Increased() {
			total += " " + upStyle.Render("↑ "+change)
		} else {
			total += " " + downStyle.Render("↓ "+change)
		}
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Total:       "), total)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprint(sum.Count)))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Average:     "), valueStyle.Render(sum.Average.Display()))

	if len(sum.Breakdown) == 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("No expenses this month"))
		b.WriteString("\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("\n")
	for _, share := range sum.Breakdown {
		b.WriteString(renderShare(share))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func renderShare(share core.CategoryShare) string {
	info := share.Category.Info()
	filled := int(math.Round(share.Percentage / 100 * barWidth))
	filled = max(0, min(filled, barWidth))

	bar := lipgloss.NewStyle().Foreground(lipgloss.Color(info.TermColor)).Render(strings.Repeat("█", filled)) +
		labelStyle.Render(strings.Repeat("░", barWidth-filled))

	return fmt.Sprintf("%s %-18s %s %10s %5.1f%%",
		info.Emoji, info.Label, bar, share.Total.Display(), share.Percentage)
}
