package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/carlo-colombo/cashsplitter/internal/models"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorError   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Header:  lipgloss.NewStyle().Bold(true).Padding(0, 1),
	Cell:    lipgloss.NewStyle().Padding(0, 1),
}

// renderTable lays rows out under headers with rounded borders.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorMuted)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styles.Header
			}
			return styles.Cell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// formatCents renders an amount in cents as a decimal with two places.
func formatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// parseCents parses a decimal amount with at most two fractional digits
// ("12", "12.5", "-3.40") into cents.
func parseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "+"))
	if err != nil {
		return 0, models.NewValidationError("invalid amount %q", s)
	}
	if !d.Equal(d.Truncate(2)) {
		return 0, models.NewValidationError("amount %q has more than two decimals", s)
	}
	cents := d.Shift(2).BigInt()
	if !cents.IsInt64() {
		return 0, models.NewValidationError("amount %q is out of range", s)
	}
	return cents.Int64(), nil
}

// formatTimestamp renders a millisecond timestamp in UTC.
func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.DateTime)
}

// formatMovements renders movements as "Al -12.00, Bo +6.00".
func formatMovements(g models.Group, movements []models.Movement) string {
	names := make(map[int64]string)
	for _, m := range g.ListMembers() {
		names[m.ID] = m.Name
	}
	parts := make([]string, len(movements))
	for i, mv := range movements {
		name, ok := names[mv.MemberID]
		if !ok {
			name = fmt.Sprintf("#%d", mv.MemberID)
		}
		sign := "+"
		if mv.Amount < 0 {
			sign = ""
		}
		parts[i] = fmt.Sprintf("%s %s%s", name, sign, formatCents(mv.Amount))
	}
	return strings.Join(parts, ", ")
}

// memberName returns the display name of member id in g.
func memberName(g models.Group, id int64) string {
	for _, m := range g.ListMembers() {
		if m.ID == id {
			return m.Name
		}
	}
	return fmt.Sprintf("#%d", id)
}
