package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dirnet/pkg/record"
	"dirnet/pkg/trust"
	"dirnet/pkg/types"
)

// Style definitions
var (
	primaryColor   = lipgloss.Color("#FF79C6")
	secondaryColor = lipgloss.Color("#8BE9FD")
	accentColor    = lipgloss.Color("#50FA7B")
	warningColor   = lipgloss.Color("#FFB86C")
	dangerColor    = lipgloss.Color("#FF5555")
	mutedColor     = lipgloss.Color("#6272A4")
	bgLightColor   = lipgloss.Color("#44475A")
	fgColor        = lipgloss.Color("#F8F8F2")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(14)

	valueStyle = lipgloss.NewStyle().
			Foreground(fgColor).
			Bold(true)

	accentValueStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Bold(true)

	warningValueStyle = lipgloss.NewStyle().
				Foreground(warningColor).
				Bold(true)

	dangerValueStyle = lipgloss.NewStyle().
				Foreground(dangerColor).
				Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(secondaryColor).
			Background(bgLightColor).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// renderServiceTable renders find results as a table. withTrust adds the
// trust score column.
func renderServiceTable(services []trust.ScoredRecord, withTrust bool) string {
	if len(services) == 0 {
		return lipgloss.NewStyle().Foreground(mutedColor).Render("No services found.")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(bgLightColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == 0 {
				return headerStyle
			}
			return rowStyle.Copy().Foreground(fgColor)
		})

	headers := []string{"NAME", "OWNER", "CAPABILITIES", "PRICE"}
	if withTrust {
		headers = append(headers, "TRUST", "ATTESTERS")
	}
	t.Headers(headers...)

	for i := range services {
		svc, err := record.ServiceFromRecord(&services[i].Record)
		if err != nil {
			continue
		}
		row := []string{
			svc.Name,
			shortOwner(svc.Owner),
			strings.Join(svc.Capabilities, ", "),
			formatPrice(svc.PriceAmount, svc.PriceUnit),
		}
		if withTrust {
			row = append(row,
				fmt.Sprintf("%d", services[i].Trust.Score),
				fmt.Sprintf("%d", services[i].Trust.AttesterCount))
		}
		t.Row(row...)
	}
	return t.Render()
}

// renderServicePanel renders one listing as a key-value panel.
func renderServicePanel(s *trust.ScoredRecord) string {
	svc, err := record.ServiceFromRecord(&s.Record)
	if err != nil {
		return fmt.Sprintf("record %s is not a service listing", s.Record.ID)
	}

	var content strings.Builder
	fields := []struct {
		label string
		value string
		style lipgloss.Style
	}{
		{"Name", svc.Name, accentValueStyle},
		{"Owner", string(svc.Owner), valueStyle},
		{"About", svc.About, valueStyle},
		{"Capabilities", strings.Join(svc.Capabilities, ", "), valueStyle},
		{"Hashtags", strings.Join(svc.Hashtags, ", "), valueStyle},
		{"Kinds", strings.Join(svc.RequestKinds, ", "), valueStyle},
		{"Price", formatPrice(svc.PriceAmount, svc.PriceUnit), valueStyle},
		{"Trust", fmt.Sprintf("%d (%d attesters)", s.Trust.Score, s.Trust.AttesterCount), trustStyle(s.Trust.Score)},
		{"Record ID", string(s.Record.ID), valueStyle},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		content.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(f.label+":"), f.style.Render(f.value)))
	}

	title := titleStyle.Render("SERVICE LISTING")
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.TrimSpace(content.String())))
}

// renderOutcome renders a publish outcome with per-relay failure reasons.
func renderOutcome(verb string, o types.PublishOutcome) string {
	var style lipgloss.Style
	switch {
	case o.SuccessCount == o.Total:
		style = accentValueStyle
	case o.SuccessCount > 0:
		style = warningValueStyle
	default:
		style = dangerValueStyle
	}

	var b strings.Builder
	b.WriteString(style.Render(fmt.Sprintf("%s: %d/%d relays accepted", verb, o.SuccessCount, o.Total)))
	for _, reason := range o.FailureReasons {
		b.WriteString("\n  " + lipgloss.NewStyle().Foreground(mutedColor).Render("- "+reason))
	}
	return b.String()
}

func trustStyle(score int) lipgloss.Style {
	switch {
	case score >= 30:
		return accentValueStyle
	case score > 0:
		return warningValueStyle
	default:
		return dangerValueStyle
	}
}

func shortOwner(o types.OwnerID) string {
	s := string(o)
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "…" + s[len(s)-8:]
}

func formatPrice(amount int64, unit string) string {
	if amount <= 0 {
		return "-"
	}
	if unit == "" {
		return fmt.Sprintf("%d", amount)
	}
	return fmt.Sprintf("%d %s", amount, unit)
}
