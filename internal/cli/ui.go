package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"dicomvol/pkg/transfer"
)

var (
	colorCyan  = lipgloss.Color("36")  // Teal - headings
	colorWhite = lipgloss.Color("255") // Bright white - values
	colorDim   = lipgloss.Color("240") // Dim gray - muted text
)

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
	styleCell   = lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
)

func row(cells ...string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = styleCell.Render(c)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func headerRow(cells ...string) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = styleCell.Render(styleHeader.Render(c))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// renderPairTable writes both control point sequences of p as aligned tables.
// hu converts a scalar back to HU for the second column.
func renderPairTable(w io.Writer, p transfer.Pair, hu func(float64) float64) error {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Preset: "+p.Preset) + "\n\n")

	b.WriteString(StyleDim.Render("colour") + "\n")
	b.WriteString(headerRow("scalar", "HU", "red", "green", "blue") + "\n")
	for _, c := range p.Color {
		b.WriteString(row(num(c.Scalar), num(hu(c.Scalar)), num(c.R), num(c.G), num(c.B)) + "\n")
	}

	b.WriteString("\n" + StyleDim.Render("opacity") + "\n")
	b.WriteString(headerRow("scalar", "HU", "opacity") + "\n")
	for _, o := range p.Opacity {
		b.WriteString(row(num(o.Scalar), num(hu(o.Scalar)), num(o.Opacity)) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
