// Package console renders board surfaces for a terminal
package console

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"diagview/internal/board"
	"diagview/internal/catalog"
	"diagview/internal/faults"
)

// Colors use ANSI codes for terminal compatibility
const (
	ColorHealthy lipgloss.Color = "2" // Green
	ColorFault   lipgloss.Color = "1" // Red
	ColorTitle   lipgloss.Color = "6" // Cyan
	ColorMuted   lipgloss.Color = "8" // Gray
)

var (
	surfaceStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorMuted).
			Padding(0, 1)
	activeSurfaceStyle = surfaceStyle.BorderForeground(ColorTitle)
	titleStyle         = lipgloss.NewStyle().Bold(true).Foreground(ColorTitle)
	regionStyle        = lipgloss.NewStyle().Bold(true)
	mutedStyle         = lipgloss.NewStyle().Foreground(ColorMuted)
	faultStyle         = lipgloss.NewStyle().Foreground(ColorFault)
	healthyStyle       = lipgloss.NewStyle().Foreground(ColorHealthy)
)

// Render draws every surface as a bordered block, the active one highlighted
func Render(surfaces []board.Surface, active string) string {
	blocks := make([]string, 0, len(surfaces))
	for _, s := range surfaces {
		blocks = append(blocks, RenderSurface(s, s.ID == active))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

// RenderSurface draws one surface. Cells are grouped by region; cells that
// fall outside their region's visible rows are summarised as a hidden count.
func RenderSurface(s board.Surface, active bool) string {
	title := s.ID
	if active {
		title += " *"
	}

	lines := []string{titleStyle.Render(title)}

	var loose []board.Cell
	byRegion := make(map[string][]board.Cell)
	for _, c := range s.Cells {
		if c.Region == nil {
			loose = append(loose, c)
			continue
		}
		byRegion[c.Region.Name] = append(byRegion[c.Region.Name], c)
	}

	for _, c := range loose {
		lines = append(lines, renderCell(c))
	}

	for _, name := range s.Regions {
		lines = append(lines, regionStyle.Render(name))
		hidden := 0
		for _, c := range byRegion[name] {
			if !c.Reachable {
				hidden++
				continue
			}
			lines = append(lines, "  "+renderCell(c))
		}
		if hidden > 0 {
			lines = append(lines, mutedStyle.Render(fmt.Sprintf("  (%d hidden)", hidden)))
		}
	}

	style := surfaceStyle
	if active {
		style = activeSurfaceStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func renderCell(c board.Cell) string {
	v := c.Current()
	text := v.String()

	switch {
	case v.Kind == catalog.ValueBool && v.Bool:
		text = healthyStyle.Render("OK")
	case v.Kind == catalog.ValueBool:
		text = faultStyle.Render("FAULT")
	case c.Attribute == "FAULTS" || c.Attribute == "STICKY_FAULTS":
		if text != faults.NoFault {
			text = faultStyle.Render(text)
		}
	}

	return mutedStyle.Render(c.Title+":") + " " + text
}
