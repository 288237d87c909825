package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1       lipgloss.Style
	Header2       lipgloss.Style
	Bold          lipgloss.Style
	Muted         lipgloss.Style
	Success       lipgloss.Style
	Warning       lipgloss.Style
	Error         lipgloss.Style
	Info          lipgloss.Style
	Path          lipgloss.Style
	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
}

// NewStyles builds styles on r. Without a terminal every style is plain.
func NewStyles(r *lipgloss.Renderer, color bool) *Styles {
	if !color {
		plain := r.NewStyle()
		return &Styles{
			Header1: plain, Header2: plain, Bold: plain, Muted: plain,
			Success: plain, Warning: plain, Error: plain, Info: plain,
			Path: plain, StatusSuccess: plain, StatusFailed: plain,
		}
	}

	green := lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	yellow := lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	red := lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	blue := lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"}
	gray := lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}

	return &Styles{
		Header1:       r.NewStyle().Bold(true).Foreground(blue).MarginBottom(1),
		Header2:       r.NewStyle().Bold(true),
		Bold:          r.NewStyle().Bold(true),
		Muted:         r.NewStyle().Foreground(gray),
		Success:       r.NewStyle().Foreground(green),
		Warning:       r.NewStyle().Foreground(yellow),
		Error:         r.NewStyle().Foreground(red),
		Info:          r.NewStyle().Foreground(blue),
		Path:          r.NewStyle().Foreground(blue),
		StatusSuccess: r.NewStyle().Foreground(green).Bold(true),
		StatusFailed:  r.NewStyle().Foreground(red).Bold(true),
	}
}
