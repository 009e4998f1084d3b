package render

import "github.com/charmbracelet/lipgloss"

// Palette is the colour set shared by the TUI and line-mode output
type Palette struct {
	Name string

	Border    lipgloss.Color
	Primary   lipgloss.Color // user label
	Secondary lipgloss.Color // bot label
	Accent    lipgloss.Color // images
	Warning   lipgloss.Color // placeholder
	Error     lipgloss.Color

	Text    lipgloss.Color
	TextDim lipgloss.Color
}

var (
	// DarkPalette follows the Tokyo Night colours
	DarkPalette = Palette{
		Name:      "dark",
		Border:    lipgloss.Color("#414868"),
		Primary:   lipgloss.Color("#7aa2f7"),
		Secondary: lipgloss.Color("#9ece6a"),
		Accent:    lipgloss.Color("#bb9af7"),
		Warning:   lipgloss.Color("#e0af68"),
		Error:     lipgloss.Color("#f7768e"),
		Text:      lipgloss.Color("#c0caf5"),
		TextDim:   lipgloss.Color("#565f89"),
	}

	// LightPalette is Catppuccin Latte
	LightPalette = Palette{
		Name:      "light",
		Border:    lipgloss.Color("#acb0be"),
		Primary:   lipgloss.Color("#1e66f5"),
		Secondary: lipgloss.Color("#40a02b"),
		Accent:    lipgloss.Color("#8839ef"),
		Warning:   lipgloss.Color("#df8e1d"),
		Error:     lipgloss.Color("#d20f39"),
		Text:      lipgloss.Color("#4c4f69"),
		TextDim:   lipgloss.Color("#8c8fa1"),
	}
)

// PaletteFor picks the palette matching a glamour style
func PaletteFor(style string) Palette {
	if style == "light" {
		return LightPalette
	}
	return DarkPalette
}
