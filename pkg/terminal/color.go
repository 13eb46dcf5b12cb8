package terminal

import "github.com/fatih/color"

// Color names a foreground color used by the reports.
type Color int

// Colors.
const (
	ColorNone Color = iota
	ColorGreen
	ColorYellow
	ColorRed
	ColorBlue
	ColorGray
)

var attributes = map[Color]color.Attribute{
	ColorGreen:  color.FgGreen,
	ColorYellow: color.FgYellow,
	ColorRed:    color.FgRed,
	ColorBlue:   color.FgBlue,
	ColorGray:   color.FgHiBlack,
}

// Colorize wraps text in the ANSI sequence for c. With NoColor set, or for
// ColorNone, text is returned unchanged.
func (cfg Config) Colorize(text string, c Color) string {
	attr, ok := attributes[c]
	if cfg.NoColor || !ok {
		return text
	}

	painter := color.New(attr)
	painter.EnableColor()

	return painter.Sprint(text)
}
