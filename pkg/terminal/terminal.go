// Package terminal provides the small rendering helpers used by the text report.
package terminal

import (
	"os"
	"strconv"
)

// Width limits.
const (
	DefaultWidth = 80
	MinWidth     = 60
	MaxWidth     = 120
)

// Config holds terminal rendering configuration.
type Config struct {
	Width   int
	NoColor bool
}

// NewConfig builds a Config from COLUMNS and NO_COLOR.
func NewConfig() Config {
	return Config{
		Width:   ParseWidth(os.Getenv("COLUMNS")),
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// ParseWidth converts a COLUMNS value to a width clamped to [MinWidth, MaxWidth].
// Empty or invalid input yields DefaultWidth.
func ParseWidth(columns string) int {
	if columns == "" {
		return DefaultWidth
	}

	width, err := strconv.Atoi(columns)
	if err != nil || width <= 0 {
		return DefaultWidth
	}

	return min(max(width, MinWidth), MaxWidth)
}
