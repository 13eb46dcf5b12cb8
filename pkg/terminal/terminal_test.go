package terminal_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/chatfang/pkg/terminal"
)

func TestParseWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		columns string
		want    int
	}{
		{"empty", "", terminal.DefaultWidth},
		{"invalid", "wide", terminal.DefaultWidth},
		{"negative", "-4", terminal.DefaultWidth},
		{"in_range", "100", 100},
		{"too_narrow", "20", terminal.MinWidth},
		{"too_wide", "400", terminal.MaxWidth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, terminal.ParseWidth(tt.columns))
		})
	}
}

func TestColorize(t *testing.T) {
	t.Parallel()

	plain := terminal.Config{NoColor: true}
	assert.Equal(t, "hi", plain.Colorize("hi", terminal.ColorRed))

	colored := terminal.Config{}
	out := colored.Colorize("hi", terminal.ColorRed)
	assert.Contains(t, out, "hi")
	assert.Contains(t, out, "\x1b[31m")

	assert.Equal(t, "hi", colored.Colorize("hi", terminal.ColorNone))
}

func TestDrawHeader(t *testing.T) {
	t.Parallel()

	header := terminal.DrawHeader("Chat", "3 authors", 30)
	lines := strings.Split(header, "\n")

	assert.Len(t, lines, 3)

	for _, line := range lines {
		assert.Equal(t, 30, utf8.RuneCountInString(line))
	}

	assert.Contains(t, lines[1], "Chat")
	assert.Contains(t, lines[1], "3 authors")
}

func TestDrawHeader_GrowsToFit(t *testing.T) {
	t.Parallel()

	header := terminal.DrawHeader("A long title", "right", 5)
	lines := strings.Split(header, "\n")

	assert.Equal(t, utf8.RuneCountInString(lines[0]), utf8.RuneCountInString(lines[1]))
}

func TestDrawSeparator(t *testing.T) {
	t.Parallel()

	assert.Empty(t, terminal.DrawSeparator(0))
	assert.Equal(t, "───", terminal.DrawSeparator(3))
}

func TestTruncateWithEllipsis(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", terminal.TruncateWithEllipsis("short", 10))
	assert.Equal(t, "long n...", terminal.TruncateWithEllipsis("long name here", 9))
	assert.Equal(t, "éé...", terminal.TruncateWithEllipsis("éééééé", 5))
	assert.Equal(t, "..", terminal.TruncateWithEllipsis("abcdef", 2))
}

func TestPadRight(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ab  ", terminal.PadRight("ab", 4))
	assert.Equal(t, "é   ", terminal.PadRight("é", 4))
	assert.Equal(t, "abcdef", terminal.PadRight("abcdef", 3))
}
