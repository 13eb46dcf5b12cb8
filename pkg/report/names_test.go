package report //nolint:testpackage // exercises unexported naming helpers.

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/chatlog"
)

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "alice", "alice"},
		{"separators", "../etc/passwd", "etcpasswd"},
		{"backslash", `a\b`, "ab"},
		{"reserved", `who? <me>: "x"|*`, "who me x"},
		{"control", "tab\there\n", "tabhere"},
		{"unicode_kept", "Zoë 🎉", "Zoë 🎉"},
		{"dots_trimmed", "..", "_"},
		{"empty", "", "_"},
		{"only_reserved", "///", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	t.Parallel()

	got := SanitizeFilename(strings.Repeat("é", 300))

	assert.LessOrEqual(t, len(got), maxFilenameBytes)
	assert.Equal(t, strings.Repeat("é", maxFilenameBytes/2), got)
}

func TestAnonymousID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A", anonymousID(0))
	assert.Equal(t, "Z", anonymousID(25))
	assert.Equal(t, "AA", anonymousID(26))
	assert.Equal(t, "AZ", anonymousID(51))
	assert.Equal(t, "BA", anonymousID(52))
	assert.Equal(t, "AAA", anonymousID(26+26*26))
}

func TestFileStems_Collisions(t *testing.T) {
	t.Parallel()

	ordered := []*author.Author{author.New(1), author.New(2), author.New(3)}
	names := map[uint64]string{1: "Sam", 2: "sam", 3: "s/am"}

	stems := fileStems(ordered, names)

	assert.Equal(t, "Sam", stems[1])
	assert.Equal(t, "sam-2", stems[2])
	assert.Equal(t, "sam-3", stems[3])
}

func TestFileStems_SuffixedStemStaysUnique(t *testing.T) {
	t.Parallel()

	ordered := []*author.Author{author.New(1), author.New(2), author.New(3), author.New(4)}
	names := map[uint64]string{1: "bob", 2: "bob-3", 3: "Bob", 4: "BOB-3"}

	stems := fileStems(ordered, names)

	assert.Equal(t, "bob", stems[1])
	assert.Equal(t, "bob-3", stems[2])
	assert.Equal(t, "Bob-3-2", stems[3])
	assert.Equal(t, "BOB-3-4", stems[4])

	seen := make(map[string]uint64, len(stems))
	for id, stem := range stems {
		prev, dup := seen[strings.ToLower(stem)]
		assert.False(t, dup, "authors %d and %d share stem %q", prev, id, stem)
		seen[strings.ToLower(stem)] = id
	}
}

func TestDisplayNames_FromMap(t *testing.T) {
	t.Parallel()

	a := author.New(9)
	a.Names = []string{"zed"}
	b := author.New(5)
	b.Names = []string{"amy"}
	authors := map[uint64]*author.Author{9: a, 5: b}

	assert.Equal(t, map[uint64]string{5: "amy", 9: "zed"}, DisplayNames(authors, false))
	assert.Equal(t, map[uint64]string{5: "Author-A", 9: "Author-B"}, DisplayNames(authors, true))
}

func TestDisplayNames(t *testing.T) {
	t.Parallel()

	a := author.New(5)
	a.Names = []string{"first", "second"}
	b := author.New(9)

	assert.Equal(t, map[uint64]string{5: "first", 9: "author_9"}, displayNames([]*author.Author{a, b}, false))
	assert.Equal(t, map[uint64]string{5: "Author-A", 9: "Author-B"}, displayNames([]*author.Author{a, b}, true))
}

func TestMinuteHistogram(t *testing.T) {
	t.Parallel()

	day := time.Date(2021, time.March, 5, 0, 0, 0, 0, time.UTC)
	a := author.New(1)
	a.TimeLedger = []chatlog.TimeEntry{
		{At: day, ChannelID: 1},
		{At: day.Add(24 * time.Hour), ChannelID: 2},
		{At: day.Add(21*time.Hour + 41*time.Minute), ChannelID: 1},
		{At: day.Add(23*time.Hour + 59*time.Minute + 59*time.Second), ChannelID: 2},
	}

	all := MinuteHistogram(a.Times(), nil)
	assert.Equal(t, uint64(2), all[0])
	assert.Equal(t, uint64(1), all[21*60+41])
	assert.Equal(t, uint64(1), all[MinutesPerDay-1])

	channel := uint64(2)
	only := MinuteHistogram(a.Times(), &channel)
	assert.Equal(t, uint64(1), only[0])
	assert.Equal(t, uint64(0), only[21*60+41])
	assert.Equal(t, uint64(1), only[MinutesPerDay-1])

	var total uint64
	for _, n := range all {
		total += n
	}

	assert.Equal(t, uint64(len(a.TimeLedger)), total)
}

func TestMinuteLabels(t *testing.T) {
	t.Parallel()

	labels := minuteLabels()

	assert.Len(t, labels, MinutesPerDay)
	assert.Equal(t, "00:00", labels[0])
	assert.Equal(t, "21:41", labels[21*60+41])
	assert.Equal(t, "23:59", labels[MinutesPerDay-1])
}
