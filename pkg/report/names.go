package report

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Sumatoshi-tech/chatfang/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/chatfang/pkg/author"
)

const (
	maxFilenameBytes = 200
	anonymousPrefix  = "Author-"
	letters          = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// SanitizeFilename makes name safe to use as a single path element on every
// common filesystem. Path separators, control characters and the characters
// Windows reserves are dropped; leading and trailing dots and spaces are
// trimmed. An empty result becomes "_".
func SanitizeFilename(name string) string {
	var b strings.Builder

	for _, r := range name {
		if r == utf8.RuneError || unicode.IsControl(r) || strings.ContainsRune(`/\<>:"|?*`, r) {
			continue
		}

		b.WriteRune(r)
	}

	out := strings.Trim(b.String(), ". ")

	for len(out) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(out)
		out = out[:len(out)-size]
	}

	if out == "" {
		return "_"
	}

	return out
}

// anonymousID maps 0, 1, ... to A, B, ..., Z, AA, AB, ...
func anonymousID(index int) string {
	var id []byte

	for n := index + 1; n > 0; n = (n - 1) / len(letters) {
		id = append(id, letters[(n-1)%len(letters)])
	}

	for i, j := 0, len(id)-1; i < j; i, j = i+1, j-1 {
		id[i], id[j] = id[j], id[i]
	}

	return string(id)
}

// DisplayNames resolves the name every output uses for each author: the first
// display name, or Author-A, Author-B, ... in ascending id order when
// anonymize is set.
func DisplayNames(authors map[uint64]*author.Author, anonymize bool) map[uint64]string {
	ordered := make([]*author.Author, 0, len(authors))
	for _, id := range mapx.SortedKeys(authors) {
		ordered = append(ordered, authors[id])
	}

	return displayNames(ordered, anonymize)
}

// displayNames resolves the report name of every author. ordered must be
// sorted by id; with anonymize set names are handed out in that order.
func displayNames(ordered []*author.Author, anonymize bool) map[uint64]string {
	names := make(map[uint64]string, len(ordered))

	for i, a := range ordered {
		if anonymize {
			names[a.ID] = anonymousPrefix + anonymousID(i)

			continue
		}

		names[a.ID] = a.DisplayName()
	}

	return names
}

// fileStems assigns every author a unique sanitized file stem. The first
// author (by id) keeps the bare name; later collisions get the id appended,
// then a counter while the result is still taken. Comparison ignores case.
func fileStems(ordered []*author.Author, names map[uint64]string) map[uint64]string {
	stems := make(map[uint64]string, len(ordered))
	taken := make(map[string]bool, len(ordered))

	for _, a := range ordered {
		base := SanitizeFilename(names[a.ID])
		stem := base

		for n := 1; taken[strings.ToLower(stem)]; n++ {
			stem = base + "-" + strconv.FormatUint(a.ID, 10)
			if n > 1 {
				stem += "-" + strconv.Itoa(n)
			}
		}

		taken[strings.ToLower(stem)] = true
		stems[a.ID] = stem
	}

	return stems
}
