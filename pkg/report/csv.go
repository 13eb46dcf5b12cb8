package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/chatfang/pkg/author"
)

// ServerCSVName is the file name of the server statistics sheet.
const ServerCSVName = "Server Statistics.csv"

// csvWidth is the column count of every row; short rows are padded so the
// sheet opens as a rectangle.
const csvWidth = 6

const csvRule = "-----------------------------"

var statsHeader = []string{
	"Total Messages:",
	"Total Words:",
	"Total Characters:",
	"Total Attachments:",
	"Total Questions:",
	"Total Vocabulary:",
}

type rankingSpec struct {
	title   string
	counter func(author.Stats) uint64
}

var rankings = []rankingSpec{
	{"Message Count Ranking:", func(s author.Stats) uint64 { return s.Messages }},
	{"Word Count Ranking:", func(s author.Stats) uint64 { return s.Words }},
	{"Character Count Ranking:", func(s author.Stats) uint64 { return s.Characters }},
	{"Attachment Count Ranking:", func(s author.Stats) uint64 { return s.Attachments }},
	{"Question Count Ranking:", func(s author.Stats) uint64 { return s.Questions }},
	{"Vocabulary Count Ranking:", func(s author.Stats) uint64 { return s.Vocabulary }},
}

type sheet struct {
	w *csv.Writer
}

func newSheet(w io.Writer) *sheet {
	return &sheet{w: csv.NewWriter(w)}
}

func (s *sheet) row(cells ...string) {
	record := make([]string, max(len(cells), csvWidth))
	copy(record, cells)

	_ = s.w.Write(record) //nolint:errcheck // buffered writer errors are sticky and surface in flush.
}

func (s *sheet) section(title string) {
	s.row(csvRule)
	s.row(title)
	s.row(csvRule)
}

func (s *sheet) stats(st author.Stats) {
	s.row(statsHeader...)
	s.row(
		formatUint(st.Messages),
		formatUint(st.Words),
		formatUint(st.Characters),
		formatUint(st.Attachments),
		formatUint(st.Questions),
		formatUint(st.Vocabulary),
	)
}

func (s *sheet) words(words []WordCount) {
	for i, w := range words {
		s.row(strconv.Itoa(i+1)+":", w.Word, formatUint(w.Count))
	}
}

func (s *sheet) flush() error {
	s.w.Flush()

	err := s.w.Error()
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	return nil
}

// writeServerCSV writes the server sheet: totals, member list, one ranking
// per counter and the server's top words.
func writeServerCSV(w io.Writer, v *view) error {
	s := newSheet(w)

	s.section("Statistics for server:")
	s.stats(v.server.Stats())

	s.row("Members of server:")

	for _, a := range v.authors {
		members := v.name(a)
		if !v.anonymize {
			members = strings.Join(a.Names, ", ")
		}

		s.row(strconv.FormatUint(a.ID, 10), members)
	}

	for _, r := range rankings {
		s.section(r.title)

		for _, a := range v.ranking(r.counter) {
			s.row(v.name(a), formatUint(r.counter(a.Stats())))
		}
	}

	s.section(fmt.Sprintf("Top %d Words:", v.serverTopWords))
	s.words(v.serverWords())

	return s.flush()
}

// writeAuthorCSV writes one author's sheet: totals and the words the author
// uses most that are not among the server's top words.
func writeAuthorCSV(w io.Writer, v *view, a *author.Author) error {
	s := newSheet(w)

	s.row("Statistics for:", v.name(a))
	s.row(csvRule)
	s.stats(a.Stats())
	s.section(fmt.Sprintf("Top %d Words not in Server Top %d", v.topWords, v.topWords))
	s.words(v.distinctiveWords(a))

	return s.flush()
}

func formatUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}
