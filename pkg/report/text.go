package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/chatfang/pkg/alg/stats"
	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/safeconv"
	"github.com/Sumatoshi-tech/chatfang/pkg/terminal"
)

const (
	textMaxAuthors  = 10
	textMaxWords    = 10
	textNameWidth   = 24
	textIndent      = "  "
	textLabelFormat = "%s%-22s %s\n"
)

// writeText writes the colored terminal summary.
func writeText(w io.Writer, v *view, cfg terminal.Config) error {
	ew := &errWriter{w: w}

	fmt.Fprintln(ew, terminal.DrawHeader("Chat Statistics",
		fmt.Sprintf("%s authors", humanize.Comma(int64(len(v.authors)))), cfg.Width))
	fmt.Fprintln(ew)

	writeTotals(ew, cfg, v.server.Stats(), len(v.channels))
	writeSpread(ew, v.messagesPerAuthor())

	if len(v.authors) > 0 {
		fmt.Fprintln(ew)
		writeTopAuthors(ew, cfg, v)
	}

	if len(v.server.VocabDict) > 0 {
		fmt.Fprintln(ew)
		writeTopWords(ew, cfg, v)
	}

	fmt.Fprintln(ew)

	if ew.err != nil {
		return fmt.Errorf("write text summary: %w", ew.err)
	}

	return nil
}

func writeSectionTitle(w io.Writer, cfg terminal.Config, title string) {
	fmt.Fprintf(w, "%s%s\n", textIndent, cfg.Colorize(title, terminal.ColorBlue))
	fmt.Fprintf(w, "%s%s\n", textIndent, terminal.DrawSeparator(cfg.Width-len(textIndent)*2))
}

func writeTotals(w io.Writer, cfg terminal.Config, st author.Stats, channels int) {
	writeSectionTitle(w, cfg, "Summary")

	fmt.Fprintf(w, textLabelFormat, textIndent, "Messages", formatCount(st.Messages))
	fmt.Fprintf(w, textLabelFormat, textIndent, "Words", formatCount(st.Words))
	fmt.Fprintf(w, textLabelFormat, textIndent, "Characters", formatCount(st.Characters))
	fmt.Fprintf(w, textLabelFormat, textIndent, "Attachments", formatCount(st.Attachments))
	fmt.Fprintf(w, textLabelFormat, textIndent, "Questions", formatCount(st.Questions))
	fmt.Fprintf(w, textLabelFormat, textIndent, "Vocabulary", formatCount(st.Vocabulary))

	if channels > 0 {
		fmt.Fprintf(w, textLabelFormat, textIndent, "Channels", humanize.Comma(int64(channels)))
	}
}

func writeSpread(w io.Writer, spread stats.Summary) {
	if spread.Count == 0 {
		return
	}

	fmt.Fprintf(w, textLabelFormat, textIndent, "Messages per Author",
		fmt.Sprintf("mean %.1f  median %.1f  p90 %.1f  max %s",
			spread.Mean, spread.Median, spread.P90, formatCount(spread.Max)))
}

func writeTopAuthors(w io.Writer, cfg terminal.Config, v *view) {
	writeSectionTitle(w, cfg, "Top Authors")

	ranked := v.ranking(func(s author.Stats) uint64 { return s.Messages })
	shown := min(len(ranked), textMaxAuthors)

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"#", "Author", "Messages", "Words", "Questions", "Vocabulary"})

	for i, a := range ranked[:shown] {
		st := a.Stats()
		tbl.AppendRow(table.Row{
			i + 1,
			terminal.TruncateWithEllipsis(v.name(a), textNameWidth),
			formatCount(st.Messages),
			formatCount(st.Words),
			formatCount(st.Questions),
			formatCount(st.Vocabulary),
		})
	}

	tbl.Render()

	if len(ranked) > textMaxAuthors {
		fmt.Fprintf(w, "%s%s\n", textIndent,
			cfg.Colorize(fmt.Sprintf("  and %d more...", len(ranked)-textMaxAuthors), terminal.ColorGray))
	}
}

func writeTopWords(w io.Writer, cfg terminal.Config, v *view) {
	writeSectionTitle(w, cfg, "Top Words")

	words := v.serverWords()
	shown := min(len(words), textMaxWords)

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"#", "Word", "Count"})

	for i, word := range words[:shown] {
		tbl.AppendRow(table.Row{i + 1, strconv.Quote(word.Word), formatCount(word.Count)})
	}

	tbl.Render()
}

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Box.PaddingLeft = textIndent

	return tbl
}

func formatCount(n uint64) string {
	return humanize.Comma(safeconv.ClampToInt64(n))
}

// errWriter remembers the first write error so a run of Fprintf calls can be
// checked once.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}

	n, err := ew.w.Write(p)
	ew.err = err

	return n, err
}
