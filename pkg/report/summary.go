package report

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/pierrec/lz4/v4"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/chatfang/pkg/aggregate"
	"github.com/Sumatoshi-tech/chatfang/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/chatfang/pkg/alg/stats"
	"github.com/Sumatoshi-tech/chatfang/pkg/author"
)

// ErrBadSnapshot is returned when a snapshot stream cannot be decoded.
var ErrBadSnapshot = errors.New("report: bad snapshot")

// WordCount is one ranked vocabulary entry.
type WordCount struct {
	Word  string `json:"word"  yaml:"word"`
	Count uint64 `json:"count" yaml:"count"`
}

// AuthorSummary is the reported view of one accumulator.
type AuthorSummary struct {
	Name     string       `json:"name"                yaml:"name"`
	Names    []string     `json:"names,omitempty"     yaml:"names,omitempty"`
	TopWords []WordCount  `json:"top_words,omitempty" yaml:"top_words,omitempty"`
	Stats    author.Stats `json:"stats"               yaml:"stats"`
	ID       uint64       `json:"id"                  yaml:"id"`
}

// Summary is the document written by the json, yaml and snapshot formats.
// Authors are ordered by id.
type Summary struct {
	GeneratedAt time.Time         `json:"generated_at"       yaml:"generated_at"`
	Channels    map[uint64]string `json:"channels,omitempty" yaml:"channels,omitempty"`
	RunID       string            `json:"run_id,omitempty"   yaml:"run_id,omitempty"`
	Authors     []AuthorSummary   `json:"authors"            yaml:"authors"`
	Server      AuthorSummary     `json:"server"             yaml:"server"`
	// MessagesPerAuthor describes how messages are spread over authors.
	MessagesPerAuthor stats.Summary `json:"messages_per_author" yaml:"messages_per_author"`
}

// view is the resolved, deterministic shape of a result that every format renders.
type view struct {
	server   *author.Author
	channels map[uint64]string
	names    map[uint64]string
	stems    map[uint64]string
	authors  []*author.Author

	// serverTop holds the server's top words as used by the per-author exclusion.
	serverTop map[string]bool

	topWords       int
	serverTopWords int
	anonymize      bool
}

func newView(result *aggregate.Result, channels map[uint64]string, topWords, serverTopWords int, anonymize bool) *view {
	ordered := make([]*author.Author, 0, len(result.Authors))

	for _, id := range mapx.SortedKeys(result.Authors) {
		ordered = append(ordered, result.Authors[id])
	}

	server := result.Server
	if server == nil {
		server = aggregate.ServerAggregate(result.Authors)
	}

	names := displayNames(ordered, anonymize)
	names[author.ServerID] = "server"

	serverTop := make(map[string]bool, topWords)
	for _, e := range mapx.TopN(server.VocabDict, topWords) {
		serverTop[e.Key] = true
	}

	return &view{
		server:         server,
		channels:       channels,
		names:          names,
		stems:          fileStems(ordered, names),
		authors:        ordered,
		serverTop:      serverTop,
		topWords:       topWords,
		serverTopWords: serverTopWords,
		anonymize:      anonymize,
	}
}

func (v *view) name(a *author.Author) string {
	return v.names[a.ID]
}

// serverWords returns the server's top words.
func (v *view) serverWords() []WordCount {
	return toWordCounts(mapx.TopN(v.server.VocabDict, v.serverTopWords))
}

// distinctiveWords returns the author's most used words that are not among
// the server's top words.
func (v *view) distinctiveWords(a *author.Author) []WordCount {
	words := make([]WordCount, 0, v.topWords)

	for _, e := range mapx.Ranked(a.VocabDict) {
		if len(words) >= v.topWords {
			break
		}

		if v.serverTop[e.Key] {
			continue
		}

		words = append(words, WordCount{Word: e.Key, Count: e.Value})
	}

	return words
}

// ranking orders authors by the selected counter, descending, ties by id.
func (v *view) ranking(counter func(author.Stats) uint64) []*author.Author {
	ranked := slices.Clone(v.authors)

	slices.SortStableFunc(ranked, func(a, b *author.Author) int {
		return cmp.Compare(counter(b.Stats()), counter(a.Stats()))
	})

	return ranked
}

func (v *view) summary(runID string, now time.Time) Summary {
	authors := make([]AuthorSummary, len(v.authors))

	for i, a := range v.authors {
		authors[i] = v.authorSummary(a, v.distinctiveWords(a))
	}

	var channels map[uint64]string
	if len(v.channels) > 0 {
		channels = maps.Clone(v.channels)
	}

	return Summary{
		GeneratedAt: now.UTC(),
		Channels:    channels,
		RunID:       runID,
		Authors:     authors,
		Server:      v.authorSummary(v.server, toWordCounts(mapx.TopN(v.server.VocabDict, v.topWords))),

		MessagesPerAuthor: v.messagesPerAuthor(),
	}
}

func (v *view) messagesPerAuthor() stats.Summary {
	counts := make([]uint64, len(v.authors))

	for i, a := range v.authors {
		counts[i] = a.MessageCount
	}

	return stats.Describe(counts)
}

func (v *view) authorSummary(a *author.Author, words []WordCount) AuthorSummary {
	s := AuthorSummary{
		Name:     v.name(a),
		TopWords: words,
		Stats:    a.Stats(),
		ID:       a.ID,
	}

	// Real names are withheld when anonymizing.
	if !v.anonymize && a.ID != author.ServerID {
		s.Names = slices.Clone(a.Names)
	}

	return s
}

func toWordCounts(entries []mapx.Entry[string, uint64]) []WordCount {
	words := make([]WordCount, len(entries))

	for i, e := range entries {
		words[i] = WordCount{Word: e.Key, Count: e.Value}
	}

	return words
}

// WriteJSON writes s as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(s)
	if err != nil {
		return fmt.Errorf("encode json summary: %w", err)
	}

	return nil
}

// WriteYAML writes s as YAML.
func WriteYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(s)
	if err != nil {
		return fmt.Errorf("encode yaml summary: %w", err)
	}

	return enc.Close()
}

// WriteSnapshot writes s as an LZ4 frame of compact JSON.
func WriteSnapshot(w io.Writer, s Summary) error {
	zw := lz4.NewWriter(w)

	err := json.NewEncoder(zw).Encode(s)
	if err != nil {
		return errors.Join(fmt.Errorf("encode snapshot: %w", err), zw.Close())
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("close snapshot frame: %w", err)
	}

	return nil
}

// ReadSnapshot decodes a snapshot written by [WriteSnapshot].
func ReadSnapshot(r io.Reader) (Summary, error) {
	var s Summary

	err := json.NewDecoder(lz4.NewReader(r)).Decode(&s)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrBadSnapshot, err)
	}

	return s, nil
}
