// Package author provides the per-identity statistics accumulator that the
// aggregation engine folds chat messages into.
package author

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/chatfang/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/chatfang/pkg/chatlog"
	"github.com/Sumatoshi-tech/chatfang/pkg/safeconv"
)

// ServerID is the identity reserved for the server-wide aggregate.
// Real author ids are nonzero, so it never collides.
const ServerID uint64 = 0

const (
	wordSeparator  = " "
	questionMarker = "?"
)

// ErrInvariant is returned by [Author.CheckInvariants] when counters disagree.
var ErrInvariant = errors.New("author: invariant violated")

// Author is the running total of everything attributable to one chat identity.
type Author struct {
	// VocabDict maps each whitespace-split token (case preserved) to its count.
	VocabDict map[string]uint64 `json:"vocab_dict"                yaml:"vocab_dict"`
	// AgreementDict is reserved for poll agreement tracking and is not populated.
	AgreementDict map[string]uint64 `json:"agreement_dict,omitempty" yaml:"agreement_dict,omitempty"`
	// Names holds every display name seen for the id, in first-seen order.
	Names []string `json:"names" yaml:"names"`
	// TimeLedger has one entry per message. Order carries no meaning.
	TimeLedger        []chatlog.TimeEntry `json:"time_ledger"        yaml:"time_ledger"`
	AttachmentsLedger []string            `json:"attachments_ledger" yaml:"attachments_ledger"`

	ID             uint64 `json:"id"              yaml:"id"`
	MessageCount   uint64 `json:"message_count"   yaml:"message_count"`
	WordCount      uint64 `json:"word_count"      yaml:"word_count"`
	CharacterCount uint64 `json:"character_count" yaml:"character_count"`
	QuestionCount  uint64 `json:"question_count"  yaml:"question_count"`
	// TimesMajority and TimesMinority are reserved for poll tracking and are not populated.
	TimesMajority uint64 `json:"times_majority,omitempty" yaml:"times_majority,omitempty"`
	TimesMinority uint64 `json:"times_minority,omitempty" yaml:"times_minority,omitempty"`
}

// Stats is the flat stats row reported for an author.
type Stats struct {
	Messages    uint64 `json:"messages"    yaml:"messages"`
	Words       uint64 `json:"words"       yaml:"words"`
	Characters  uint64 `json:"characters"  yaml:"characters"`
	Attachments uint64 `json:"attachments" yaml:"attachments"`
	Questions   uint64 `json:"questions"   yaml:"questions"`
	Vocabulary  uint64 `json:"vocabulary"  yaml:"vocabulary"`
}

// New returns an empty accumulator for id.
func New(id uint64) *Author {
	return &Author{
		ID:        id,
		VocabDict: make(map[string]uint64),
	}
}

// Process folds one message into the accumulator. The caller guarantees
// msg.AuthorID matches a.ID.
//
// Content is split on single spaces, so runs of spaces produce empty tokens;
// those are counted as words and stored under the "" key.
func (a *Author) Process(msg chatlog.Message) {
	a.addName(msg.AuthorName)

	words := strings.Split(msg.Content, wordSeparator)

	a.MessageCount++
	a.WordCount += safeconv.MustIntToUint64(len(words))
	a.CharacterCount += safeconv.MustIntToUint64(len(msg.Content))

	if strings.Contains(msg.Content, questionMarker) {
		a.QuestionCount++
	}

	a.TimeLedger = append(a.TimeLedger, msg.Entry())
	a.AttachmentsLedger = append(a.AttachmentsLedger, msg.Attachments...)

	if a.VocabDict == nil {
		a.VocabDict = make(map[string]uint64, len(words))
	}

	for _, word := range words {
		a.VocabDict[word]++
	}
}

// Merge adds other's totals into a. other is left untouched and nothing of it
// is aliased. Ids are not compared: merging different ids is how the server
// aggregate is built.
func (a *Author) Merge(other *Author) {
	if other == nil {
		return
	}

	for _, name := range other.Names {
		a.addName(name)
	}

	a.MessageCount += other.MessageCount
	a.WordCount += other.WordCount
	a.CharacterCount += other.CharacterCount
	a.QuestionCount += other.QuestionCount
	a.TimesMajority += other.TimesMajority
	a.TimesMinority += other.TimesMinority

	a.TimeLedger = append(a.TimeLedger, other.TimeLedger...)
	a.AttachmentsLedger = append(a.AttachmentsLedger, other.AttachmentsLedger...)

	if len(other.VocabDict) > 0 {
		if a.VocabDict == nil {
			a.VocabDict = make(map[string]uint64, len(other.VocabDict))
		}

		mapx.MergeAdditive(a.VocabDict, other.VocabDict)
	}

	if len(other.AgreementDict) > 0 {
		if a.AgreementDict == nil {
			a.AgreementDict = make(map[string]uint64, len(other.AgreementDict))
		}

		mapx.MergeAdditive(a.AgreementDict, other.AgreementDict)
	}
}

func (a *Author) addName(name string) {
	if !slices.Contains(a.Names, name) {
		a.Names = append(a.Names, name)
	}
}

// DisplayName returns the first name seen for the author, or a placeholder.
func (a *Author) DisplayName() string {
	if len(a.Names) > 0 {
		return a.Names[0]
	}

	if a.ID == ServerID {
		return "server"
	}

	return fmt.Sprintf("author_%d", a.ID)
}

// Times iterates over the time ledger.
func (a *Author) Times() iter.Seq[chatlog.TimeEntry] {
	return slices.Values(a.TimeLedger)
}

// Stats returns the flat stats row.
func (a *Author) Stats() Stats {
	return Stats{
		Messages:    a.MessageCount,
		Words:       a.WordCount,
		Characters:  a.CharacterCount,
		Attachments: safeconv.MustIntToUint64(len(a.AttachmentsLedger)),
		Questions:   a.QuestionCount,
		Vocabulary:  safeconv.MustIntToUint64(len(a.VocabDict)),
	}
}

// CheckInvariants verifies the counter relationships every accumulator must hold.
func (a *Author) CheckInvariants() error {
	if got := uint64(len(a.TimeLedger)); got != a.MessageCount {
		return fmt.Errorf("%w: author %d has %d messages but %d time entries",
			ErrInvariant, a.ID, a.MessageCount, got)
	}

	if got := mapx.Sum(a.VocabDict); got != a.WordCount {
		return fmt.Errorf("%w: author %d has %d words but vocabulary sums to %d",
			ErrInvariant, a.ID, a.WordCount, got)
	}

	return nil
}

// String returns a one-line debug summary.
func (a *Author) String() string {
	return fmt.Sprintf("id=%d names=%v messages=%d words=%d characters=%d attachments=%d vocabulary=%d time_entries=%d",
		a.ID, a.Names, a.MessageCount, a.WordCount, a.CharacterCount,
		len(a.AttachmentsLedger), len(a.VocabDict), len(a.TimeLedger))
}
