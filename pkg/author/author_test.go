package author_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/chatlog"
)

var (
	t1 = time.Date(2021, time.March, 5, 21, 41, 0, 0, time.UTC)
	t2 = time.Date(2021, time.March, 6, 8, 2, 0, 0, time.UTC)
)

func msg(id uint64, name, content string, at time.Time, attachments ...string) chatlog.Message {
	return chatlog.Message{
		AuthorID:    id,
		AuthorName:  name,
		Timestamp:   at,
		Content:     content,
		Attachments: attachments,
	}
}

func TestProcess_AliceScenario(t *testing.T) {
	t.Parallel()

	a := author.New(42)
	a.Process(msg(42, "alice", "hello world", t1))
	a.Process(msg(42, "alice", "hello?", t2))

	assert.Equal(t, uint64(2), a.MessageCount)
	assert.Equal(t, uint64(3), a.WordCount)
	assert.Equal(t, map[string]uint64{"hello": 1, "world": 1, "hello?": 1}, a.VocabDict)
	assert.Equal(t, uint64(1), a.QuestionCount)
	assert.Equal(t, uint64(17), a.CharacterCount)
	assert.Equal(t, []string{"alice"}, a.Names)
	assert.ElementsMatch(t, []chatlog.TimeEntry{{At: t1}, {At: t2}}, a.TimeLedger)
	require.NoError(t, a.CheckInvariants())
}

func TestProcess_Tokenization(t *testing.T) {
	t.Parallel()

	t.Run("runs_of_spaces_yield_empty_tokens", func(t *testing.T) {
		t.Parallel()

		a := author.New(1)
		a.Process(msg(1, "bob", "a  b", t1))

		assert.Equal(t, uint64(3), a.WordCount)
		assert.Equal(t, map[string]uint64{"a": 1, "": 1, "b": 1}, a.VocabDict)
	})

	t.Run("empty_content_is_one_empty_token", func(t *testing.T) {
		t.Parallel()

		a := author.New(1)
		a.Process(msg(1, "bob", "", t1))

		assert.Equal(t, uint64(1), a.WordCount)
		assert.Equal(t, uint64(0), a.CharacterCount)
		assert.Equal(t, map[string]uint64{"": 1}, a.VocabDict)
	})

	t.Run("case_preserved_and_tabs_not_split", func(t *testing.T) {
		t.Parallel()

		a := author.New(1)
		a.Process(msg(1, "bob", "Hi hi\tthere", t1))

		assert.Equal(t, map[string]uint64{"Hi": 1, "hi\tthere": 1}, a.VocabDict)
	})
}

func TestProcess_CharacterCountIsBytes(t *testing.T) {
	t.Parallel()

	a := author.New(1)
	a.Process(msg(1, "bob", "héllo", t1))

	assert.Equal(t, uint64(6), a.CharacterCount)
}

func TestProcess_QuestionCountedOncePerMessage(t *testing.T) {
	t.Parallel()

	a := author.New(1)
	a.Process(msg(1, "bob", "why? how?? what???", t1))

	assert.Equal(t, uint64(1), a.QuestionCount)
}

func TestProcess_NamesAndAttachments(t *testing.T) {
	t.Parallel()

	a := author.New(9)
	a.Process(msg(9, "old", "x", t1, "a.png"))
	a.Process(msg(9, "new", "y", t2, "b.png", "c.png"))
	a.Process(msg(9, "old", "z", t2))

	assert.Equal(t, []string{"old", "new"}, a.Names)
	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, a.AttachmentsLedger)
	assert.Equal(t, "old", a.DisplayName())
	assert.Equal(t, uint64(3), a.Stats().Attachments)
}

func TestProcess_TracksChannel(t *testing.T) {
	t.Parallel()

	m := msg(3, "c", "hi", t1)
	m.ChannelID = 12

	a := author.New(3)
	a.Process(m)

	var entries []chatlog.TimeEntry
	for e := range a.Times() {
		entries = append(entries, e)
	}

	assert.Equal(t, []chatlog.TimeEntry{{At: t1, ChannelID: 12}}, entries)
}

func TestMerge(t *testing.T) {
	t.Parallel()

	a := author.New(5)
	a.Process(msg(5, "x", "hello world", t1, "one"))

	b := author.New(5)
	b.Process(msg(5, "y", "hello there?", t2, "two"))
	b.AgreementDict = map[string]uint64{"z": 1}
	b.TimesMajority = 2

	bBefore := b.Clone()

	a.Merge(b)

	assert.Equal(t, []string{"x", "y"}, a.Names)
	assert.Equal(t, uint64(2), a.MessageCount)
	assert.Equal(t, uint64(4), a.WordCount)
	assert.Equal(t, uint64(23), a.CharacterCount)
	assert.Equal(t, uint64(1), a.QuestionCount)
	assert.Equal(t, uint64(2), a.TimesMajority)
	assert.Equal(t, map[string]uint64{"hello": 2, "world": 1, "there?": 1}, a.VocabDict)
	assert.Equal(t, map[string]uint64{"z": 1}, a.AgreementDict)
	assert.Equal(t, []string{"one", "two"}, a.AttachmentsLedger)
	assert.Len(t, a.TimeLedger, 2)
	require.NoError(t, a.CheckInvariants())

	// The source stays untouched.
	assert.Equal(t, bBefore, b)

	// And is not aliased.
	a.VocabDict["hello"] = 100
	assert.Equal(t, uint64(1), b.VocabDict["hello"])
}

func TestMerge_Commutative(t *testing.T) {
	t.Parallel()

	a := author.New(5)
	a.Process(msg(5, "x", "a b c", t1))

	b := author.New(5)
	b.Process(msg(5, "x", "c d?", t2, "file"))

	ab := a.Clone()
	ab.Merge(b)

	ba := b.Clone()
	ba.Merge(a)

	assert.Equal(t, ab.Stats(), ba.Stats())
	assert.Equal(t, ab.VocabDict, ba.VocabDict)
	assert.ElementsMatch(t, ab.TimeLedger, ba.TimeLedger)
	assert.ElementsMatch(t, ab.AttachmentsLedger, ba.AttachmentsLedger)
}

func TestMerge_Associative(t *testing.T) {
	t.Parallel()

	parts := make([]*author.Author, 3)
	for i, content := range []string{"a b", "b c?", "c  d"} {
		parts[i] = author.New(5)
		parts[i].Process(msg(5, "x", content, t1))
	}

	left := parts[0].Clone()
	left.Merge(parts[1])
	left.Merge(parts[2])

	bc := parts[1].Clone()
	bc.Merge(parts[2])

	right := parts[0].Clone()
	right.Merge(bc)

	assert.Equal(t, left.Stats(), right.Stats())
	assert.Equal(t, left.VocabDict, right.VocabDict)
	assert.ElementsMatch(t, left.TimeLedger, right.TimeLedger)
}

func TestMerge_EmptyIsIdentity(t *testing.T) {
	t.Parallel()

	a := author.New(5)
	a.Process(msg(5, "x", "hello world?", t1, "file"))

	before := a.Clone()

	a.Merge(author.New(5))
	a.Merge(nil)

	assert.Equal(t, before, a)
}

func TestCheckInvariants_Violation(t *testing.T) {
	t.Parallel()

	a := author.New(5)
	a.Process(msg(5, "x", "hello", t1))
	a.MessageCount++

	require.ErrorIs(t, a.CheckInvariants(), author.ErrInvariant)

	b := author.New(6)
	b.Process(msg(6, "x", "hello", t1))
	b.WordCount++

	require.ErrorIs(t, b.CheckInvariants(), author.ErrInvariant)
}

func TestDisplayName_Placeholders(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "server", author.New(author.ServerID).DisplayName())
	assert.Equal(t, "author_7", author.New(7).DisplayName())
}

func TestString(t *testing.T) {
	t.Parallel()

	a := author.New(42)
	a.Process(msg(42, "alice", "hello world", t1))

	assert.Equal(t,
		"id=42 names=[alice] messages=1 words=2 characters=11 attachments=0 vocabulary=2 time_entries=1",
		a.String())
}
