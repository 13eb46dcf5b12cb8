package chatlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sentinel ingestion errors.
var (
	ErrMalformedRecord = errors.New("chatlog: malformed record")
	ErrBadTimestamp    = errors.New("chatlog: unparsable timestamp")
)

// Record field positions.
const (
	FieldAuthorID = iota
	FieldAuthorName
	FieldTimestamp
	FieldContent
	FieldAttachments
	FieldReactions

	// RecordFields is the number of fields in an exported row.
	RecordFields
)

// TimestampLayout is the export timestamp format, e.g. "05-Mar-21 09:41 PM".
// Day and hour accept both zero-padded and unpadded values.
const TimestampLayout = "2-Jan-06 3:04 PM"

// emptyMarkerLen is the longest field value treated as "no entries".
// Exports write short placeholders instead of leaving the column blank.
const emptyMarkerLen = 5

// ParseRecord builds a Message from one exported row.
func ParseRecord(fields []string, channelID uint64) (Message, error) {
	if len(fields) < RecordFields {
		return Message{}, fmt.Errorf("%w: got %d fields, want %d", ErrMalformedRecord, len(fields), RecordFields)
	}

	authorID, err := strconv.ParseUint(strings.TrimSpace(fields[FieldAuthorID]), 10, 64)
	if err != nil {
		return Message{}, fmt.Errorf("%w: author id %q: %w", ErrMalformedRecord, fields[FieldAuthorID], err)
	}

	if authorID == 0 {
		return Message{}, fmt.Errorf("%w: author id 0 is reserved", ErrMalformedRecord)
	}

	ts, err := ParseTimestamp(fields[FieldTimestamp])
	if err != nil {
		return Message{}, err
	}

	return Message{
		AuthorID:    authorID,
		AuthorName:  fields[FieldAuthorName],
		Timestamp:   ts,
		Content:     fields[FieldContent],
		Attachments: ParseAttachments(fields[FieldAttachments]),
		Reactions:   ParseReactions(fields[FieldReactions]),
		ChannelID:   channelID,
	}, nil
}

// ParseTimestamp parses an export timestamp as a zone-less wall-clock time.
func ParseTimestamp(raw string) (time.Time, error) {
	ts, err := time.Parse(TimestampLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", ErrBadTimestamp, raw, err)
	}

	return ts, nil
}

// ParseAttachments splits a comma-joined attachment list.
// Returns nil for the empty marker.
func ParseAttachments(raw string) []string {
	if len(raw) <= emptyMarkerLen {
		return nil
	}

	return strings.Split(raw, ",")
}

// ParseReactions parses comma-joined "label (count)" pairs.
// Returns nil for the empty marker. A missing or unparsable count is recorded as 0.
func ParseReactions(raw string) map[string]uint64 {
	if len(raw) <= emptyMarkerLen {
		return nil
	}

	reactions := make(map[string]uint64)

	for pair := range strings.SplitSeq(raw, ",") {
		label, count, _ := strings.Cut(strings.TrimSpace(pair), " ")
		if label == "" {
			continue
		}

		count = strings.NewReplacer("(", "", ")", "").Replace(count)

		n, err := strconv.ParseUint(strings.TrimSpace(count), 10, 64)
		if err != nil {
			n = 0
		}

		reactions[label] = n
	}

	return reactions
}
