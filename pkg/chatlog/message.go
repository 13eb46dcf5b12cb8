// Package chatlog defines the chat record model consumed by the statistics engine
// and the parser that builds it from exported log rows.
package chatlog

import "time"

// Message is one exported chat record. Values are treated as immutable once built.
type Message struct {
	Timestamp time.Time
	// Reactions maps a reaction label to its count. Captured but not consumed
	// by the aggregation engine.
	Reactions   map[string]uint64
	AuthorName  string
	Content     string
	Attachments []string
	AuthorID    uint64
	// ChannelID identifies the source channel, or 0 when channels are not tracked.
	ChannelID uint64
}

// TimeEntry is a single time-ledger element: when a message was sent and where.
type TimeEntry struct {
	At        time.Time `json:"at"         yaml:"at"`
	ChannelID uint64    `json:"channel_id" yaml:"channel_id"`
}

// Entry returns the time-ledger entry for the message.
func (m Message) Entry() TimeEntry {
	return TimeEntry{At: m.Timestamp, ChannelID: m.ChannelID}
}
