package aggregate

import (
	"github.com/Sumatoshi-tech/chatfang/pkg/alg/mapx"
	"github.com/Sumatoshi-tech/chatfang/pkg/author"
	"github.com/Sumatoshi-tech/chatfang/pkg/chatlog"
)

// AggregateShard folds one shard, in order, into a fresh map of author accumulators.
func AggregateShard(shard []chatlog.Message) map[uint64]*author.Author {
	authors := make(map[uint64]*author.Author)

	for _, msg := range shard {
		acc, ok := authors[msg.AuthorID]
		if !ok {
			acc = author.New(msg.AuthorID)
			authors[msg.AuthorID] = acc
		}

		acc.Process(msg)
	}

	return authors
}

// MergeShards combines per-shard maps into one master map. The first partial
// seen for an id is adopted as-is; later partials are merged into it, so the
// parts must not be used afterwards. Must run on a single goroutine.
func MergeShards(parts []map[uint64]*author.Author) map[uint64]*author.Author {
	master := make(map[uint64]*author.Author)

	for _, part := range parts {
		for id, partial := range part {
			if existing, ok := master[id]; ok {
				existing.Merge(partial)

				continue
			}

			master[id] = partial
		}
	}

	return master
}

// ServerAggregate builds the corpus-wide accumulator by merging every real
// author of master, in ascending id order. It is the only way the server
// totals are produced; messages are never folded into it directly.
func ServerAggregate(master map[uint64]*author.Author) *author.Author {
	server := author.New(author.ServerID)

	for _, id := range mapx.SortedKeys(master) {
		if id == author.ServerID {
			continue
		}

		server.Merge(master[id])
	}

	return server
}
