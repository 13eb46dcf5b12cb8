package aggregate

import "github.com/Sumatoshi-tech/chatfang/pkg/chatlog"

// Partition splits messages into exactly max(k, 1) disjoint shards by indexed
// chunking. Shard i holds the contiguous range [i*size, (i+1)*size) with
// size = ceil(len(messages)/k); trailing shards may be empty when there are
// fewer messages than shards. Shards are sub-slices of messages, not copies.
func Partition(messages []chatlog.Message, k int) [][]chatlog.Message {
	k = max(k, 1)
	shards := make([][]chatlog.Message, k)

	if len(messages) == 0 {
		return shards
	}

	size := (len(messages) + k - 1) / k

	for i := range k {
		start := min(i*size, len(messages))
		end := min(start+size, len(messages))

		// Full slice expression caps capacity so a shard can never append into its neighbour.
		shards[i] = messages[start:end:end]
	}

	return shards
}
