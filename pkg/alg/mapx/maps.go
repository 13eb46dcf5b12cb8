// Package mapx provides generic map operations: additive merge, sums and ranking.
package mapx

import (
	"cmp"
	"slices"
)

// Numeric is the constraint for types that support the += operator.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Entry is a key/value pair taken out of a map.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// MergeAdditive additively merges src into dst: dst[k] += src[k] for every key in src.
// If dst is nil, this is a no-op.
func MergeAdditive[K comparable, V Numeric](dst, src map[K]V) {
	if dst == nil {
		return
	}

	for k, v := range src {
		dst[k] += v
	}
}

// Sum returns the sum of all values in m.
func Sum[K comparable, V Numeric](m map[K]V) V {
	var total V

	for _, v := range m {
		total += v
	}

	return total
}

// SortedKeys returns the keys of m in sorted order.
// Returns nil for a nil map.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	if m == nil {
		return nil
	}

	keys := make([]K, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

// Ranked returns all entries of m ordered by value descending, ties broken by key ascending.
// The order is total, so equal maps always rank identically.
func Ranked[K cmp.Ordered, V cmp.Ordered](m map[K]V) []Entry[K, V] {
	entries := make([]Entry[K, V], 0, len(m))

	for k, v := range m {
		entries = append(entries, Entry[K, V]{Key: k, Value: v})
	}

	slices.SortFunc(entries, func(a, b Entry[K, V]) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}

		return cmp.Compare(a.Key, b.Key)
	})

	return entries
}

// TopN returns at most n entries of m with the highest values, ranked as in [Ranked].
func TopN[K cmp.Ordered, V cmp.Ordered](m map[K]V, n int) []Entry[K, V] {
	ranked := Ranked(m)

	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}
