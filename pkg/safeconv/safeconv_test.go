package safeconv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampToInt64(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, int64(42), ClampToInt64(42))
	})

	t.Run("max_int64", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, int64(math.MaxInt64), ClampToInt64(math.MaxInt64))
	})

	t.Run("saturates", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, int64(math.MaxInt64), ClampToInt64(math.MaxUint64))
	})
}

func TestMustIntToUint64(t *testing.T) {
	t.Parallel()

	t.Run("normal_value", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint64(42), MustIntToUint64(42))
	})

	t.Run("zero", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, uint64(0), MustIntToUint64(0))
	})

	t.Run("negative_panics", func(t *testing.T) {
		t.Parallel()

		assert.PanicsWithValue(t, "safeconv: negative int to uint64 conversion", func() {
			MustIntToUint64(-1)
		})
	})
}
