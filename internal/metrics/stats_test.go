package metrics_test

import (
	"testing"

	"github.com/gi8lino/sprintkpi/internal/metrics"
	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	t.Parallel()

	t.Run("empty slice yields zero", func(t *testing.T) {
		t.Parallel()

		assert.Zero(t, metrics.Mean(nil))
	})

	t.Run("averages the values", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 2.0, metrics.Mean([]float64{1, 2, 3}))
	})
}

func TestSampleStdDev(t *testing.T) {
	t.Parallel()

	t.Run("fewer than two values yield zero", func(t *testing.T) {
		t.Parallel()

		assert.Zero(t, metrics.SampleStdDev(nil))
		assert.Zero(t, metrics.SampleStdDev([]float64{5}))
	})

	t.Run("uses the n-1 divisor", func(t *testing.T) {
		t.Parallel()

		assert.InDelta(t, 1.2909944, metrics.SampleStdDev([]float64{1, 2, 3, 4}), 1e-6)
	})
}

func TestRound1(t *testing.T) {
	t.Parallel()

	t.Run("rounds to one decimal", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 2.8, metrics.Round1(2.75))
		assert.Equal(t, 2.4, metrics.Round1(2.449))
		assert.Equal(t, 66.7, metrics.Round1(200.0/3.0))
		assert.Zero(t, metrics.Round1(0))
	})
}
