package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// feature looks a value up by column name.
func feature(t *testing.T, fv []float64, name string) float64 {
	t.Helper()
	for i, n := range Names() {
		if n == name {
			return fv[i]
		}
	}
	t.Fatalf("unknown feature %q", name)
	return 0
}

func TestNames_MatchDim(t *testing.T) {
	names := Names()
	assert.Len(t, names, Dim)

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		assert.False(t, seen[n], "duplicate feature name %q", n)
		seen[n] = true
	}
}

func TestWindows(t *testing.T) {
	samples := make([]Sample, 10)
	for i := range samples {
		samples[i] = Sample{X: float64(i)}
	}

	tests := []struct {
		name       string
		size, step int
		wantStarts []float64
	}{
		{"tumbling", 5, 5, []float64{0, 5}},
		{"overlapping", 4, 2, []float64{0, 2, 4, 6}},
		{"partial tail dropped", 3, 4, []float64{0, 4}},
		{"window larger than input", 20, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := Windows(samples, tt.size, tt.step)
			require.NoError(t, err)
			require.Len(t, windows, len(tt.wantStarts))
			for i, w := range windows {
				assert.Len(t, w, tt.size)
				assert.Equal(t, tt.wantStarts[i], w[0].X)
			}
		})
	}

	_, err := Windows(samples, 0, 1)
	assert.Error(t, err)
	_, err = Windows(samples, 1, 0)
	assert.Error(t, err)
}

func TestExtract_KnownWindow(t *testing.T) {
	window := []Sample{
		{X: 1, Y: -1, Z: 9.8},
		{X: -1, Y: -1, Z: 9.8},
		{X: 1, Y: -1, Z: 9.8},
		{X: -1, Y: -1, Z: 9.8},
	}

	fv, err := Extract(window)
	require.NoError(t, err)
	require.Len(t, fv, Dim)

	assert.InDelta(t, 0, feature(t, fv, "mean_x"), 1e-12)
	assert.InDelta(t, -1, feature(t, fv, "mean_y"), 1e-12)
	assert.InDelta(t, 9.8, feature(t, fv, "mean_z"), 1e-12)

	// Even-length median averages the middle pair
	assert.InDelta(t, 0, feature(t, fv, "median_x"), 1e-12)

	// Population standard deviation
	assert.InDelta(t, 1, feature(t, fv, "std_x"), 1e-12)
	assert.InDelta(t, 0, feature(t, fv, "std_z"), 1e-12)

	assert.InDelta(t, math.Hypot(1, 9.8), feature(t, fv, "mean_magnitude"), 1e-12)
	assert.InDelta(t, 1, feature(t, fv, "std_magnitude"), 1e-12)

	assert.Equal(t, 3.0, feature(t, fv, "zero_crossings_x"))
	assert.Equal(t, 0.0, feature(t, fv, "zero_crossings_y"))

	assert.Equal(t, -1.0, feature(t, fv, "min_x"))
	assert.Equal(t, 1.0, feature(t, fv, "max_x"))
}

func TestExtract_FFTCoefficients(t *testing.T) {
	// A constant signal has all its energy in the DC coefficient.
	window := make([]Sample, 8)
	for i := range window {
		window[i] = Sample{X: 2, Y: 0, Z: 0}
	}

	fv, err := Extract(window)
	require.NoError(t, err)
	assert.InDelta(t, 10, feature(t, fv, "fft0_x"), 1e-9)
	assert.InDelta(t, 0, feature(t, fv, "fft1_x"), 1e-9)
	assert.InDelta(t, 0, feature(t, fv, "fft2_x"), 1e-9)
}

func TestExtract_ShortWindowIsZeroPadded(t *testing.T) {
	fv, err := Extract([]Sample{{X: 3}, {X: 3}})
	require.NoError(t, err)
	assert.InDelta(t, 6, feature(t, fv, "fft0_x"), 1e-9)
}

func TestExtract_SingleSample(t *testing.T) {
	fv, err := Extract([]Sample{{X: 1, Y: 2, Z: 2}})
	require.NoError(t, err)
	assert.InDelta(t, 3, feature(t, fv, "mean_magnitude"), 1e-12)
	assert.InDelta(t, 2, feature(t, fv, "median_z"), 1e-12)
	assert.Zero(t, feature(t, fv, "std_magnitude"))
}

func TestExtract_EmptyWindow(t *testing.T) {
	_, err := Extract(nil)
	assert.ErrorIs(t, err, ErrEmptyWindow)
}

func TestExtractAll(t *testing.T) {
	windows := [][]Sample{
		{{X: 1}, {X: 2}},
		{{X: 3}, {X: 4}},
	}
	vectors, err := ExtractAll(windows)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 1.5, feature(t, vectors[0], "mean_x"), 1e-12)
	assert.InDelta(t, 3.5, feature(t, vectors[1], "mean_x"), 1e-12)

	_, err = ExtractAll([][]Sample{{{X: 1}}, {}})
	assert.ErrorIs(t, err, ErrEmptyWindow)
}
