// Package features turns windows of tri-axial accelerometer samples into
// fixed-length feature vectors suitable for clustering.
package features

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/activity.cluster/internal/geometry"
)

// Sample is one accelerometer reading in m/s^2.
type Sample struct {
	X, Y, Z float64
}

// fftLength is the number of leading samples per axis fed to the DFT; the
// first fftLength/2+1 real coefficients are kept.
const fftLength = 5

// ErrEmptyWindow is returned by Extract for a window with no samples.
var ErrEmptyWindow = errors.New("features: empty window")

// Names lists the feature vector columns in the order Extract emits them.
func Names() []string {
	names := make([]string, 0, Dim)
	for _, group := range []string{"mean", "median", "std"} {
		for _, axis := range []string{"x", "y", "z"} {
			names = append(names, group+"_"+axis)
		}
	}
	names = append(names, "mean_magnitude", "median_magnitude", "std_magnitude")
	for _, group := range []string{"zero_crossings", "min", "max"} {
		for _, axis := range []string{"x", "y", "z"} {
			names = append(names, group+"_"+axis)
		}
	}
	for _, axis := range []string{"x", "y", "z"} {
		for k := range fftLength/2 + 1 {
			names = append(names, fmt.Sprintf("fft%d_%s", k, axis))
		}
	}
	return names
}

// Dim is the length of every extracted feature vector.
const Dim = 3*3 + 3 + 3*3 + 3*(fftLength/2+1)

// Windows splits samples into windows of size samples starting every step
// samples. A trailing partial window is dropped.
func Windows(samples []Sample, size, step int) ([][]Sample, error) {
	if size < 1 {
		return nil, fmt.Errorf("features: window size must be >= 1, got %d", size)
	}
	if step < 1 {
		return nil, fmt.Errorf("features: window step must be >= 1, got %d", step)
	}

	var windows [][]Sample
	for start := 0; start+size <= len(samples); start += step {
		windows = append(windows, samples[start:start+size])
	}
	return windows, nil
}

// Extract computes the feature vector of one window.
func Extract(window []Sample) (geometry.Vector, error) {
	if len(window) == 0 {
		return nil, ErrEmptyWindow
	}

	axes := splitAxes(window)
	fv := make(geometry.Vector, 0, Dim)

	var mean, median, std [3]float64
	for a, col := range axes {
		mean[a] = stat.Mean(col, nil)
		std[a] = math.Sqrt(stat.MomentAbout(2, col, mean[a], nil))
		median[a] = medianOf(col)
	}
	fv = append(fv, mean[:]...)
	fv = append(fv, median[:]...)
	fv = append(fv, std[:]...)
	fv = append(fv,
		floats.Norm(mean[:], 2),
		floats.Norm(median[:], 2),
		floats.Norm(std[:], 2),
	)

	for _, col := range axes {
		fv = append(fv, float64(zeroCrossings(col)))
	}
	for _, col := range axes {
		fv = append(fv, floats.Min(col))
	}
	for _, col := range axes {
		fv = append(fv, floats.Max(col))
	}

	fft := fourier.NewFFT(fftLength)
	seq := make([]float64, fftLength)
	var coeffs []complex128
	for _, col := range axes {
		clear(seq)
		copy(seq, col)
		coeffs = fft.Coefficients(coeffs, seq)
		for _, c := range coeffs {
			fv = append(fv, real(c))
		}
	}

	return fv, nil
}

// ExtractAll featurises every window in order.
func ExtractAll(windows [][]Sample) ([]geometry.Vector, error) {
	out := make([]geometry.Vector, len(windows))
	for i, w := range windows {
		fv, err := Extract(w)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		out[i] = fv
	}
	return out, nil
}

func splitAxes(window []Sample) [3][]float64 {
	var axes [3][]float64
	for a := range axes {
		axes[a] = make([]float64, len(window))
	}
	for i, s := range window {
		axes[0][i] = s.X
		axes[1][i] = s.Y
		axes[2][i] = s.Z
	}
	return axes
}

// medianOf averages the two middle values for even lengths.
func medianOf(col []float64) float64 {
	sorted := slices.Clone(col)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// zeroCrossings counts sign changes between consecutive samples. Exact zeros
// do not count as a crossing on either side.
func zeroCrossings(col []float64) int {
	n := 0
	for i := 1; i < len(col); i++ {
		if col[i-1]*col[i] < 0 {
			n++
		}
	}
	return n
}
