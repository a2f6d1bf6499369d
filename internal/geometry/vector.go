// Package geometry provides the feature-vector point type clustered by the
// command-line tool, with Minkowski metrics and centroids.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/activity.cluster/internal/dbscan"
)

// ErrDimensionMismatch is returned when two vectors of different length meet.
var ErrDimensionMismatch = errors.New("geometry: dimension mismatch")

// Vector is a point in R^n. Its Distance is Euclidean.
type Vector []float64

// Dim returns the number of coordinates.
func (v Vector) Dim() int { return len(v) }

// Distance implements dbscan.Distancer.
func (v Vector) Distance(other Vector) (float64, error) {
	if len(v) != len(other) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(v), len(other))
	}
	return floats.Distance(v, other, 2), nil
}

// Minkowski returns the L-p distance as a clustering metric. p must be >= 1;
// math.Inf(1) gives the Chebyshev distance.
func Minkowski(p float64) (dbscan.MetricFunc[Vector], error) {
	if math.IsNaN(p) || p < 1 {
		return nil, fmt.Errorf("geometry: minkowski order must be >= 1, got %v", p)
	}
	return func(a, b Vector) (float64, error) {
		if len(a) != len(b) {
			return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
		}
		return floats.Distance(a, b, p), nil
	}, nil
}

// Centroid returns the component-wise mean of points.
func Centroid(points []Vector) (Vector, error) {
	if len(points) == 0 {
		return nil, errors.New("geometry: centroid of no points")
	}
	sum := make(Vector, len(points[0]))
	for i, p := range points {
		if len(p) != len(sum) {
			return nil, fmt.Errorf("%w: point %d has %d coordinates, want %d", ErrDimensionMismatch, i, len(p), len(sum))
		}
		floats.Add(sum, p)
	}
	floats.Scale(1/float64(len(points)), sum)
	return sum, nil
}

// Centroids returns the centroid of every cluster in order.
func Centroids(clusters []dbscan.Cluster[Vector]) ([]Vector, error) {
	out := make([]Vector, len(clusters))
	for i, c := range clusters {
		centroid, err := Centroid(c.Members)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", c.ID, err)
		}
		out[i] = centroid
	}
	return out, nil
}
