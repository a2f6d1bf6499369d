package dbscan

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Distancer is the capability a point type needs to be clustered directly.
// Distance must be non-negative and is expected to be symmetric.
type Distancer[T any] interface {
	Distance(other T) (float64, error)
}

// Metric computes the distance between two points of an arbitrary type.
type Metric[T any] interface {
	Distance(a, b T) (float64, error)
}

// MetricFunc adapts a plain function into a Metric.
type MetricFunc[T any] func(a, b T) (float64, error)

func (f MetricFunc[T]) Distance(a, b T) (float64, error) { return f(a, b) }

// selfMetric delegates to the point's own Distance method.
type selfMetric[T Distancer[T]] struct{}

func (selfMetric[T]) Distance(a, b T) (float64, error) { return a.Distance(b) }

// RegionQuerier finds the eps-neighbourhood of points[idx], including idx
// itself. Implementations must be deterministic for a given input; a spatial
// index can be substituted here without changing the clustering result as
// long as it returns the same index set in ascending order.
type RegionQuerier[T any] interface {
	Neighbors(points []T, idx int, eps float64, metric Metric[T]) ([]int, error)
}

// minChunkSize keeps tiny scans on a single goroutine.
const minChunkSize = 32

// ScanQuerier is the default full-scan region query: O(n) per call. With
// Workers > 1 the scan is split into contiguous index chunks evaluated
// concurrently and concatenated in chunk order, so the neighbour list is
// identical to the sequential scan.
type ScanQuerier[T any] struct {
	Workers int
}

// Neighbors implements RegionQuerier.
func (s ScanQuerier[T]) Neighbors(points []T, idx int, eps float64, metric Metric[T]) ([]int, error) {
	n := len(points)
	chunks := 1
	if s.Workers > 1 {
		chunks = min(s.Workers, n/minChunkSize)
	}
	if chunks <= 1 {
		return scanRange(points, idx, 0, n, eps, metric, nil)
	}

	size := (n + chunks - 1) / chunks
	parts := make([][]int, chunks)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(s.Workers)
	for c := range chunks {
		lo := c * size
		hi := min(lo+size, n)
		g.Go(func() error {
			found, err := scanRange(points, idx, lo, hi, eps, metric, ctx.Done())
			if err != nil {
				return err
			}
			parts[c] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	neighbors := make([]int, 0, total)
	for _, p := range parts {
		neighbors = append(neighbors, p...)
	}
	return neighbors, nil
}

// scanRange tests points[lo:hi] against points[idx]. A closed done channel
// stops the scan early; the returned error is then irrelevant because the
// errgroup already holds the first failure.
func scanRange[T any](points []T, idx, lo, hi int, eps float64, metric Metric[T], done <-chan struct{}) ([]int, error) {
	var neighbors []int
	p := points[idx]
	for j := lo; j < hi; j++ {
		if done != nil && j%minChunkSize == 0 {
			select {
			case <-done:
				return nil, context.Canceled
			default:
			}
		}
		d, err := metric.Distance(p, points[j])
		if err != nil {
			return nil, &DistanceError{I: idx, J: j, Err: err}
		}
		if math.IsNaN(d) || d < 0 {
			return nil, &DistanceError{I: idx, J: j, Err: fmt.Errorf("invalid distance %v", d)}
		}
		if d <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors, nil
}
