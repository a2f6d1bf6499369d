package dbscan

import (
	"fmt"
	"math"
	"reflect"

	"github.com/banshee-data/activity.cluster/internal/monitoring"
)

// Params contains the DBSCAN parameters.
type Params struct {
	Eps    float64 // Neighbourhood radius; distance <= Eps is a neighbour
	MinPts int     // Minimum neighbourhood size, including the point itself, for a core point
}

// Validate reports the first invalid parameter.
func (p Params) Validate() error {
	if math.IsNaN(p.Eps) || math.IsInf(p.Eps, 0) {
		return &ConfigurationError{Field: "eps", Value: p.Eps, Reason: "must be finite"}
	}
	if p.Eps <= 0 {
		return &ConfigurationError{Field: "eps", Value: p.Eps, Reason: "must be > 0"}
	}
	if p.MinPts < 1 {
		return &ConfigurationError{Field: "minPts", Value: p.MinPts, Reason: "must be >= 1"}
	}
	return nil
}

// Option configures a Clusterer at construction.
type Option func(*options)

type options struct {
	workers int
	querier any
	logf    func(format string, v ...interface{})
}

// WithWorkers fans each region query out over n goroutines. n <= 1 keeps the
// sequential scan. Ignored when WithRegionQuerier is also given.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRegionQuerier substitutes the neighbour finder, for example with a
// spatial index. Its point type must match the Clusterer's.
func WithRegionQuerier[T any](q RegionQuerier[T]) Option {
	return func(o *options) { o.querier = q }
}

// WithLogger sets the per-call summary logger. The default forwards to
// monitoring.Debugf.
func WithLogger(logf func(format string, v ...interface{})) Option {
	return func(o *options) { o.logf = logf }
}

// Clusterer partitions point collections into density-connected clusters.
// It is immutable after construction and safe for concurrent use.
type Clusterer[T any] struct {
	params  Params
	metric  Metric[T]
	querier RegionQuerier[T]
	logf    func(format string, v ...interface{})
}

// New creates a Clusterer for a point type that measures its own distance.
func New[T Distancer[T]](eps float64, minPts int, opts ...Option) (*Clusterer[T], error) {
	return NewWithMetric[T](eps, minPts, selfMetric[T]{}, opts...)
}

// NewWithMetric creates a Clusterer that measures distance with metric.
func NewWithMetric[T any](eps float64, minPts int, metric Metric[T], opts ...Option) (*Clusterer[T], error) {
	params := Params{Eps: eps, MinPts: minPts}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if metric == nil {
		return nil, &ConfigurationError{Field: "metric", Value: nil, Reason: "must not be nil"}
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Clusterer[T]{
		params:  params,
		metric:  metric,
		querier: ScanQuerier[T]{Workers: o.workers},
		logf:    o.logf,
	}
	if o.querier != nil {
		q, ok := o.querier.(RegionQuerier[T])
		if !ok {
			return nil, &ConfigurationError{
				Field:  "region querier",
				Value:  fmt.Sprintf("%T", o.querier),
				Reason: fmt.Sprintf("does not query %T points", *new(T)),
			}
		}
		c.querier = q
	}
	if c.logf == nil {
		c.logf = monitoring.Debugf
	}
	return c, nil
}

// Params returns the validated clustering parameters.
func (c *Clusterer[T]) Params() Params {
	return c.params
}

// Cluster groups points into clusters in discovery order. Noise points are
// left out of the result. An empty input yields a nil slice.
func (c *Clusterer[T]) Cluster(points []T) ([]Cluster[T], error) {
	p, err := c.Partition(points)
	if err != nil {
		return nil, err
	}
	return p.Clusters, nil
}

// Partition runs DBSCAN and returns the clusters together with the per-point
// labels and the noise indices.
func (c *Clusterer[T]) Partition(points []T) (*Partition[T], error) {
	for i, p := range points {
		if isNil(p) {
			return nil, &InvalidInputError{Index: i}
		}
	}

	n := len(points)
	result := &Partition[T]{Labels: make([]int, n)}
	if n == 0 {
		return result, nil
	}

	// Per-call state, indexed by input position
	states := make([]PointState, n)
	queued := make([]bool, n)

	for i := range n {
		if states[i] != Unvisited {
			continue
		}

		neighbors, err := c.regionQuery(points, i)
		if err != nil {
			return nil, err
		}

		if len(neighbors) < c.params.MinPts {
			states[i] = Noise
			continue
		}

		cluster, err := c.expandCluster(points, states, queued, i, neighbors, len(result.Clusters))
		if err != nil {
			return nil, err
		}
		result.Clusters = append(result.Clusters, cluster)
	}

	for i := range result.Labels {
		result.Labels[i] = NoiseLabel
	}
	for _, cl := range result.Clusters {
		for _, idx := range cl.Indices {
			result.Labels[idx] = cl.ID
		}
	}
	for i, state := range states {
		if state == Noise {
			result.Noise = append(result.Noise, i)
		}
	}

	c.logf("dbscan: eps=%g minPts=%d points=%d clusters=%d noise=%d",
		c.params.Eps, c.params.MinPts, n, len(result.Clusters), len(result.Noise))
	return result, nil
}

// expandCluster grows a cluster from the core point seed breadth-first.
// queued is the frontier membership set; it is cleared again on return.
func (c *Clusterer[T]) expandCluster(points []T, states []PointState, queued []bool,
	seed int, neighbors []int, clusterID int) (Cluster[T], error) {

	cluster := Cluster[T]{ID: clusterID}
	cluster.add(points, seed)
	states[seed] = Clustered

	queue := make([]int, 0, len(neighbors))
	defer func() {
		for _, idx := range queue {
			queued[idx] = false
		}
	}()
	for _, idx := range neighbors {
		if idx == seed || queued[idx] {
			continue
		}
		queued[idx] = true
		queue = append(queue, idx)
	}

	for head := 0; head < len(queue); head++ {
		idx := queue[head]

		switch states[idx] {
		case Clustered:
			continue // Owned by this or an earlier cluster
		case Noise:
			// Border point: joins, but does not expand
			states[idx] = Clustered
			cluster.add(points, idx)
			continue
		}

		states[idx] = Clustered
		cluster.add(points, idx)

		newNeighbors, err := c.regionQuery(points, idx)
		if err != nil {
			return Cluster[T]{}, err
		}
		if len(newNeighbors) < c.params.MinPts {
			continue
		}

		// Core point - add its unseen neighbours to the queue
		for _, next := range newNeighbors {
			if queued[next] || states[next] == Clustered {
				continue
			}
			queued[next] = true
			queue = append(queue, next)
		}
	}

	return cluster, nil
}

func (c *Clusterer[T]) regionQuery(points []T, idx int) ([]int, error) {
	neighbors, err := c.querier.Neighbors(points, idx, c.params.Eps, c.metric)
	if err != nil {
		return nil, err
	}
	for _, j := range neighbors {
		if j < 0 || j >= len(points) {
			return nil, fmt.Errorf("dbscan: region query for point %d returned index %d outside [0, %d)", idx, j, len(points))
		}
	}
	return neighbors, nil
}

// isNil reports whether v is nil or a nil value of a nilable kind.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
