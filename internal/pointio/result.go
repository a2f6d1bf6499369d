package pointio

import (
	"encoding/json"
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/activity.cluster/internal/dbscan"
	"github.com/banshee-data/activity.cluster/internal/geometry"
)

// ClusterResult is the JSON form of one cluster.
type ClusterResult struct {
	ID       int       `json:"id"`
	Size     int       `json:"size"`
	Indices  []int     `json:"indices"`
	Centroid []float64 `json:"centroid"`
}

// Summary aggregates cluster sizes.
type Summary struct {
	Points        int     `json:"points"`
	Clusters      int     `json:"clusters"`
	Noise         int     `json:"noise"`
	MeanSize      float64 `json:"mean_size"`
	StdDevSize    float64 `json:"stddev_size"`
	LargestSize   int     `json:"largest_size"`
	NoiseFraction float64 `json:"noise_fraction"`
}

// Result is the document written by WriteResult.
type Result struct {
	Summary  Summary         `json:"summary"`
	Clusters []ClusterResult `json:"clusters"`
	Noise    []int           `json:"noise"`
}

// NewResult builds the result document for a partition.
func NewResult(p *dbscan.Partition[geometry.Vector]) (*Result, error) {
	centroids, err := geometry.Centroids(p.Clusters)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Clusters: make([]ClusterResult, len(p.Clusters)),
		Noise:    p.Noise,
	}
	if res.Noise == nil {
		res.Noise = []int{}
	}
	for i, c := range p.Clusters {
		res.Clusters[i] = ClusterResult{
			ID:       c.ID,
			Size:     c.Len(),
			Indices:  c.Indices,
			Centroid: centroids[i],
		}
	}
	res.Summary = summarize(p)
	return res, nil
}

func summarize(p *dbscan.Partition[geometry.Vector]) Summary {
	s := Summary{
		Points:   len(p.Labels),
		Clusters: len(p.Clusters),
		Noise:    len(p.Noise),
	}
	if s.Points > 0 {
		s.NoiseFraction = float64(s.Noise) / float64(s.Points)
	}

	sizes := make([]float64, len(p.Clusters))
	for i, n := range p.ClusterSizes() {
		sizes[i] = float64(n)
		s.LargestSize = max(s.LargestSize, n)
	}
	switch len(sizes) {
	case 0:
	case 1:
		s.MeanSize = sizes[0]
	default:
		s.MeanSize, s.StdDevSize = stat.PopMeanStdDev(sizes, nil)
	}
	return s
}

// WriteResult writes the partition as indented JSON.
func WriteResult(w io.Writer, p *dbscan.Partition[geometry.Vector]) error {
	res, err := NewResult(p)
	if err != nil {
		return fmt.Errorf("pointio: build result: %w", err)
	}
	return EncodeResult(w, res)
}

// EncodeResult writes an already built result as indented JSON.
func EncodeResult(w io.Writer, res *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("pointio: encode result: %w", err)
	}
	return nil
}
