package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical clustering defaults file.
const DefaultConfigPath = "config/cluster.defaults.json"

// Default values returned by the Get* accessors when a field is unset.
const (
	DefaultEps         = 0.5
	DefaultMinPts      = 4
	DefaultWorkers     = 1
	DefaultMetric      = MetricEuclidean
	DefaultWindowSize  = 50
	DefaultWindowStep  = 25
	DefaultInputFormat = "" // detect from the file extension
)

// Supported distance metrics.
const (
	MetricEuclidean = "euclidean"
	MetricManhattan = "manhattan"
	MetricChebyshev = "chebyshev"
)

// Supported input formats.
const (
	FormatCSV     = "csv"
	FormatJSON    = "json"
	FormatSamples = "samples"
)

// ClusterConfig holds the clustering run parameters. Fields are pointers so
// a partial file only overrides what it names; the Get* methods fall back to
// the package defaults.
type ClusterConfig struct {
	Eps         *float64 `json:"eps,omitempty"`
	MinPts      *int     `json:"min_pts,omitempty"`
	Workers     *int     `json:"workers,omitempty"`
	Metric      *string  `json:"metric,omitempty"`
	InputFormat *string  `json:"input_format,omitempty"`

	// Accelerometer windowing, used with input_format "samples"
	WindowSize *int `json:"window_size,omitempty"`
	WindowStep *int `json:"window_step,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyClusterConfig returns a ClusterConfig with all fields unset.
func EmptyClusterConfig() *ClusterConfig {
	return &ClusterConfig{}
}

// DefaultClusterConfig returns a ClusterConfig with every field set to its
// default.
func DefaultClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		Eps:         ptrFloat64(DefaultEps),
		MinPts:      ptrInt(DefaultMinPts),
		Workers:     ptrInt(DefaultWorkers),
		Metric:      ptrString(DefaultMetric),
		InputFormat: ptrString(DefaultInputFormat),
		WindowSize:  ptrInt(DefaultWindowSize),
		WindowStep:  ptrInt(DefaultWindowStep),
	}
}

// LoadClusterConfig loads a ClusterConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadClusterConfig(path string) (*ClusterConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyClusterConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *ClusterConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/ or cmd/dbscan/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadClusterConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are usable.
func (c *ClusterConfig) Validate() error {
	if c.Eps != nil {
		if math.IsNaN(*c.Eps) || math.IsInf(*c.Eps, 0) || *c.Eps <= 0 {
			return fmt.Errorf("eps must be a positive finite number, got %v", *c.Eps)
		}
	}

	if c.MinPts != nil && *c.MinPts < 1 {
		return fmt.Errorf("min_pts must be >= 1, got %d", *c.MinPts)
	}

	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	if c.Metric != nil {
		switch *c.Metric {
		case MetricEuclidean, MetricManhattan, MetricChebyshev:
		default:
			return fmt.Errorf("unknown metric %q", *c.Metric)
		}
	}

	if c.InputFormat != nil {
		switch *c.InputFormat {
		case "", FormatCSV, FormatJSON, FormatSamples:
		default:
			return fmt.Errorf("unknown input_format %q", *c.InputFormat)
		}
	}

	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be >= 1, got %d", *c.WindowSize)
	}
	if c.WindowStep != nil && *c.WindowStep < 1 {
		return fmt.Errorf("window_step must be >= 1, got %d", *c.WindowStep)
	}

	return nil
}

// GetEps returns the eps value or the default.
func (c *ClusterConfig) GetEps() float64 {
	if c.Eps == nil {
		return DefaultEps
	}
	return *c.Eps
}

// GetMinPts returns the min_pts value or the default.
func (c *ClusterConfig) GetMinPts() int {
	if c.MinPts == nil {
		return DefaultMinPts
	}
	return *c.MinPts
}

// GetWorkers returns the workers value or the default.
func (c *ClusterConfig) GetWorkers() int {
	if c.Workers == nil {
		return DefaultWorkers
	}
	return *c.Workers
}

// GetMetric returns the metric name or the default.
func (c *ClusterConfig) GetMetric() string {
	if c.Metric == nil {
		return DefaultMetric
	}
	return *c.Metric
}

// GetMetricOrder maps the metric name to its Minkowski order.
func (c *ClusterConfig) GetMetricOrder() float64 {
	switch c.GetMetric() {
	case MetricManhattan:
		return 1
	case MetricChebyshev:
		return math.Inf(1)
	default:
		return 2
	}
}

// GetInputFormat returns the input_format value or the default.
func (c *ClusterConfig) GetInputFormat() string {
	if c.InputFormat == nil {
		return DefaultInputFormat
	}
	return *c.InputFormat
}

// GetWindowSize returns the window_size value or the default.
func (c *ClusterConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return DefaultWindowSize
	}
	return *c.WindowSize
}

// GetWindowStep returns the window_step value or the default.
func (c *ClusterConfig) GetWindowStep() int {
	if c.WindowStep == nil {
		return DefaultWindowStep
	}
	return *c.WindowStep
}
