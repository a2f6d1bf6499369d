// Command dbscan clusters points (or featurised accelerometer windows) read
// from a CSV or JSON file and writes the partition as JSON, optionally
// recording the run in SQLite and rendering scatter charts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/activity.cluster/internal/config"
	"github.com/banshee-data/activity.cluster/internal/dbscan"
	"github.com/banshee-data/activity.cluster/internal/features"
	"github.com/banshee-data/activity.cluster/internal/fsutil"
	"github.com/banshee-data/activity.cluster/internal/geometry"
	"github.com/banshee-data/activity.cluster/internal/monitoring"
	"github.com/banshee-data/activity.cluster/internal/pointio"
	"github.com/banshee-data/activity.cluster/internal/report"
	"github.com/banshee-data/activity.cluster/internal/store"
	"github.com/banshee-data/activity.cluster/internal/timeutil"
	"github.com/banshee-data/activity.cluster/internal/version"
)

// errVersion is returned by parseArgs when -version was given.
var errVersion = errors.New("version requested")

// options is the fully resolved command line.
type options struct {
	cfg *config.ClusterConfig

	input   string
	output  string
	dbPath  string
	png     string
	html    string
	verbose bool
}

func main() {
	opts, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, errVersion) {
		fmt.Println(version.String("dbscan"))
		return
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	monitoring.SetVerbose(opts.verbose)

	r := &runner{fs: fsutil.OSFileSystem{}, clock: timeutil.RealClock{}, stdout: os.Stdout}
	if err := r.run(context.Background(), opts); err != nil {
		log.Fatalf("dbscan: %v", err)
	}
}

// parseArgs parses args, loads -config when given, and lets flags that were
// set explicitly override the file.
func parseArgs(args []string, errOut io.Writer) (*options, error) {
	fs := flag.NewFlagSet("dbscan", flag.ContinueOnError)
	fs.SetOutput(errOut)

	configPath := fs.String("config", "", "path to a JSON clustering config")
	input := fs.String("input", "", "input file (.csv or .json, or CSV samples with -format samples)")
	format := fs.String("format", config.DefaultInputFormat, "input format: csv, json or samples (default: from extension)")
	eps := fs.Float64("eps", config.DefaultEps, "neighbourhood radius")
	minPts := fs.Int("min-pts", config.DefaultMinPts, "minimum neighbourhood size, including the point, for a core point")
	workers := fs.Int("workers", config.DefaultWorkers, "goroutines per region query")
	metric := fs.String("metric", config.DefaultMetric, "distance metric: euclidean, manhattan or chebyshev")
	window := fs.Int("window", config.DefaultWindowSize, "samples per window with -format samples")
	step := fs.Int("step", config.DefaultWindowStep, "samples between window starts with -format samples")
	output := fs.String("output", "", "write the JSON result here instead of stdout")
	dbPath := fs.String("db", "", "record the run in this SQLite database")
	png := fs.String("png", "", "write a scatter chart PNG here")
	html := fs.String("html", "", "write an interactive scatter chart HTML page here")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		return nil, errVersion
	}
	if *input == "" {
		return nil, errors.New("-input is required")
	}

	cfg := config.EmptyClusterConfig()
	if *configPath != "" {
		loaded, err := config.LoadClusterConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "format":
			cfg.InputFormat = format
		case "eps":
			cfg.Eps = eps
		case "min-pts":
			cfg.MinPts = minPts
		case "workers":
			cfg.Workers = workers
		case "metric":
			cfg.Metric = metric
		case "window":
			cfg.WindowSize = window
		case "step":
			cfg.WindowStep = step
		}
	})
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	return &options{
		cfg:     cfg,
		input:   *input,
		output:  *output,
		dbPath:  *dbPath,
		png:     *png,
		html:    *html,
		verbose: *verbose,
	}, nil
}

type runner struct {
	fs     fsutil.FileSystem
	clock  timeutil.Clock
	stdout io.Writer
}

func (r *runner) run(ctx context.Context, opts *options) error {
	start := r.clock.Now()
	cfg := opts.cfg

	points, err := r.loadPoints(opts.input, cfg)
	if err != nil {
		return err
	}

	metric, err := geometry.Minkowski(cfg.GetMetricOrder())
	if err != nil {
		return err
	}
	clusterer, err := dbscan.NewWithMetric[geometry.Vector](cfg.GetEps(), cfg.GetMinPts(), metric,
		dbscan.WithWorkers(cfg.GetWorkers()))
	if err != nil {
		return err
	}

	p, err := clusterer.Partition(points)
	if err != nil {
		return err
	}
	log.Printf("clustered %d points into %d clusters (%d noise) in %v",
		len(points), len(p.Clusters), len(p.Noise), r.clock.Since(start))

	res, err := pointio.NewResult(p)
	if err != nil {
		return err
	}
	if err := r.writeResult(opts.output, res); err != nil {
		return err
	}

	if opts.dbPath != "" {
		if err := recordRun(ctx, opts, p, res); err != nil {
			return err
		}
	}

	if opts.png != "" || opts.html != "" {
		series, err := report.SeriesFromPartition(points, p)
		if err != nil {
			return err
		}
		title := filepath.Base(opts.input)
		if opts.png != "" {
			if err := report.WritePNG(opts.png, title, series); err != nil {
				return err
			}
		}
		if opts.html != "" {
			if err := r.writeHTML(opts.html, title, series); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *runner) loadPoints(path string, cfg *config.ClusterConfig) ([]geometry.Vector, error) {
	in, err := pointio.Load(r.fs, path, cfg.GetInputFormat())
	if err != nil {
		return nil, err
	}
	if in.Format != config.FormatSamples {
		return in.Points, nil
	}

	windows, err := features.Windows(in.Samples, cfg.GetWindowSize(), cfg.GetWindowStep())
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%s: %d samples is fewer than one window of %d", path, len(in.Samples), cfg.GetWindowSize())
	}
	monitoring.Debugf("featurising %d windows of %d samples", len(windows), cfg.GetWindowSize())
	return features.ExtractAll(windows)
}

func (r *runner) writeResult(path string, res *pointio.Result) error {
	if path == "" {
		return pointio.EncodeResult(r.stdout, res)
	}
	f, err := r.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := pointio.EncodeResult(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (r *runner) writeHTML(path, title string, series []report.Series) error {
	f, err := r.fs.Create(path)
	if err != nil {
		return fmt.Errorf("create html: %w", err)
	}
	if err := report.RenderHTML(f, title, series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func recordRun(ctx context.Context, opts *options, p *dbscan.Partition[geometry.Vector], res *pointio.Result) error {
	st, err := store.Open(opts.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	clusters := make([]store.ClusterSummary, len(res.Clusters))
	for i, c := range res.Clusters {
		clusters[i] = store.ClusterSummary{ClusterID: c.ID, Size: c.Size, Centroid: c.Centroid}
	}
	run, err := st.RecordRun(ctx, store.Run{
		Eps:          opts.cfg.GetEps(),
		MinPts:       opts.cfg.GetMinPts(),
		PointCount:   len(p.Labels),
		ClusterCount: len(p.Clusters),
		NoiseCount:   len(p.Noise),
		Source:       opts.input,
	}, clusters)
	if err != nil {
		return err
	}
	log.Printf("recorded run %s in %s", run.ID, opts.dbPath)
	return nil
}
