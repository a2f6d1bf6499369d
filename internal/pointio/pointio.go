// Package pointio reads points and accelerometer samples from CSV and JSON
// files and writes clustering results as JSON.
package pointio

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/activity.cluster/internal/config"
	"github.com/banshee-data/activity.cluster/internal/features"
	"github.com/banshee-data/activity.cluster/internal/fsutil"
	"github.com/banshee-data/activity.cluster/internal/geometry"
)

// ErrNoPoints is returned when an input contains no data rows.
var ErrNoPoints = errors.New("pointio: no points in input")

// ReadCSV reads one point per row. Every column must be numeric; a first row
// that does not parse is treated as a header and skipped. All rows must have
// the same number of columns.
func ReadCSV(r io.Reader) ([]geometry.Vector, error) {
	rows, err := readNumericCSV(r)
	if err != nil {
		return nil, err
	}
	points := make([]geometry.Vector, len(rows))
	for i, row := range rows {
		points[i] = geometry.Vector(row)
	}
	return points, nil
}

// ReadJSON reads an array of coordinate arrays, e.g. [[1,2],[3,4]].
func ReadJSON(r io.Reader) ([]geometry.Vector, error) {
	var raw [][]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("pointio: decode JSON points: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNoPoints
	}
	points := make([]geometry.Vector, len(raw))
	for i, coords := range raw {
		if len(coords) != len(raw[0]) {
			return nil, fmt.Errorf("pointio: point %d has %d coordinates, want %d", i, len(coords), len(raw[0]))
		}
		points[i] = geometry.Vector(coords)
	}
	return points, nil
}

// ReadSamplesCSV reads three-column x,y,z accelerometer samples.
func ReadSamplesCSV(r io.Reader) ([]features.Sample, error) {
	rows, err := readNumericCSV(r)
	if err != nil {
		return nil, err
	}
	if len(rows[0]) != 3 {
		return nil, fmt.Errorf("pointio: samples need 3 columns (x,y,z), got %d", len(rows[0]))
	}
	samples := make([]features.Sample, len(rows))
	for i, row := range rows {
		samples[i] = features.Sample{X: row[0], Y: row[1], Z: row[2]}
	}
	return samples, nil
}

// Input is what Load produced: Points for csv and json inputs, Samples for
// the samples format.
type Input struct {
	Format  string
	Points  []geometry.Vector
	Samples []features.Sample
}

// Load opens path on fsys and parses it. An empty format is resolved from the
// file extension (.csv or .json).
func Load(fsys fsutil.FileSystem, path, format string) (*Input, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = config.FormatCSV
		case ".json":
			format = config.FormatJSON
		default:
			return nil, fmt.Errorf("pointio: cannot infer format of %q, set it explicitly", path)
		}
	}

	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pointio: open input: %w", err)
	}
	defer f.Close()

	in := &Input{Format: format}
	switch format {
	case config.FormatCSV:
		in.Points, err = ReadCSV(f)
	case config.FormatJSON:
		in.Points, err = ReadJSON(f)
	case config.FormatSamples:
		in.Samples, err = ReadSamplesCSV(f)
	default:
		return nil, fmt.Errorf("pointio: unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

func readNumericCSV(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	cr.Comment = '#'

	var rows [][]float64
	width := 0
	for first := true; ; first = false {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("pointio: read CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)

		row, perr := parseRow(record)
		if perr != nil {
			if first {
				continue // header
			}
			return nil, fmt.Errorf("pointio: line %d: %w", line, perr)
		}
		if width == 0 {
			width = len(row)
		} else if len(row) != width {
			return nil, fmt.Errorf("pointio: line %d: got %d columns, want %d", line, len(row), width)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoPoints
	}
	return rows, nil
}

func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))
	for i, field := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("column %d: non-finite value %q", i+1, field)
		}
		row[i] = v
	}
	return row, nil
}
