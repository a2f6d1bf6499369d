// Package report renders a clustering result as a scatter chart, either a
// static PNG or an interactive HTML page.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/activity.cluster/internal/dbscan"
	"github.com/banshee-data/activity.cluster/internal/geometry"
)

// NoiseSeries is the name of the series holding noise points.
const NoiseSeries = "noise"

// ErrNoSeries is returned when there is nothing to draw.
var ErrNoSeries = errors.New("report: no series")

// Series is one named group of 2-D points.
type Series struct {
	Name   string
	Points [][2]float64
}

// SeriesFromPartition projects points onto their first two coordinates and
// groups them by label: one series per cluster in discovery order, then a
// noise series if there is any noise. One-dimensional points are drawn at
// y = 0.
func SeriesFromPartition(points []geometry.Vector, p *dbscan.Partition[geometry.Vector]) ([]Series, error) {
	if len(points) != len(p.Labels) {
		return nil, fmt.Errorf("report: %d points but %d labels", len(points), len(p.Labels))
	}

	series := make([]Series, 0, len(p.Clusters)+1)
	for _, c := range p.Clusters {
		s := Series{Name: fmt.Sprintf("cluster %d", c.ID), Points: make([][2]float64, 0, c.Len())}
		for _, idx := range c.Indices {
			s.Points = append(s.Points, project(points[idx]))
		}
		series = append(series, s)
	}
	if len(p.Noise) > 0 {
		s := Series{Name: NoiseSeries, Points: make([][2]float64, 0, len(p.Noise))}
		for _, idx := range p.Noise {
			s.Points = append(s.Points, project(points[idx]))
		}
		series = append(series, s)
	}
	return series, nil
}

func project(v geometry.Vector) [2]float64 {
	var xy [2]float64
	copy(xy[:], v)
	return xy
}

// RenderHTML writes a self-contained go-echarts scatter page.
func RenderHTML(w io.Writer, title string, series []Series) error {
	if len(series) == 0 {
		return ErrNoSeries
	}

	total := 0
	for _, s := range series {
		total += len(s.Points)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("clusters=%d points=%d", clusterCount(series), total)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x0", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "x1", NameLocation: "middle", NameGap: 30}),
	)

	for _, s := range series {
		data := make([]opts.ScatterData, 0, len(s.Points))
		for _, pt := range s.Points {
			data = append(data, opts.ScatterData{Value: []interface{}{pt[0], pt[1]}})
		}
		size := 10
		if s.Name == NoiseSeries {
			size = 5
		}
		scatter.AddSeries(s.Name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: size}))
	}

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("report: render html: %w", err)
	}
	return nil
}

// WritePNG saves a gonum/plot scatter chart to path. The image format follows
// the file extension.
func WritePNG(path, title string, series []Series) error {
	if len(series) == 0 {
		return ErrNoSeries
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x0"
	p.Y.Label.Text = "x1"
	p.Legend.Top = true
	p.Legend.Left = false

	for i, s := range series {
		xys := make(plotter.XYs, len(s.Points))
		for j, pt := range s.Points {
			xys[j] = plotter.XY{X: pt[0], Y: pt[1]}
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("report: series %q: %w", s.Name, err)
		}
		sc.GlyphStyle.Radius = vg.Points(3)
		if s.Name == NoiseSeries {
			sc.GlyphStyle.Color = color.Gray{Y: 150}
			sc.GlyphStyle.Shape = draw.CrossGlyph{}
		} else {
			sc.GlyphStyle.Color = plotutil.Color(i)
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
		}
		p.Add(sc)
		p.Legend.Add(s.Name, sc)
	}

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("report: save %s: %w", path, err)
	}
	return nil
}

func clusterCount(series []Series) int {
	n := 0
	for _, s := range series {
		if s.Name != NoiseSeries {
			n++
		}
	}
	return n
}
