package dashboard

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"autovaluate/internal/valuation"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const chartPoints = 200

var (
	curveColor    = color.RGBA{R: 0, G: 104, B: 201, A: 255}
	curveFill     = color.RGBA{R: 0, G: 104, B: 201, A: 60}
	estimateColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	meanColor     = color.Black
)

// renderDensity writes a PNG of the comparable-price density with the
// estimate (red, dashed) and the market mean (black, dotted) marked.
func renderDensity(w io.Writer, r *valuation.Report) error {
	prices := r.Comparison.Prices
	if len(prices) == 0 {
		return fmt.Errorf("no comparable prices to plot")
	}

	xs, ys := kde(prices, r.Estimate, chartPoints)
	peak := floats.Max(ys)

	p := plot.New()
	p.Title.Text = "Market price distribution"
	p.X.Label.Text = fmt.Sprintf("Price (%s)", r.Region.Currency)
	p.Y.Label.Text = "Density"

	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("density line: %w", err)
	}
	curve.LineStyle.Color = curveColor
	curve.LineStyle.Width = vg.Points(2)
	curve.FillColor = curveFill

	estimate, err := verticalLine(r.Estimate, peak)
	if err != nil {
		return err
	}
	estimate.LineStyle.Color = estimateColor
	estimate.LineStyle.Width = vg.Points(2)
	estimate.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}

	mean, err := verticalLine(r.Comparison.Mean, peak)
	if err != nil {
		return err
	}
	mean.LineStyle.Color = meanColor
	mean.LineStyle.Width = vg.Points(1.5)
	mean.LineStyle.Dashes = []vg.Length{vg.Points(1.5), vg.Points(3)}

	p.Add(curve, estimate, mean)
	p.Legend.Add("Your car", estimate)
	p.Legend.Add("Market average", mean)
	p.Legend.Top = true
	p.Y.Min = 0

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("chart writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	return nil
}

func verticalLine(x, height float64) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: height}})
	if err != nil {
		return nil, fmt.Errorf("marker line: %w", err)
	}
	return l, nil
}

// kde evaluates a Gaussian kernel density of samples on n evenly spaced
// points. The grid spans the samples and include, padded by three
// bandwidths either side.
func kde(samples []float64, include float64, n int) (xs, ys []float64) {
	h := bandwidth(samples)
	lo := math.Min(floats.Min(samples), include) - 3*h
	hi := math.Max(floats.Max(samples), include) + 3*h

	xs = make([]float64, n)
	floats.Span(xs, lo, hi)
	ys = make([]float64, n)

	kernels := make([]distuv.Normal, len(samples))
	for i, s := range samples {
		kernels[i] = distuv.Normal{Mu: s, Sigma: h}
	}
	inv := 1 / float64(len(samples))
	for i, x := range xs {
		var sum float64
		for _, k := range kernels {
			sum += k.Prob(x)
		}
		ys[i] = sum * inv
	}
	return xs, ys
}

// bandwidth is Silverman's rule of thumb. Identical samples fall back to
// one percent of their magnitude so the curve stays drawable.
func bandwidth(samples []float64) float64 {
	sd := stat.StdDev(samples, nil)
	if len(samples) > 1 && sd > 0 {
		return 1.06 * sd * math.Pow(float64(len(samples)), -0.2)
	}
	h := math.Abs(stat.Mean(samples, nil)) * 0.01
	if h == 0 {
		h = 1
	}
	return h
}
