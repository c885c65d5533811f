package main

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/plot"

	// Liberation fonts register automatically on import
	_ "gonum.org/v1/plot/font/liberation"

	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/edificio-ier/daylightval/daylight"
)

type StepTicks struct {
	Step   float64
	Format string
}

func (t StepTicks) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	start := math.Ceil(min/t.Step) * t.Step
	for v := start; v <= max; v += t.Step {
		ticks = append(ticks, plot.Tick{
			Value: v,
			Label: fmt.Sprintf(t.Format, v),
		})
	}
	return ticks
}

// sensorGrid adapts per-sensor values to the heatmap's grid interface. The
// column-major cell order matches the sensor emission order (X outer, Y
// inner), so cell (c, r) is sensor c*NY + r. Cells with no matched pairs
// carry NaN and are left blank.
type sensorGrid struct {
	pts  []daylight.SensorPoint
	info daylight.GridInfo
	vals []float64
}

func (g sensorGrid) Dims() (c, r int)   { return g.info.NX, g.info.NY }
func (g sensorGrid) Z(c, r int) float64 { return g.vals[c*g.info.NY+r] }
func (g sensorGrid) X(c int) float64    { return g.pts[c*g.info.NY].X }
func (g sensorGrid) Y(r int) float64    { return g.pts[r].Y }

// MakeErrorHeatmap draws the mean simulated-minus-measured difference of each
// sensor at its floor-plan position, on a diverging palette centered at zero.
func MakeErrorHeatmap(filename string, pts []daylight.SensorPoint, info daylight.GridInfo,
	records []daylight.ComparisonRecord) error {

	if len(pts) != info.Count() {
		return fmt.Errorf("%w: %d points for a %d x %d grid",
			daylight.ErrShapeMismatch, len(pts), info.NX, info.NY)
	}

	sums := make([]float64, info.Count())
	counts := make([]int, info.Count())
	for _, r := range records {
		if int(r.Sensor) < len(sums) {
			sums[r.Sensor] += r.Diff()
			counts[r.Sensor]++
		}
	}
	vals := make([]float64, info.Count())
	span := 0.0
	for i := range vals {
		if counts[i] == 0 {
			vals[i] = math.NaN()
			continue
		}
		vals[i] = sums[i] / float64(counts[i])
		if a := math.Abs(vals[i]); a > span {
			span = a
		}
	}
	if span == 0 {
		span = 1 // all-zero error map still needs a non-degenerate scale
	}

	p := plot.New()

	// Modify the font fields directly on existing styles
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = "Mean illuminance error by sensor position"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	pal := moreland.SmoothBlueRed()
	pal.SetMin(-span)
	pal.SetMax(span)
	h := plotter.NewHeatMap(sensorGrid{pts: pts, info: info, vals: vals}, pal.Palette(255))
	h.Min = -span
	h.Max = span
	p.Add(h)

	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}

// MakeIlluminanceHeatmap draws one hour's simulated illuminance field over
// the floor plan.
func MakeIlluminanceHeatmap(filename string, pts []daylight.SensorPoint, info daylight.GridInfo,
	vals []float64, hour int) error {

	if len(pts) != info.Count() || len(vals) != info.Count() {
		return fmt.Errorf("%w: %d points and %d values for a %d x %d grid",
			daylight.ErrShapeMismatch, len(pts), len(vals), info.NX, info.NY)
	}

	p := plot.New()

	// Modify the font fields directly on existing styles
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = fmt.Sprintf("Simulated illuminance, hour %d (lux)", hour)
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	h := plotter.NewHeatMap(sensorGrid{pts: pts, info: info, vals: vals}, palette.Heat(255, 1))
	p.Add(h)

	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}

// MakeScatterPlot draws simulated against measured illuminance with the 1:1
// agreement line.
func MakeScatterPlot(filename string, records []daylight.ComparisonRecord) error {
	p := plot.New()

	// Modify the font fields directly on existing styles
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = "Simulated vs measured illuminance"
	p.X.Label.Text = "measured (lux)"
	p.Y.Label.Text = "simulated (lux)"
	p.Add(plotter.NewGrid()) // grid + ticks

	limit := 0.0
	pts := make(plotter.XYs, len(records))
	for i, r := range records {
		pts[i].X = r.Measured
		pts[i].Y = r.Simulated
		limit = math.Max(limit, math.Max(r.Measured, r.Simulated))
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Shape = draw.CircleGlyph{}
	scatter.Radius = vg.Points(2)
	scatter.Color = color.RGBA{R: 0, G: 0, B: 255, A: 255} // blue

	p.Add(scatter)

	// 1:1 agreement line
	hpts := plotter.XYs{
		{X: 0.0, Y: 0.0},
		{X: limit, Y: limit},
	}

	hline, err := plotter.NewLine(hpts)
	if err != nil {
		return err
	}

	p.Add(hline)

	hline.Dashes = []vg.Length{
		vg.Points(6), // dash length
		vg.Points(4), // gap length
	}
	hline.Color = color.RGBA{R: 0, G: 0, B: 0, A: 255} // black

	return p.Save(6*vg.Inch, 6*vg.Inch, filename)
}

// MakeHourlyProfilePlot draws the hour-by-hour mean of the measured and
// simulated series over the campaign day.
func MakeHourlyProfilePlot(filename string, records []daylight.ComparisonRecord) error {
	type cell struct {
		measured, simulated float64
		n                   int
	}
	byHour := map[int]*cell{}
	for _, r := range records {
		c := byHour[r.Hour]
		if c == nil {
			c = &cell{}
			byHour[r.Hour] = c
		}
		c.measured += r.Measured
		c.simulated += r.Simulated
		c.n++
	}
	hours := make([]int, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	p := plot.New()

	// Modify the font fields directly on existing styles
	p.Title.TextStyle.Font.Typeface = "Liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = vg.Points(12)

	p.X.Label.TextStyle.Font.Typeface = "Liberation"
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = vg.Points(12)

	p.Y.Label.TextStyle.Font.Typeface = "Liberation"
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = vg.Points(12)

	p.X.Tick.Label.Font.Typeface = "Liberation"
	p.X.Tick.Label.Font.Variant = "Sans"
	p.X.Tick.Label.Font.Size = vg.Points(10)

	p.Y.Tick.Label.Font.Typeface = "Liberation"
	p.Y.Tick.Label.Font.Variant = "Sans"
	p.Y.Tick.Label.Font.Size = vg.Points(10)

	p.Title.Text = "Mean illuminance by hour"
	p.X.Label.Text = "hour of year"
	p.Y.Label.Text = "illuminance (lux)"

	p.X.Tick.Marker = StepTicks{Step: 1, Format: "%.0f"}
	p.Add(plotter.NewGrid()) // grid + ticks

	measured := make(plotter.XYs, len(hours))
	simulated := make(plotter.XYs, len(hours))
	for i, h := range hours {
		c := byHour[h]
		measured[i].X = float64(h)
		measured[i].Y = c.measured / float64(c.n)
		simulated[i].X = float64(h)
		simulated[i].Y = c.simulated / float64(c.n)
	}

	mLine, mPoints, err := plotter.NewLinePoints(measured)
	if err != nil {
		return err
	}
	mLine.Color = color.RGBA{R: 0, G: 0, B: 255, A: 255} // blue
	mLine.Width = vg.Points(1)
	mPoints.Shape = draw.CircleGlyph{}
	mPoints.Radius = vg.Points(2)
	mPoints.Color = color.RGBA{R: 120, G: 120, B: 120, A: 255}

	sLine, err := plotter.NewLine(simulated)
	if err != nil {
		return err
	}
	sLine.Color = color.RGBA{R: 255, G: 0, B: 0, A: 255} // red
	sLine.Dashes = []vg.Length{
		vg.Points(6), // dash length
		vg.Points(4), // gap length
	}

	p.Add(mLine, mPoints, sLine)
	p.Legend.Add("measured", mLine)
	p.Legend.Add("simulated", sLine)
	p.Legend.Top = true

	return p.Save(8*vg.Inch, 4*vg.Inch, filename)
}
