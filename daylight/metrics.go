package daylight

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNoPairs reports an aggregate requested over zero valid simulated/
// measured pairs. It is an explicit error condition, never coerced to 0.
var ErrNoPairs = errors.New("no valid simulated/measured pairs")

// ErrInsufficientData reports a correlation requested over fewer than two
// pairs, for which the coefficient is undefined.
var ErrInsufficientData = errors.New("insufficient data for correlation")

// ComparisonRecord pairs one simulated and one measured illuminance value
// at a (sensor, hour) coordinate.
type ComparisonRecord struct {
	Sensor    SensorIndex
	Hour      int // hour-of-year index
	Simulated float64
	Measured  float64
}

// Diff returns the signed error, simulated minus measured.
func (r ComparisonRecord) Diff() float64 { return r.Simulated - r.Measured }

// AbsDiff returns the absolute error.
func (r ComparisonRecord) AbsDiff() float64 { return math.Abs(r.Diff()) }

// Compare emits one ComparisonRecord per (sensor, hour) present in both the
// annual matrix and an aligned series. An aligned hour outside the annual
// matrix, or a sensor index outside its columns, is a shape mismatch: the
// inputs came from different runs.
func Compare(annual *mat.Dense, aligned []AlignedSeries) ([]ComparisonRecord, error) {
	rows, cols := annual.Dims()
	var records []ComparisonRecord
	for _, series := range aligned {
		if int(series.Sensor) < 0 || int(series.Sensor) >= cols {
			return nil, fmt.Errorf("%w: device %s maps to sensor %d, annual matrix has %d sensors",
				ErrShapeMismatch, series.Device, series.Sensor, cols)
		}
		for _, s := range series.Samples {
			if s.Hour < 0 || s.Hour >= rows {
				return nil, fmt.Errorf("%w: device %s has hour %d, annual matrix has %d timesteps",
					ErrShapeMismatch, series.Device, s.Hour, rows)
			}
			records = append(records, ComparisonRecord{
				Sensor:    series.Sensor,
				Hour:      s.Hour,
				Simulated: annual.At(s.Hour, int(series.Sensor)),
				Measured:  s.Lux,
			})
		}
	}
	return records, nil
}

// Summary aggregates the error metrics over a set of comparison pairs.
// Every metric carries the sample count it was computed over; metrics that
// are undefined for the sample set carry an explicit flag instead of a
// stand-in value.
type Summary struct {
	Count int // pairs behind MBE and RMSE

	MBE    float64 // mean bias error, mean(sim - meas), lux
	StdDev float64 // standard deviation of the signed error, lux
	RMSE   float64 // root-mean-square error, lux

	// MAPE is mean(|sim - meas| / meas) over pairs with meas != 0.
	// Pairs with meas == 0 are excluded and counted, not silently dropped.
	MAPE         float64
	MAPEPairs    int
	MAPEExcluded int
	MAPEDefined  bool

	// Pearson correlation between the simulated and measured series.
	// Undefined (reported, not computed) below two pairs or when either
	// series is constant.
	Correlation        float64
	CorrelationDefined bool

	// Metrics relative to the measured mean, as reported in the campaign
	// summaries. Undefined when the measured mean is zero.
	MeasuredMean    float64
	MBEPercent      float64
	CVRMSE          float64
	RelativeDefined bool
}

// Summarize computes the aggregate metrics over records. Zero records is an
// ErrNoPairs error, not a zero-valued summary.
func Summarize(records []ComparisonRecord) (Summary, error) {
	if len(records) == 0 {
		return Summary{}, ErrNoPairs
	}

	n := len(records)
	diffs := make([]float64, n)
	sim := make([]float64, n)
	meas := make([]float64, n)
	for i, r := range records {
		diffs[i] = r.Diff()
		sim[i] = r.Simulated
		meas[i] = r.Measured
	}

	s := Summary{Count: n}
	s.MBE = stat.Mean(diffs, nil)
	if n > 1 {
		s.StdDev = stat.StdDev(diffs, nil)
	}
	sumSq := 0.0
	for _, d := range diffs {
		sumSq += d * d
	}
	s.RMSE = math.Sqrt(sumSq / float64(n))

	apeSum := 0.0
	for _, r := range records {
		if r.Measured == 0 {
			s.MAPEExcluded++
			continue
		}
		apeSum += r.AbsDiff() / r.Measured
		s.MAPEPairs++
	}
	if s.MAPEPairs > 0 {
		s.MAPE = apeSum / float64(s.MAPEPairs)
		s.MAPEDefined = true
	}

	if r, err := Pearson(records); err == nil {
		s.Correlation = r
		s.CorrelationDefined = true
	}

	s.MeasuredMean = stat.Mean(meas, nil)
	if s.MeasuredMean != 0 {
		s.MBEPercent = 100 * s.MBE / s.MeasuredMean
		s.CVRMSE = 100 * s.RMSE / s.MeasuredMean
		s.RelativeDefined = true
	}
	return s, nil
}

// Pearson returns the correlation coefficient between the simulated and
// measured values. Fewer than two pairs, or a constant series, yields
// ErrInsufficientData rather than a computed value.
func Pearson(records []ComparisonRecord) (float64, error) {
	if len(records) < 2 {
		return 0, fmt.Errorf("%w: have %d pairs, need at least 2", ErrInsufficientData, len(records))
	}
	sim := make([]float64, len(records))
	meas := make([]float64, len(records))
	for i, r := range records {
		sim[i] = r.Simulated
		meas[i] = r.Measured
	}
	r := stat.Correlation(sim, meas, nil)
	if math.IsNaN(r) {
		return 0, fmt.Errorf("%w: a series is constant", ErrInsufficientData)
	}
	return r, nil
}

// SensorSummary is a per-sensor aggregate.
type SensorSummary struct {
	Sensor SensorIndex
	Summary
}

// SummarizeBySensor aggregates the records per sensor, ordered by sensor
// index.
func SummarizeBySensor(records []ComparisonRecord) []SensorSummary {
	grouped := make(map[SensorIndex][]ComparisonRecord)
	for _, r := range records {
		grouped[r.Sensor] = append(grouped[r.Sensor], r)
	}
	out := make([]SensorSummary, 0, len(grouped))
	for idx, recs := range grouped {
		s, err := Summarize(recs)
		if err != nil {
			continue // group is non-empty by construction
		}
		out = append(out, SensorSummary{Sensor: idx, Summary: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sensor < out[j].Sensor })
	return out
}

// WindowSummary is a per-time-window aggregate. Window is the day-of-year
// (hour / 24) for daily windows or the hour-of-year for hourly ones.
type WindowSummary struct {
	Window int
	Summary
}

// SummarizeByDay aggregates the records per calendar day of the reference
// year, ordered by day.
func SummarizeByDay(records []ComparisonRecord) []WindowSummary {
	return summarizeByWindow(records, func(r ComparisonRecord) int { return r.Hour / 24 })
}

// SummarizeByHour aggregates the records per hour-of-year, ordered by hour.
// This is the per-hour mean-error table of the campaign reports.
func SummarizeByHour(records []ComparisonRecord) []WindowSummary {
	return summarizeByWindow(records, func(r ComparisonRecord) int { return r.Hour })
}

func summarizeByWindow(records []ComparisonRecord, window func(ComparisonRecord) int) []WindowSummary {
	grouped := make(map[int][]ComparisonRecord)
	for _, r := range records {
		grouped[window(r)] = append(grouped[window(r)], r)
	}
	out := make([]WindowSummary, 0, len(grouped))
	for w, recs := range grouped {
		s, err := Summarize(recs)
		if err != nil {
			continue
		}
		out = append(out, WindowSummary{Window: w, Summary: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Window < out[j].Window })
	return out
}
