package daylight

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ComputeAnnual loads a daylight-coefficient matrix and a sky matrix from
// disk and runs the two-phase transform. It returns the annual illuminance
// matrix (timesteps x sensors, lux) and the count of negative cells seen.
// A sky matrix with other than timesteps rows, or a patch-count mismatch
// between the two inputs, aborts before any computation.
func ComputeAnnual(dcFile, skyFile string, timesteps int, weights [3]float64, clampNegative bool) (*mat.Dense, int, error) {
	dc, err := LoadRGBMatrixFile(dcFile)
	if err != nil {
		return nil, 0, fmt.Errorf("daylight-coefficient matrix: %w", err)
	}
	sky, err := LoadRGBMatrixFile(skyFile)
	if err != nil {
		return nil, 0, fmt.Errorf("sky matrix: %w", err)
	}
	if rows, _ := sky.Dims(); rows != timesteps {
		return nil, 0, fmt.Errorf("%w: sky matrix %s has %d timesteps, expected %d",
			ErrShapeMismatch, skyFile, rows, timesteps)
	}
	annual, negatives, err := Illuminance(dc, sky, weights, clampNegative)
	if err != nil {
		return nil, 0, fmt.Errorf("daylight transform: %w", err)
	}
	return annual, negatives, nil
}

// ComparisonResult is everything the comparison stage produces for one run.
type ComparisonResult struct {
	Aligned  []AlignedSeries
	Unmapped []string // devices skipped for lack of a mapping entry
	Gaps     int      // readings dropped across all devices

	Records   []ComparisonRecord
	Overall   Summary
	PerSensor []SensorSummary
	PerDay    []WindowSummary
	PerHour   []WindowSummary
}

// CompareAnnual aligns the measurement series onto the annual matrix and
// computes the full metrics set. The mapping is validated against the
// matrix's sensor count first; an invalid mapping aborts, an unmapped
// device merely skips that device.
func CompareAnnual(annual *mat.Dense, series []MeasurementSeries, mapping SensorMapping, cfg AlignConfig) (*ComparisonResult, error) {
	_, sensors := annual.Dims()
	if err := mapping.Validate(sensors); err != nil {
		return nil, err
	}

	res := &ComparisonResult{}
	res.Aligned, res.Unmapped = AlignAll(series, mapping, cfg)
	for _, a := range res.Aligned {
		res.Gaps += a.Gaps
	}

	records, err := Compare(annual, res.Aligned)
	if err != nil {
		return nil, err
	}
	res.Records = records

	overall, err := Summarize(records)
	if err != nil {
		return nil, fmt.Errorf("overall metrics: %w", err)
	}
	res.Overall = overall
	res.PerSensor = SummarizeBySensor(records)
	res.PerDay = SummarizeByDay(records)
	res.PerHour = SummarizeByHour(records)
	return res, nil
}
