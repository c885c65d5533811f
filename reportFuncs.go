package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/edificio-ier/daylightval/daylight"
)

// Report tables. The long-form CSV carries one matched pair per row; the
// point-by-hour pivots reproduce the campaign notebook layout with one sensor
// per row and one column per logged hour.

func writeComparisonCSV(filename string, records []daylight.ComparisonRecord) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", filename, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"hour_of_year", "sensor", "measured_lux", "simulated_lux",
		"difference_lux", "percent_error",
	}); err != nil {
		return err
	}

	for _, r := range records {
		// Percent error is left blank for dark readings rather than
		// reporting a division by zero.
		percent := ""
		if r.Measured > 0 {
			percent = strconv.FormatFloat(100*r.Diff()/r.Measured, 'f', 2, 64)
		}
		row := []string{
			strconv.Itoa(r.Hour),
			strconv.Itoa(int(r.Sensor)),
			strconv.FormatFloat(r.Measured, 'f', 1, 64),
			strconv.FormatFloat(r.Simulated, 'f', 1, 64),
			strconv.FormatFloat(r.Diff(), 'f', 1, 64),
			percent,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// writePointHourCSV pivots the records into a sensor-by-hour table of the
// selected value.
func writePointHourCSV(filename string, records []daylight.ComparisonRecord,
	value func(daylight.ComparisonRecord) float64) (err error) {

	sensorSet := map[daylight.SensorIndex]bool{}
	hourSet := map[int]bool{}
	cells := map[daylight.SensorIndex]map[int]float64{}
	for _, r := range records {
		sensorSet[r.Sensor] = true
		hourSet[r.Hour] = true
		if cells[r.Sensor] == nil {
			cells[r.Sensor] = map[int]float64{}
		}
		cells[r.Sensor][r.Hour] = value(r)
	}

	sensors := make([]daylight.SensorIndex, 0, len(sensorSet))
	for s := range sensorSet {
		sensors = append(sensors, s)
	}
	sort.Slice(sensors, func(i, j int) bool { return sensors[i] < sensors[j] })
	hours := make([]int, 0, len(hourSet))
	for h := range hourSet {
		hours = append(hours, h)
	}
	sort.Ints(hours)

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", filename, cerr)
		}
	}()

	w := csv.NewWriter(f)
	header := []string{"sensor"}
	for _, h := range hours {
		header = append(header, "h"+strconv.Itoa(h))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, s := range sensors {
		row := []string{strconv.Itoa(int(s))}
		for _, h := range hours {
			v, ok := cells[s][h]
			if !ok {
				row = append(row, "") // gap: no reading matched this hour
			} else {
				row = append(row, strconv.FormatFloat(v, 'f', 1, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func writeSensorSummaryCSV(filename string, rows []daylight.SensorSummary) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", filename, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"sensor", "pairs", "mbe_lux", "rmse_lux", "mape_percent"}); err != nil {
		return err
	}
	for _, r := range rows {
		mape := ""
		if r.MAPEDefined {
			mape = strconv.FormatFloat(100*r.MAPE, 'f', 2, 64)
		}
		row := []string{
			strconv.Itoa(int(r.Sensor)),
			strconv.Itoa(r.Count),
			strconv.FormatFloat(r.MBE, 'f', 1, 64),
			strconv.FormatFloat(r.RMSE, 'f', 1, 64),
			mape,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// printSummary writes the human-readable metrics block that ends every
// comparison run.
func printSummary(w io.Writer, res *daylight.ComparisonResult) {
	s := res.Overall
	fmt.Fprintf(w, "matched pairs: %d (gaps: %d, unmapped devices: %d)\n",
		s.Count, res.Gaps, len(res.Unmapped))
	fmt.Fprintf(w, "MBE:    %+9.1f lux\n", s.MBE)
	fmt.Fprintf(w, "StdDev: %9.1f lux\n", s.StdDev)
	fmt.Fprintf(w, "RMSE:   %9.1f lux\n", s.RMSE)
	if s.MAPEDefined {
		fmt.Fprintf(w, "MAPE:   %9.2f %% over %d pairs (%d dark pairs excluded)\n",
			100*s.MAPE, s.MAPEPairs, s.MAPEExcluded)
	} else {
		fmt.Fprintf(w, "MAPE:   undefined (all %d measured values are zero)\n", s.MAPEExcluded)
	}
	if s.CorrelationDefined {
		fmt.Fprintf(w, "Pearson r: %6.3f\n", s.Correlation)
	} else {
		fmt.Fprintf(w, "Pearson r: undefined (need at least 2 non-constant pairs)\n")
	}
	if s.RelativeDefined {
		fmt.Fprintf(w, "measured mean: %.1f lux, MBE %+0.1f %%, CV(RMSE) %.1f %%\n",
			s.MeasuredMean, s.MBEPercent, s.CVRMSE)
	}

	if len(res.PerHour) > 0 {
		fmt.Fprintf(w, "\nper-hour breakdown:\n")
		for _, h := range res.PerHour {
			fmt.Fprintf(w, "  hour %4d: %2d pairs, MBE %+8.1f lux, RMSE %8.1f lux\n",
				h.Window, h.Count, h.MBE, h.RMSE)
		}
	}
}

func writeReports(dir string, res *daylight.ComparisonResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	if err := writeComparisonCSV(dir+"/comparison.csv", res.Records); err != nil {
		return err
	}
	measured := func(r daylight.ComparisonRecord) float64 { return r.Measured }
	simulated := func(r daylight.ComparisonRecord) float64 { return r.Simulated }
	difference := func(r daylight.ComparisonRecord) float64 { return r.Diff() }
	if err := writePointHourCSV(dir+"/measured_by_hour.csv", res.Records, measured); err != nil {
		return err
	}
	if err := writePointHourCSV(dir+"/simulated_by_hour.csv", res.Records, simulated); err != nil {
		return err
	}
	if err := writePointHourCSV(dir+"/difference_by_hour.csv", res.Records, difference); err != nil {
		return err
	}
	if err := writeSensorSummaryCSV(dir+"/per_sensor.csv", res.PerSensor); err != nil {
		return err
	}

	f, err := os.Create(dir + "/summary.txt")
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dir+"/summary.txt", err)
	}
	printSummary(f, res)
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dir+"/summary.txt", err)
	}
	return nil
}
