package daylight

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// KluxToLux is the unit scale of the field luxmeters, which log in klux.
const KluxToLux = 1000.0

// ErrUnmappedDevice reports a measurement device with no sensor-mapping
// entry. It is fatal for that device's comparison only.
var ErrUnmappedDevice = errors.New("device not present in sensor mapping")

// MeasurementSample is one raw field reading in the device's native unit.
type MeasurementSample struct {
	Time  time.Time // civil local time as logged by the instrument
	Value float64   // reading in instrument units (klux here)
}

// MeasurementSeries is the ordered readings of one physical device.
type MeasurementSeries struct {
	Device  string
	Samples []MeasurementSample
}

// SensorMapping associates a physical device identifier with the simulated
// sensor it sits under. The mapping must be injective over the validation
// subset: no two devices may share a sensor index.
type SensorMapping map[string]SensorIndex

// Validate checks that every mapped index is a valid sensor and that the
// mapping is injective.
func (m SensorMapping) Validate(sensorCount int) error {
	seen := make(map[SensorIndex]string, len(m))
	for device, idx := range m {
		if idx < 0 || int(idx) >= sensorCount {
			return fmt.Errorf("sensor mapping: device %q maps to index %d, valid range is 0..%d",
				device, idx, sensorCount-1)
		}
		if other, dup := seen[idx]; dup {
			return fmt.Errorf("sensor mapping: devices %q and %q both map to sensor %d", other, device, idx)
		}
		seen[idx] = device
	}
	return nil
}

// Sensor resolves a device identifier to its sensor index, reporting
// ErrUnmappedDevice for devices absent from the mapping.
func (m SensorMapping) Sensor(device string) (SensorIndex, error) {
	idx, ok := m[device]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnmappedDevice, device)
	}
	return idx, nil
}

// MappingFromGrid builds the device mapping for the luxmeter campaign
// layout: the operator records one CSV row per grid line (along X) with one
// named column per device position (along Y). Device keys are
// "<column>/L<line>", 1-based lines. When reverseColumns is set the CSV
// columns run against the grid's Y order (the instruments were labelled
// north to south while the grid indexes south to north).
func MappingFromGrid(lines int, columns []string, reverseColumns bool) SensorMapping {
	m := make(SensorMapping, lines*len(columns))
	ny := len(columns)
	for l := 0; l < lines; l++ {
		for c, name := range columns {
			iy := c
			if reverseColumns {
				iy = ny - 1 - c
			}
			m[fmt.Sprintf("%s/L%d", name, l+1)] = SensorIndex(l*ny + iy)
		}
	}
	return m
}

// daysBefore[m] is the number of days before month m in the non-leap
// reference year.
var daysBefore = [13]int{0, 0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

// HourOfYear maps a civil timestamp to its row in the 8760-hour annual
// matrix using the interval-ending convention: the reading taken at H:00
// matches the simulation interval (H-1):00..H:00, so index = hours since
// Jan 1 00:00 minus one, floored at zero. The year component is ignored;
// Feb 29 has no row in the non-leap reference year and is rejected.
func HourOfYear(t time.Time) (int, error) {
	month, day, hour := t.Month(), t.Day(), t.Hour()
	if month == time.February && day == 29 {
		return 0, fmt.Errorf("Feb 29 has no row in the %d-hour reference year", HoursPerYear)
	}
	h := (daysBefore[month]+day-1)*24 + hour
	if h >= HoursPerYear {
		return 0, fmt.Errorf("timestamp %s is outside the %d-hour reference year", t.Format("Jan 2 15:04"), HoursPerYear)
	}
	if h == 0 {
		return 0, nil
	}
	return h - 1, nil
}

// AlignConfig carries the measured-to-simulated alignment parameters. All
// of these come from the run configuration; none are baked into the
// alignment code.
type AlignConfig struct {
	// ClockOffset is added to every measurement timestamp to move it from
	// the instrument's civil clock onto the sky matrix's standard local
	// time (no daylight saving).
	ClockOffset time.Duration
	// Tolerance is the maximum distance from an hourly grid point for a
	// reading to count as a match. Readings further away become gaps.
	Tolerance time.Duration
	// UnitScale converts instrument readings to lux (KluxToLux for the
	// luxmeters used here).
	UnitScale float64
}

// AlignedSample is one measurement matched to a simulation hour.
type AlignedSample struct {
	Hour int     // hour-of-year index into the annual matrix
	Lux  float64 // measured illuminance, unit-normalized
}

// AlignedSeries is a device's measurements on the simulation's hourly grid.
// Hours with no matching reading are simply absent; Gaps counts the
// readings that could not be matched within tolerance.
type AlignedSeries struct {
	Device  string
	Sensor  SensorIndex
	Samples []AlignedSample
	Gaps    int
}

// Align resamples one device's series onto the hourly simulation grid.
// Each reading is shifted by the configured clock offset, matched to the
// nearest hour boundary, and dropped as a gap when the residual offset
// exceeds the tolerance or the timestamp has no row in the reference year.
func Align(series MeasurementSeries, sensor SensorIndex, cfg AlignConfig) AlignedSeries {
	out := AlignedSeries{Device: series.Device, Sensor: sensor}
	for _, s := range series.Samples {
		t := s.Time.Add(cfg.ClockOffset)
		nearest := t.Round(time.Hour)
		offset := t.Sub(nearest)
		if offset < 0 {
			offset = -offset
		}
		if offset > cfg.Tolerance {
			out.Gaps++
			continue
		}
		hour, err := HourOfYear(nearest)
		if err != nil {
			out.Gaps++
			continue
		}
		out.Samples = append(out.Samples, AlignedSample{Hour: hour, Lux: s.Value * cfg.UnitScale})
	}
	sort.SliceStable(out.Samples, func(i, j int) bool { return out.Samples[i].Hour < out.Samples[j].Hour })
	return out
}

// AlignAll aligns every series that has a mapping entry. Unmapped devices
// are skipped and reported by name; they do not abort the run.
func AlignAll(series []MeasurementSeries, mapping SensorMapping, cfg AlignConfig) (aligned []AlignedSeries, unmapped []string) {
	for _, s := range series {
		idx, err := mapping.Sensor(s.Device)
		if err != nil {
			unmapped = append(unmapped, s.Device)
			continue
		}
		aligned = append(aligned, Align(s, idx, cfg))
	}
	return aligned, unmapped
}

// LoadMeasurementCSV loads one device's session file: a header row naming a
// timestamp column ("timestamp", "time" or "datetime") and a reading
// column, followed by one reading per row in instrument units. timeLayout
// is the Go reference layout of the timestamp column.
func LoadMeasurementCSV(filename, device, timeLayout string) (series MeasurementSeries, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return series, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return series, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if len(records) < 2 {
		return series, fmt.Errorf("%s: no data rows", filename)
	}

	timeCol, valueCol := -1, -1
	for i, name := range records[0] {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "timestamp", "time", "datetime":
			timeCol = i
		default:
			if valueCol == -1 {
				valueCol = i
			}
		}
	}
	if timeCol == -1 || valueCol == -1 {
		return series, fmt.Errorf("%s: header must name a timestamp column and a reading column", filename)
	}

	series.Device = device
	for i, rec := range records[1:] {
		lineNo := i + 2
		t, err := time.Parse(timeLayout, strings.TrimSpace(rec[timeCol]))
		if err != nil {
			return MeasurementSeries{}, fmt.Errorf("%s:%d: bad timestamp %q: %w", filename, lineNo, rec[timeCol], err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueCol]), 64)
		if err != nil {
			return MeasurementSeries{}, fmt.Errorf("%s:%d: bad reading %q: %w", filename, lineNo, rec[valueCol], err)
		}
		series.Samples = append(series.Samples, MeasurementSample{Time: t, Value: v})
	}
	return series, nil
}

// HourGridSession describes one measurement day in the campaign's native
// layout: one CSV per hour (e.g. 09h.csv .. 17h.csv), one row per grid
// line, one named column per device position. The operator walked the grid
// boustrophedon, so files for odd hours may list the lines in reverse
// order; ReverseOddHours makes that explicit instead of an implicit
// filename rule.
type HourGridSession struct {
	Dir             string
	Month           time.Month
	Day             int
	Hours           []int    // civil hours with a file, e.g. 9..17
	Columns         []string // device column names in file order
	Lines           int      // rows per file (grid lines along X)
	ReverseOddHours bool
}

// Load reads every hour file of the session and regroups the cells into one
// MeasurementSeries per (column, line) device position, keyed like
// MappingFromGrid ("<column>/L<line>"). Readings stay in instrument units.
func (s HourGridSession) Load() ([]MeasurementSeries, error) {
	byDevice := make(map[string]*MeasurementSeries, s.Lines*len(s.Columns))
	var order []string
	for l := 0; l < s.Lines; l++ {
		for _, name := range s.Columns {
			key := fmt.Sprintf("%s/L%d", name, l+1)
			byDevice[key] = &MeasurementSeries{Device: key}
			order = append(order, key)
		}
	}

	for _, hour := range s.Hours {
		filename := fmt.Sprintf("%s/%02dh.csv", s.Dir, hour)
		rows, err := s.loadHourFile(filename)
		if err != nil {
			return nil, err
		}
		if s.ReverseOddHours && hour%2 == 1 {
			for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
		// Year 1 is a non-leap placeholder; HourOfYear ignores it anyway.
		t := time.Date(1, s.Month, s.Day, hour, 0, 0, 0, time.UTC)
		for l, row := range rows {
			for c, name := range s.Columns {
				key := fmt.Sprintf("%s/L%d", name, l+1)
				byDevice[key].Samples = append(byDevice[key].Samples,
					MeasurementSample{Time: t, Value: row[c]})
			}
		}
	}

	out := make([]MeasurementSeries, 0, len(order))
	for _, key := range order {
		out = append(out, *byDevice[key])
	}
	return out, nil
}

func (s HourGridSession) loadHourFile(filename string) (rows [][]float64, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("%s: no data rows", filename)
	}

	// Locate the device columns by name in the header row.
	colIdx := make([]int, len(s.Columns))
	for i, want := range s.Columns {
		colIdx[i] = -1
		for j, name := range records[0] {
			if strings.TrimSpace(name) == want {
				colIdx[i] = j
				break
			}
		}
		if colIdx[i] == -1 {
			return nil, fmt.Errorf("%s: missing device column %q", filename, want)
		}
	}

	for i, rec := range records[1:] {
		lineNo := i + 2
		row := make([]float64, len(colIdx))
		for c, j := range colIdx {
			if j >= len(rec) {
				return nil, fmt.Errorf("%s:%d: row has %d fields, device column %q needs %d",
					filename, lineNo, len(rec), s.Columns[c], j+1)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad value %q: %w", filename, lineNo, rec[j], err)
			}
			row[c] = v
		}
		rows = append(rows, row)
	}
	if len(rows) != s.Lines {
		return nil, fmt.Errorf("%s: expected %d grid lines, got %d", filename, s.Lines, len(rows))
	}
	return rows, nil
}
