package daylight

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func civil(month time.Month, day, hour, min int) time.Time {
	return time.Date(1, month, day, hour, min, 0, 0, time.UTC)
}

func TestHourOfYear(t *testing.T) {
	// Interval-ending convention: the reading at H:00 matches the
	// simulation interval (H-1):00..H:00.
	cases := []struct {
		in   time.Time
		want int
	}{
		{civil(time.January, 1, 0, 0), 0},
		{civil(time.January, 1, 1, 0), 0},
		{civil(time.January, 1, 2, 0), 1},
		{civil(time.January, 2, 0, 0), 23},
		{civil(time.June, 26, 12, 0), 4235},
		{civil(time.December, 31, 23, 0), 8758},
	}
	for _, c := range cases {
		got, err := HourOfYear(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "for %s", c.in.Format("Jan 2 15:04"))
	}

	// Feb 29 has no row in the non-leap reference year.
	_, err := HourOfYear(time.Date(2024, time.February, 29, 10, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestAlignExactOnGrid(t *testing.T) {
	series := MeasurementSeries{
		Device: "I1N/L1",
		Samples: []MeasurementSample{
			{Time: civil(time.June, 26, 9, 0), Value: 1.2},
			{Time: civil(time.June, 26, 10, 0), Value: 2.4},
		},
	}
	cfg := AlignConfig{Tolerance: 5 * time.Minute, UnitScale: KluxToLux}

	a := Align(series, 3, cfg)
	assert.Zero(t, a.Gaps)
	require.Len(t, a.Samples, 2)
	assert.Equal(t, SensorIndex(3), a.Sensor)

	h9, _ := HourOfYear(civil(time.June, 26, 9, 0))
	assert.Equal(t, h9, a.Samples[0].Hour)
	assert.Equal(t, 1200.0, a.Samples[0].Lux)
	assert.Equal(t, h9+1, a.Samples[1].Hour)
	assert.Equal(t, 2400.0, a.Samples[1].Lux)
}

func TestAlignOutsideTolerance(t *testing.T) {
	series := MeasurementSeries{
		Device: "I1N/L1",
		Samples: []MeasurementSample{
			{Time: civil(time.June, 26, 9, 20), Value: 1.0},
			{Time: civil(time.June, 26, 10, 40), Value: 2.0},
		},
	}
	cfg := AlignConfig{Tolerance: 10 * time.Minute, UnitScale: KluxToLux}

	a := Align(series, 0, cfg)
	assert.Empty(t, a.Samples)
	assert.Equal(t, len(series.Samples), a.Gaps,
		"every out-of-tolerance reading must be reported as a gap")
}

func TestAlignClockOffset(t *testing.T) {
	// Instrument clock runs on daylight-saving time, one hour ahead of the
	// sky matrix's standard local time.
	series := MeasurementSeries{
		Device:  "I1N/L1",
		Samples: []MeasurementSample{{Time: civil(time.June, 26, 13, 0), Value: 1.0}},
	}
	cfg := AlignConfig{
		ClockOffset: -time.Hour,
		Tolerance:   5 * time.Minute,
		UnitScale:   KluxToLux,
	}

	a := Align(series, 0, cfg)
	require.Len(t, a.Samples, 1)
	want, _ := HourOfYear(civil(time.June, 26, 12, 0))
	assert.Equal(t, want, a.Samples[0].Hour)
}

func TestAlignNearestHourWithinTolerance(t *testing.T) {
	series := MeasurementSeries{
		Device:  "I1N/L1",
		Samples: []MeasurementSample{{Time: civil(time.June, 26, 11, 55), Value: 1.0}},
	}
	cfg := AlignConfig{Tolerance: 10 * time.Minute, UnitScale: 1}

	a := Align(series, 0, cfg)
	require.Len(t, a.Samples, 1)
	want, _ := HourOfYear(civil(time.June, 26, 12, 0))
	assert.Equal(t, want, a.Samples[0].Hour)
}

func TestSensorMappingValidate(t *testing.T) {
	m := SensorMapping{"a": 0, "b": 1}
	assert.NoError(t, m.Validate(2))
	assert.Error(t, m.Validate(1), "index out of range")

	dup := SensorMapping{"a": 0, "b": 0}
	assert.Error(t, dup.Validate(2), "mapping must be injective")

	idx, err := m.Sensor("b")
	require.NoError(t, err)
	assert.Equal(t, SensorIndex(1), idx)
	_, err = m.Sensor("stray")
	assert.ErrorIs(t, err, ErrUnmappedDevice)
}

func TestMappingFromGrid(t *testing.T) {
	cols := []string{"I1N", "I2N", "I3N"}

	m := MappingFromGrid(2, cols, false)
	assert.Equal(t, SensorIndex(0), m["I1N/L1"])
	assert.Equal(t, SensorIndex(2), m["I3N/L1"])
	assert.Equal(t, SensorIndex(3), m["I1N/L2"])

	// The campaign's instrument columns run north to south while the grid
	// indexes south to north.
	rev := MappingFromGrid(2, cols, true)
	assert.Equal(t, SensorIndex(2), rev["I1N/L1"])
	assert.Equal(t, SensorIndex(0), rev["I3N/L1"])
	assert.Equal(t, SensorIndex(5), rev["I1N/L2"])

	require.NoError(t, rev.Validate(6))
}

func TestAlignAllUnmappedDevice(t *testing.T) {
	series := []MeasurementSeries{
		{Device: "known", Samples: []MeasurementSample{{Time: civil(time.June, 26, 9, 0), Value: 1}}},
		{Device: "stray", Samples: []MeasurementSample{{Time: civil(time.June, 26, 9, 0), Value: 1}}},
	}
	mapping := SensorMapping{"known": 0}
	cfg := AlignConfig{Tolerance: time.Minute, UnitScale: 1}

	aligned, unmapped := AlignAll(series, mapping, cfg)
	require.Len(t, aligned, 1)
	assert.Equal(t, "known", aligned[0].Device)
	assert.Equal(t, []string{"stray"}, unmapped)
}

func TestLoadMeasurementCSV(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "I1N.csv")
	content := "timestamp,klux\n2024-06-26 09:00,1.25\n2024-06-26 10:00,2.5\n"
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))

	series, err := LoadMeasurementCSV(filename, "I1N", "2006-01-02 15:04")
	require.NoError(t, err)
	assert.Equal(t, "I1N", series.Device)
	require.Len(t, series.Samples, 2)
	assert.Equal(t, 1.25, series.Samples[0].Value)
	assert.Equal(t, 9, series.Samples[0].Time.Hour())

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("timestamp,klux\n2024-06-26 09:00,oops\n"), 0o644))
	_, err = LoadMeasurementCSV(bad, "x", "2006-01-02 15:04")
	assert.ErrorContains(t, err, "bad.csv:2")
}

func TestHourGridSessionLoad(t *testing.T) {
	dir := t.TempDir()
	// Two grid lines, two device columns. The 9h file was logged walking
	// the grid backwards, so its rows are reversed on disk.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "09h.csv"),
		[]byte("I1N,I2N\n3.0,4.0\n1.0,2.0\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "10h.csv"),
		[]byte("I1N,I2N\n5.0,6.0\n7.0,8.0\n"), 0o644))

	session := HourGridSession{
		Dir:             dir,
		Month:           time.June,
		Day:             26,
		Hours:           []int{9, 10},
		Columns:         []string{"I1N", "I2N"},
		Lines:           2,
		ReverseOddHours: true,
	}

	series, err := session.Load()
	require.NoError(t, err)
	require.Len(t, series, 4)

	byDevice := make(map[string]MeasurementSeries)
	for _, s := range series {
		byDevice[s.Device] = s
	}

	// After un-reversing the 9h file, line 1 is (1.0, 2.0).
	l1 := byDevice["I1N/L1"]
	require.Len(t, l1.Samples, 2)
	assert.Equal(t, 1.0, l1.Samples[0].Value)
	assert.Equal(t, 9, l1.Samples[0].Time.Hour())
	assert.Equal(t, 5.0, l1.Samples[1].Value)

	l2 := byDevice["I2N/L2"]
	assert.Equal(t, 4.0, l2.Samples[0].Value)
	assert.Equal(t, 8.0, l2.Samples[1].Value)
}

func TestHourGridSessionErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "09h.csv"),
		[]byte("I1N\n1.0\n"), 0o644))

	session := HourGridSession{
		Dir: dir, Month: time.June, Day: 26,
		Hours: []int{9}, Columns: []string{"I1N", "I2N"}, Lines: 1,
	}
	_, err := session.Load()
	assert.ErrorContains(t, err, `missing device column "I2N"`)

	session.Columns = []string{"I1N"}
	session.Lines = 3
	_, err = session.Load()
	assert.ErrorContains(t, err, "expected 3 grid lines")
}
