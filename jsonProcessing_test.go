package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edificio-ier/daylightval/daylight"
)

func writeParamFile(t *testing.T, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "params.json5")
	require.NoError(t, os.WriteFile(filename, []byte(content), 0o644))
	return filename
}

const validParams = `{
	// validation-room campaign
	grid: {
		variant: "counted",
		region: {min_x: 0.0, max_x: 9.0, min_y: -9.653275, max_y: 0.5},
		nx: 7, ny: 9,
		spacing_m: 1.08,
		offset_x_m: 0.71, offset_y_m: 0.51,
		points_file: "validation.pts",
	},
	transform: {
		dc_matrix_file: "dc.mtx",
		sky_matrix_file: "sky.smx",
		annual_file: "annual.mtx",
	},
	measurements: {
		dir: "lux",
		session_month: 6, session_day: 26,
		hours: [9, 10, 11],
		device_columns: ["I1N", "I2N", "I3N"],
		grid_lines: 9,
		reverse_odd_hours_bool: true,
		match_tolerance_minutes: 10,
		device_map: {"HOBO-EXT": 62},
	},
}`

func TestLoadRunConfig(t *testing.T) {
	cfg, err := loadRunConfig(writeParamFile(t, validParams))
	require.NoError(t, err)

	assert.Equal(t, "counted", cfg.GridVariant)
	assert.Equal(t, 7, cfg.NX)
	assert.Equal(t, 9, cfg.NY)
	assert.Equal(t, 1.08, cfg.GridSpacing)
	assert.Equal(t, 63, cfg.Sensors, "sensor count derives from the counted grid")

	// Defaults stand where the file is silent.
	assert.Equal(t, 0.75, cfg.WorkPlaneZ)
	assert.Equal(t, daylight.HoursPerYear, cfg.Timesteps)
	assert.Equal(t, daylight.DefaultPhotopicWeights, cfg.PhotopicWeights)
	assert.True(t, cfg.ClampNegative)
	assert.Equal(t, daylight.KluxToLux, cfg.UnitScale)
	assert.Equal(t, "results", cfg.ReportDir)
	assert.Equal(t, 1, cfg.NProc)
	assert.False(t, cfg.RendererGiven)

	assert.True(t, cfg.ReverseOddHours)
	assert.Equal(t, []int{9, 10, 11}, cfg.SessionHours)
	assert.Equal(t, 10*time.Minute, cfg.AlignConfig().Tolerance)

	session := cfg.Session()
	assert.Equal(t, time.June, session.Month)
	assert.Equal(t, 26, session.Day)

	// The grid layout contributes 27 devices and device_map one more.
	mapping := cfg.Mapping()
	assert.Len(t, mapping, 28)
	assert.Equal(t, daylight.SensorIndex(0), mapping["I1N/L1"])
	assert.Equal(t, daylight.SensorIndex(62), mapping["HOBO-EXT"])
	require.NoError(t, mapping.Validate(cfg.Sensors))
}

func TestLoadRunConfigErrors(t *testing.T) {
	_, err := loadRunConfig(writeParamFile(t, `{grid: {variant: "hexagonal"}}`))
	assert.ErrorContains(t, err, "grid.variant")

	_, err = loadRunConfig(writeParamFile(t, `{
		measurements: {
			dir: "lux", session_month: 6, session_day: 26,
			hours: [9], device_columns: ["I1N"], grid_lines: 9,
		},
	}`))
	assert.ErrorContains(t, err, "match_tolerance_minutes: not found")

	_, err = loadRunConfig(writeParamFile(t, `{
		transform: {photopic_weights: [1, 2]},
	}`))
	assert.ErrorContains(t, err, "photopic_weights")

	_, err = loadRunConfig(filepath.Join(t.TempDir(), "missing.json5"))
	assert.ErrorContains(t, err, "failed to read")
}

func readCSV(t *testing.T, filename string) [][]string {
	t.Helper()
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteComparisonCSV(t *testing.T) {
	records := []daylight.ComparisonRecord{
		{Sensor: 3, Hour: 4235, Simulated: 300, Measured: 280},
		{Sensor: 4, Hour: 4235, Simulated: 50, Measured: 0}, // dark reading
	}
	filename := filepath.Join(t.TempDir(), "comparison.csv")
	require.NoError(t, writeComparisonCSV(filename, records))

	rows := readCSV(t, filename)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"4235", "3", "280.0", "300.0", "20.0", "7.14"}, rows[1])
	assert.Equal(t, "", rows[2][5], "percent error must be blank for dark readings")
}

func TestWritePointHourCSV(t *testing.T) {
	records := []daylight.ComparisonRecord{
		{Sensor: 0, Hour: 8, Measured: 100},
		{Sensor: 0, Hour: 9, Measured: 200},
		{Sensor: 1, Hour: 9, Measured: 300}, // no hour-8 reading for sensor 1
	}
	filename := filepath.Join(t.TempDir(), "pivot.csv")
	measured := func(r daylight.ComparisonRecord) float64 { return r.Measured }
	require.NoError(t, writePointHourCSV(filename, records, measured))

	rows := readCSV(t, filename)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"sensor", "h8", "h9"}, rows[0])
	assert.Equal(t, []string{"0", "100.0", "200.0"}, rows[1])
	assert.Equal(t, []string{"1", "", "300.0"}, rows[2])
}

func TestStepTicks(t *testing.T) {
	ticks := StepTicks{Step: 0.5, Format: "%.1f"}.Ticks(0.2, 1.7)
	require.Len(t, ticks, 3)
	assert.Equal(t, 0.5, ticks[0].Value)
	assert.Equal(t, "1.5", ticks[2].Label)
}
