package main

import (
	"fmt"
	"os"
	"time"

	json "github.com/KevinWang15/go-json5"

	"github.com/edificio-ier/daylightval/daylight"
)

func loadRunConfig(filename string) (*RunConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	var jsonTable map[string]interface{}
	if err := json.Unmarshal(data, &jsonTable); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	cfg := newRunConfig()
	msg, ok := validateJsonFileAndFillConfig(jsonTable, cfg)
	if !ok {
		return nil, fmt.Errorf("%s: %s", filename, msg)
	}
	return cfg, nil
}

func getLeafValue(jsonTable map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = jsonTable
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asFloatSlice(v interface{}) ([]float64, bool) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float64, len(arr))
	for i, e := range arr {
		f, ok := e.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

func asStringSlice(v interface{}) ([]string, bool) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, len(arr))
	for i, e := range arr {
		s, ok := e.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}

func validateJsonFileAndFillConfig(jsonTable map[string]interface{}, cfg *RunConfig) (string, bool) {
	msg := "No problem found in parameter file" // Initialize msg to presumed success.

	// Check to see if a grid group is present. Required for the grid stage,
	// optional otherwise.
	_, ok := getLeafValue(jsonTable, "grid")
	cfg.GridGiven = ok

	if ok {
		variant, ok := getLeafValue(jsonTable, "grid", "variant")
		if !ok {
			msg = "grid.variant: not found"
			return msg, false
		}
		cfg.GridVariant, ok = variant.(string)
		if !ok {
			msg = "grid.variant: is not a string"
			return msg, false
		}
		if cfg.GridVariant != "spacing_fit" && cfg.GridVariant != "counted" {
			msg = `grid.variant: must be "spacing_fit" or "counted"`
			return msg, false
		}

		// Validate the four grid.region corner entries
		for _, entry := range []struct {
			dst *float64
			key string
		}{
			{&cfg.Region.MinX, "min_x"},
			{&cfg.Region.MaxX, "max_x"},
			{&cfg.Region.MinY, "min_y"},
			{&cfg.Region.MaxY, "max_y"},
		} {
			v, ok := getLeafValue(jsonTable, "grid", "region", entry.key)
			if !ok {
				msg = "grid.region." + entry.key + ": not found"
				return msg, false
			}
			value, ok := v.(float64)
			if !ok {
				msg = "grid.region." + entry.key + ": is not a float64"
				return msg, false
			}
			*entry.dst = value
		}

		workPlane, ok := getLeafValue(jsonTable, "grid", "work_plane_height_m")
		if ok { // We allow this field to be missing - if missing, the desk-height default stands
			cfg.WorkPlaneZ, ok = workPlane.(float64)
			if !ok {
				msg = "grid.work_plane_height_m: is not a float64"
				return msg, false
			}
		}

		filePath, ok := getLeafValue(jsonTable, "grid", "points_file")
		if !ok {
			msg = "grid.points_file: not found"
			return msg, false
		}
		cfg.PointsFile, ok = filePath.(string)
		if !ok {
			msg = "grid.points_file: is not a string"
			return msg, false
		}

		switch cfg.GridVariant {
		case "spacing_fit":
			wallOffset, ok := getLeafValue(jsonTable, "grid", "wall_offset_m")
			if ok {
				cfg.WallOffset, ok = wallOffset.(float64)
				if !ok {
					msg = "grid.wall_offset_m: is not a float64"
					return msg, false
				}
			}

			candidates, ok := getLeafValue(jsonTable, "grid", "candidate_spacings_m")
			if !ok {
				msg = "grid.candidate_spacings_m: not found"
				return msg, false
			}
			cfg.Candidates, ok = asFloatSlice(candidates)
			if !ok {
				msg = "grid.candidate_spacings_m: is not an array of numbers"
				return msg, false
			}

		case "counted":
			for _, entry := range []struct {
				dst *int
				key string
			}{
				{&cfg.NX, "nx"},
				{&cfg.NY, "ny"},
			} {
				v, ok := getLeafValue(jsonTable, "grid", entry.key)
				if !ok {
					msg = "grid." + entry.key + ": not found"
					return msg, false
				}
				value, ok := v.(float64)
				if !ok {
					msg = "grid." + entry.key + ": is not a float64"
					return msg, false
				}
				*entry.dst = int(value)
			}

			for _, entry := range []struct {
				dst *float64
				key string
			}{
				{&cfg.GridSpacing, "spacing_m"},
				{&cfg.GridOffsetX, "offset_x_m"},
				{&cfg.GridOffsetY, "offset_y_m"},
			} {
				v, ok := getLeafValue(jsonTable, "grid", entry.key)
				if !ok {
					msg = "grid." + entry.key + ": not found"
					return msg, false
				}
				value, ok := v.(float64)
				if !ok {
					msg = "grid." + entry.key + ": is not a float64"
					return msg, false
				}
				*entry.dst = value
			}

			if cfg.Sensors == 0 {
				cfg.Sensors = cfg.NX * cfg.NY
			}
		}
	}

	// The transform group names the matrix files and the illuminance policy.
	_, ok = getLeafValue(jsonTable, "transform")
	cfg.TransformGiven = ok

	if ok {
		filePath, ok := getLeafValue(jsonTable, "transform", "dc_matrix_file")
		if ok {
			cfg.DCMatrixFile, ok = filePath.(string)
			if !ok {
				msg = "transform.dc_matrix_file: is not a string"
				return msg, false
			}
		}

		filePath, ok = getLeafValue(jsonTable, "transform", "sky_matrix_file")
		if ok {
			cfg.SkyMatrixFile, ok = filePath.(string)
			if !ok {
				msg = "transform.sky_matrix_file: is not a string"
				return msg, false
			}
		}

		filePath, ok = getLeafValue(jsonTable, "transform", "annual_file")
		if ok {
			cfg.AnnualFile, ok = filePath.(string)
			if !ok {
				msg = "transform.annual_file: is not a string"
				return msg, false
			}
		}

		timesteps, ok := getLeafValue(jsonTable, "transform", "timesteps")
		if ok { // Default is the full 8760-hour year
			value, ok := timesteps.(float64)
			if !ok {
				msg = "transform.timesteps: is not a float64"
				return msg, false
			}
			cfg.Timesteps = int(value)
		}

		sensors, ok := getLeafValue(jsonTable, "transform", "sensors")
		if ok {
			value, ok := sensors.(float64)
			if !ok {
				msg = "transform.sensors: is not a float64"
				return msg, false
			}
			cfg.Sensors = int(value)
		}

		clampFlag, ok := getLeafValue(jsonTable, "transform", "clamp_negative_bool")
		if ok { // Default: clamp negative illuminance cells to zero
			cfg.ClampNegative, ok = clampFlag.(bool)
			if !ok {
				msg = "transform.clamp_negative_bool: is not a bool"
				return msg, false
			}
		}

		weights, ok := getLeafValue(jsonTable, "transform", "photopic_weights")
		if ok { // Default: the Radiance photopic RGB weights
			values, isArr := asFloatSlice(weights)
			if !isArr || len(values) != 3 {
				msg = "transform.photopic_weights: is not an array of 3 numbers"
				return msg, false
			}
			copy(cfg.PhotopicWeights[:], values)
		}
	}

	// The measurements group describes the luxmeter campaign files.
	_, ok = getLeafValue(jsonTable, "measurements")
	cfg.MeasurementsGiven = ok

	if ok {
		dir, ok := getLeafValue(jsonTable, "measurements", "dir")
		if !ok {
			msg = "measurements.dir: not found"
			return msg, false
		}
		cfg.MeasurementDir, ok = dir.(string)
		if !ok {
			msg = "measurements.dir: is not a string"
			return msg, false
		}

		for _, entry := range []struct {
			dst *int
			key string
		}{
			{&cfg.SessionMonth, "session_month"},
			{&cfg.SessionDay, "session_day"},
			{&cfg.GridLines, "grid_lines"},
		} {
			v, ok := getLeafValue(jsonTable, "measurements", entry.key)
			if !ok {
				msg = "measurements." + entry.key + ": not found"
				return msg, false
			}
			value, ok := v.(float64)
			if !ok {
				msg = "measurements." + entry.key + ": is not a float64"
				return msg, false
			}
			*entry.dst = int(value)
		}
		if cfg.SessionMonth < 1 || cfg.SessionMonth > 12 {
			msg = "measurements.session_month: must be 1..12"
			return msg, false
		}

		hours, ok := getLeafValue(jsonTable, "measurements", "hours")
		if !ok {
			msg = "measurements.hours: not found"
			return msg, false
		}
		hourValues, isArr := asFloatSlice(hours)
		if !isArr {
			msg = "measurements.hours: is not an array of numbers"
			return msg, false
		}
		cfg.SessionHours = make([]int, len(hourValues))
		for i, h := range hourValues {
			cfg.SessionHours[i] = int(h)
		}

		columns, ok := getLeafValue(jsonTable, "measurements", "device_columns")
		if !ok {
			msg = "measurements.device_columns: not found"
			return msg, false
		}
		cfg.DeviceColumns, ok = asStringSlice(columns)
		if !ok {
			msg = "measurements.device_columns: is not an array of strings"
			return msg, false
		}

		reverseOdd, ok := getLeafValue(jsonTable, "measurements", "reverse_odd_hours_bool")
		if ok { // Default to false if this field is missing
			cfg.ReverseOddHours, ok = reverseOdd.(bool)
			if !ok {
				msg = "measurements.reverse_odd_hours_bool: is not a bool"
				return msg, false
			}
		}

		reverseCols, ok := getLeafValue(jsonTable, "measurements", "reverse_columns_bool")
		if ok { // Default to false if this field is missing
			cfg.ReverseColumns, ok = reverseCols.(bool)
			if !ok {
				msg = "measurements.reverse_columns_bool: is not a bool"
				return msg, false
			}
		}

		clockOffset, ok := getLeafValue(jsonTable, "measurements", "clock_offset_minutes")
		if ok { // We allow this field to be missing - if missing, it defaults to 0
			cfg.ClockOffsetMinutes, ok = clockOffset.(float64)
			if !ok {
				msg = "measurements.clock_offset_minutes: is not a float64"
				return msg, false
			}
		}

		// The match tolerance is deliberately required: the clock relationship
		// between instrument and sky matrix is an explicit operator decision.
		tolerance, ok := getLeafValue(jsonTable, "measurements", "match_tolerance_minutes")
		if !ok {
			msg = "measurements.match_tolerance_minutes: not found"
			return msg, false
		}
		cfg.ToleranceMinutes, ok = tolerance.(float64)
		if !ok {
			msg = "measurements.match_tolerance_minutes: is not a float64"
			return msg, false
		}

		unitScale, ok := getLeafValue(jsonTable, "measurements", "unit_scale")
		if ok { // Default: klux readings scaled to lux
			cfg.UnitScale, ok = unitScale.(float64)
			if !ok {
				msg = "measurements.unit_scale: is not a float64"
				return msg, false
			}
		}

		reportDir, ok := getLeafValue(jsonTable, "measurements", "report_dir")
		if ok {
			cfg.ReportDir, ok = reportDir.(string)
			if !ok {
				msg = "measurements.report_dir: is not a string"
				return msg, false
			}
		}

		deviceMap, ok := getLeafValue(jsonTable, "measurements", "device_map")
		if ok {
			table, isMap := deviceMap.(map[string]interface{})
			if !isMap {
				msg = "measurements.device_map: is not an object"
				return msg, false
			}
			cfg.DeviceMap = make(map[string]int, len(table))
			for device, idx := range table {
				value, isFloat := idx.(float64)
				if !isFloat {
					msg = "measurements.device_map." + device + ": is not a float64"
					return msg, false
				}
				cfg.DeviceMap[device] = int(value)
			}
		}
	}

	// Check to see if a renderer group is present --- it is optional
	_, ok = getLeafValue(jsonTable, "renderer")
	cfg.RendererGiven = ok

	if ok {
		bin, ok := getLeafValue(jsonTable, "renderer", "rfluxmtx_bin")
		if ok {
			cfg.RfluxmtxBin, ok = bin.(string)
			if !ok {
				msg = "renderer.rfluxmtx_bin: is not a string"
				return msg, false
			}
		}

		bin, ok = getLeafValue(jsonTable, "renderer", "gendaymtx_bin")
		if ok {
			cfg.GendaymtxBin, ok = bin.(string)
			if !ok {
				msg = "renderer.gendaymtx_bin: is not a string"
				return msg, false
			}
		}

		weaFile, ok := getLeafValue(jsonTable, "renderer", "wea_file")
		if ok {
			cfg.WeaFile, ok = weaFile.(string)
			if !ok {
				msg = "renderer.wea_file: is not a string"
				return msg, false
			}
		}

		nproc, ok := getLeafValue(jsonTable, "renderer", "nproc")
		if ok { // Default to a single render thread if this field is missing
			value, ok := nproc.(float64)
			if !ok {
				msg = "renderer.nproc: is not a float64"
				return msg, false
			}
			cfg.NProc = int(value)
		}

		args, ok := getLeafValue(jsonTable, "renderer", "rfluxmtx_args")
		if ok {
			cfg.RfluxmtxArgs, ok = asStringSlice(args)
			if !ok {
				msg = "renderer.rfluxmtx_args: is not an array of strings"
				return msg, false
			}
		}

		args, ok = getLeafValue(jsonTable, "renderer", "gendaymtx_args")
		if ok {
			cfg.GendaymtxArgs, ok = asStringSlice(args)
			if !ok {
				msg = "renderer.gendaymtx_args: is not an array of strings"
				return msg, false
			}
		}
	}

	return msg, true
}

// RunConfig is the fully resolved run-parameter file. Every tolerance,
// conversion constant, and path the pipeline uses lives here; the stage code
// never carries its own literals.
type RunConfig struct {
	GridGiven         bool
	TransformGiven    bool
	MeasurementsGiven bool
	RendererGiven     bool

	// grid group
	GridVariant string // "spacing_fit" or "counted"
	Region      daylight.GridRegion
	WorkPlaneZ  float64
	PointsFile  string
	WallOffset  float64   // spacing_fit variant
	Candidates  []float64 // spacing_fit variant
	NX, NY      int       // counted variant
	GridSpacing float64
	GridOffsetX float64
	GridOffsetY float64

	// transform group
	DCMatrixFile    string
	SkyMatrixFile   string
	AnnualFile      string
	Timesteps       int
	Sensors         int
	PhotopicWeights [3]float64
	ClampNegative   bool

	// measurements group
	MeasurementDir     string
	SessionMonth       int
	SessionDay         int
	SessionHours       []int
	DeviceColumns      []string
	GridLines          int
	ReverseOddHours    bool
	ReverseColumns     bool
	ClockOffsetMinutes float64
	ToleranceMinutes   float64
	UnitScale          float64
	DeviceMap          map[string]int
	ReportDir          string

	// renderer group
	RfluxmtxBin   string
	GendaymtxBin  string
	RfluxmtxArgs  []string
	GendaymtxArgs []string
	WeaFile       string
	NProc         int
}

func newRunConfig() *RunConfig {
	return &RunConfig{
		WorkPlaneZ:      0.75,
		WallOffset:      0.1,
		Timesteps:       daylight.HoursPerYear,
		PhotopicWeights: daylight.DefaultPhotopicWeights,
		ClampNegative:   true,
		UnitScale:       daylight.KluxToLux,
		ReportDir:       "results",
		RfluxmtxBin:     "rfluxmtx",
		GendaymtxBin:    "gendaymtx",
		NProc:           1,
	}
}

// AlignConfig converts the measurement settings to the aligner's form.
func (cfg *RunConfig) AlignConfig() daylight.AlignConfig {
	return daylight.AlignConfig{
		ClockOffset: time.Duration(cfg.ClockOffsetMinutes * float64(time.Minute)),
		Tolerance:   time.Duration(cfg.ToleranceMinutes * float64(time.Minute)),
		UnitScale:   cfg.UnitScale,
	}
}

// Session describes the measurement campaign day in the aligner's form.
func (cfg *RunConfig) Session() daylight.HourGridSession {
	return daylight.HourGridSession{
		Dir:             cfg.MeasurementDir,
		Month:           time.Month(cfg.SessionMonth),
		Day:             cfg.SessionDay,
		Hours:           cfg.SessionHours,
		Columns:         cfg.DeviceColumns,
		Lines:           cfg.GridLines,
		ReverseOddHours: cfg.ReverseOddHours,
	}
}

// Mapping builds the device-to-sensor mapping: the campaign grid layout first,
// then any explicit device_map entries on top.
func (cfg *RunConfig) Mapping() daylight.SensorMapping {
	m := daylight.SensorMapping{}
	if cfg.GridLines > 0 && len(cfg.DeviceColumns) > 0 {
		m = daylight.MappingFromGrid(cfg.GridLines, cfg.DeviceColumns, cfg.ReverseColumns)
	}
	for device, idx := range cfg.DeviceMap {
		m[device] = daylight.SensorIndex(idx)
	}
	return m
}
