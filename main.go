package main

import (
	"fmt"
	"os"
	"time"

	"github.com/edificio-ier/daylightval/daylight"
	"gonum.org/v1/gonum/mat"
)

// !!!!! This MUST match the version given in the run configuration notes !!!!!
const version = "1_0_0"

const usage = `Usage: daylightval <command> <parameter-file>

Commands:
  grid       generate the sensor point grid and write the points file
  dcmtx      run rfluxmtx to compute the daylight-coefficient matrix
  skymtx     run gendaymtx to compute the annual sky matrix
  transform  combine the matrices into annual illuminance (lux)
  compare    align the luxmeter campaign and compute error metrics
  run        all of the above, in order`

func main() {
	programStart := time.Now()

	args := os.Args
	if len(args) != 3 {
		fmt.Println("\n\tWrong number of arguments.\n\n" + usage)
		os.Exit(1)
	}
	command := args[1]
	path := args[2]

	cfg, err := loadRunConfig(path)
	if err != nil {
		fmt.Println(fmt.Errorf("\n\tParameter file problem: %w", err))
		os.Exit(2)
	}

	fmt.Printf("\nVersion %s\n\n", version)

	switch command {
	case "grid":
		if _, _, err := gridStage(cfg); err != nil {
			fmt.Println(fmt.Errorf("\n\tGrid stage failed: %w", err))
			os.Exit(3)
		}

	case "dcmtx":
		if err := dcmtxStage(cfg); err != nil {
			fmt.Println(fmt.Errorf("\n\tDaylight-coefficient stage failed: %w", err))
			os.Exit(4)
		}

	case "skymtx":
		if err := skymtxStage(cfg); err != nil {
			fmt.Println(fmt.Errorf("\n\tSky matrix stage failed: %w", err))
			os.Exit(5)
		}

	case "transform":
		if _, err := transformStage(cfg); err != nil {
			fmt.Println(fmt.Errorf("\n\tTransform stage failed: %w", err))
			os.Exit(6)
		}

	case "compare":
		annual, err := loadAnnual(cfg)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tCompare stage failed: %w", err))
			os.Exit(7)
		}
		if err := compareStage(cfg, annual); err != nil {
			fmt.Println(fmt.Errorf("\n\tCompare stage failed: %w", err))
			os.Exit(7)
		}

	case "run":
		if _, _, err := gridStage(cfg); err != nil {
			fmt.Println(fmt.Errorf("\n\tGrid stage failed: %w", err))
			os.Exit(3)
		}
		if cfg.RendererGiven {
			if err := dcmtxStage(cfg); err != nil {
				fmt.Println(fmt.Errorf("\n\tDaylight-coefficient stage failed: %w", err))
				os.Exit(4)
			}
			if err := skymtxStage(cfg); err != nil {
				fmt.Println(fmt.Errorf("\n\tSky matrix stage failed: %w", err))
				os.Exit(5)
			}
		}
		annual, err := transformStage(cfg)
		if err != nil {
			fmt.Println(fmt.Errorf("\n\tTransform stage failed: %w", err))
			os.Exit(6)
		}
		if cfg.MeasurementsGiven {
			if err := compareStage(cfg, annual); err != nil {
				fmt.Println(fmt.Errorf("\n\tCompare stage failed: %w", err))
				os.Exit(7)
			}
		}

	default:
		fmt.Printf("\n\tUnknown command %q.\n\n%s\n", command, usage)
		os.Exit(1)
	}

	fmt.Printf("\nTotal program run time is %s\n", time.Since(programStart))
}

// buildGrid instantiates whichever grid variant the parameter file selected.
func buildGrid(cfg *RunConfig) ([]daylight.SensorPoint, daylight.GridInfo, error) {
	if !cfg.GridGiven {
		return nil, daylight.GridInfo{}, fmt.Errorf("no grid group in the parameter file")
	}
	switch cfg.GridVariant {
	case "spacing_fit":
		g := daylight.SpacingFitGrid{
			Region:     cfg.Region,
			WallOffset: cfg.WallOffset,
			Candidates: cfg.Candidates,
			WorkPlaneZ: cfg.WorkPlaneZ,
		}
		return g.Generate()
	case "counted":
		g := daylight.CountedGrid{
			Region:     cfg.Region,
			NX:         cfg.NX,
			NY:         cfg.NY,
			Spacing:    cfg.GridSpacing,
			OffsetX:    cfg.GridOffsetX,
			OffsetY:    cfg.GridOffsetY,
			WorkPlaneZ: cfg.WorkPlaneZ,
		}
		pts, info, err := g.Generate()
		if err == nil {
			cx, cy := g.FarClearance()
			fmt.Printf("Clearance to the far walls is %0.2f m (x) and %0.2f m (y)\n", cx, cy)
		}
		return pts, info, err
	}
	return nil, daylight.GridInfo{}, fmt.Errorf("unknown grid variant %q", cfg.GridVariant)
}

func gridStage(cfg *RunConfig) ([]daylight.SensorPoint, daylight.GridInfo, error) {
	pts, info, err := buildGrid(cfg)
	if err != nil {
		return nil, info, err
	}
	fmt.Printf("Grid is %d x %d = %d sensors at %0.3f m nominal spacing (%0.4f x %0.4f actual)\n",
		info.NX, info.NY, info.Count(), info.NominalSpacing, info.SpacingX, info.SpacingY)

	if err := daylight.WritePointsFile(cfg.PointsFile, pts); err != nil {
		return nil, info, err
	}
	fmt.Printf("Wrote %d sensor points to %s\n", len(pts), cfg.PointsFile)
	if cfg.Sensors == 0 {
		cfg.Sensors = info.Count()
	}
	return pts, info, nil
}

func dcmtxStage(cfg *RunConfig) error {
	start := time.Now()
	if err := generateDCMatrix(cfg); err != nil {
		return err
	}
	fmt.Printf("rfluxmtx run took %s\n", time.Since(start))
	return nil
}

func skymtxStage(cfg *RunConfig) error {
	start := time.Now()
	if err := generateSkyMatrix(cfg); err != nil {
		return err
	}
	fmt.Printf("gendaymtx run took %s\n", time.Since(start))
	return nil
}

func transformStage(cfg *RunConfig) (*mat.Dense, error) {
	if cfg.DCMatrixFile == "" || cfg.SkyMatrixFile == "" {
		return nil, fmt.Errorf("transform.dc_matrix_file and transform.sky_matrix_file are required")
	}

	start := time.Now()
	annual, negatives, err := daylight.ComputeAnnual(
		cfg.DCMatrixFile, cfg.SkyMatrixFile, cfg.Timesteps, cfg.PhotopicWeights, cfg.ClampNegative)
	if err != nil {
		return nil, err
	}
	timesteps, sensors := annual.Dims()
	fmt.Printf("Annual illuminance is %d timesteps x %d sensors, computed in %s\n",
		timesteps, sensors, time.Since(start))
	if negatives > 0 {
		if cfg.ClampNegative {
			fmt.Printf("Clamped %d negative illuminance cells to zero\n", negatives)
		} else {
			fmt.Printf("Warning: %d negative illuminance cells left in place\n", negatives)
		}
	}

	if cfg.AnnualFile != "" {
		if err := daylight.WriteMatrixFile(cfg.AnnualFile, annual); err != nil {
			return nil, err
		}
		fmt.Printf("Wrote annual illuminance to %s\n", cfg.AnnualFile)
	}
	return annual, nil
}

// loadAnnual reads a previously computed annual illuminance file for the
// standalone compare command.
func loadAnnual(cfg *RunConfig) (*mat.Dense, error) {
	if cfg.AnnualFile == "" {
		return nil, fmt.Errorf("transform.annual_file is required")
	}
	if cfg.Sensors <= 0 {
		return nil, fmt.Errorf("transform.sensors (or a counted grid) is required to shape %s", cfg.AnnualFile)
	}
	return daylight.LoadAnnualFile(cfg.AnnualFile, cfg.Timesteps, cfg.Sensors)
}

// busiestHour picks the matched hour with the most sensor pairs, the best
// populated frame for a field heatmap.
func busiestHour(records []daylight.ComparisonRecord) (int, bool) {
	counts := map[int]int{}
	best, bestCount := 0, 0
	for _, r := range records {
		counts[r.Hour]++
		if counts[r.Hour] > bestCount {
			best, bestCount = r.Hour, counts[r.Hour]
		}
	}
	return best, bestCount > 0
}

func compareStage(cfg *RunConfig, annual *mat.Dense) error {
	if !cfg.MeasurementsGiven {
		return fmt.Errorf("no measurements group in the parameter file")
	}

	series, err := cfg.Session().Load()
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d measurement series from %s\n", len(series), cfg.MeasurementDir)

	res, err := daylight.CompareAnnual(annual, series, cfg.Mapping(), cfg.AlignConfig())
	if err != nil {
		return err
	}
	for _, device := range res.Unmapped {
		fmt.Printf("Warning: device %q has no sensor mapping and was skipped\n", device)
	}

	fmt.Println()
	printSummary(os.Stdout, res)

	if err := writeReports(cfg.ReportDir, res); err != nil {
		return err
	}
	fmt.Printf("\nWrote report tables to %s\n", cfg.ReportDir)

	if err := MakeScatterPlot(cfg.ReportDir+"/scatter.png", res.Records); err != nil {
		return err
	}
	if err := MakeHourlyProfilePlot(cfg.ReportDir+"/hourly_profile.png", res.Records); err != nil {
		return err
	}
	// The error heatmap needs the sensor positions, which only the grid
	// group can supply.
	if cfg.GridGiven {
		pts, info, err := buildGrid(cfg)
		if err != nil {
			return err
		}
		if err := MakeErrorHeatmap(cfg.ReportDir+"/error_heatmap.png", pts, info, res.Records); err != nil {
			return err
		}
		_, sensors := annual.Dims()
		if hour, ok := busiestHour(res.Records); ok && info.Count() == sensors {
			vals := make([]float64, info.Count())
			for s := range vals {
				vals[s] = annual.At(hour, s)
			}
			name := fmt.Sprintf("%s/illuminance_h%04d.png", cfg.ReportDir, hour)
			if err := MakeIlluminanceHeatmap(name, pts, info, vals, hour); err != nil {
				return err
			}
		}
	}
	fmt.Printf("Wrote plots to %s\n", cfg.ReportDir)
	return nil
}
