// Package daylight implements the annual daylight-coefficient evaluation and
// validation pipeline: sensor-grid generation for a Radiance two-phase
// simulation, loading of the renderer's matrix files, the daylight-coefficient
// by sky-matrix transform with photopic conversion, alignment of field
// luxmeter measurements onto the hourly simulation grid, and error metrics
// between simulated and measured illuminance.
package daylight

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// SensorIndex identifies a sensor by its position in the points file.
// Line order in the points file defines the index (0-based), and the same
// order is assumed for the columns of the daylight-coefficient and annual
// illuminance matrices.
type SensorIndex int

// SensorPoint is one work-plane sensor: a position in meters and a unit
// normal direction. Grids generated here always point the normal up.
type SensorPoint struct {
	X, Y, Z    float64 // position (m)
	DX, DY, DZ float64 // normal direction
}

// GridRegion is the rectangular floor region covered by a sensor grid.
type GridRegion struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Width returns the X extent of the region.
func (r GridRegion) Width() float64 { return r.MaxX - r.MinX }

// Depth returns the Y extent of the region.
func (r GridRegion) Depth() float64 { return r.MaxY - r.MinY }

// GridInfo describes the grid that a generator settled on.
type GridInfo struct {
	NX, NY             int     // columns of sensors along X and Y
	SpacingX, SpacingY float64 // actual spacing used (m)
	NominalSpacing     float64 // candidate spacing chosen (spacing-fit grids)
}

// Count returns the total number of sensors in the grid.
func (g GridInfo) Count() int { return g.NX * g.NY }

// SpacingFitGrid covers a region, shrunk by a uniform wall offset, with an
// approximately equidistant grid. For each candidate nominal spacing s it
// computes nx = floor(width/s)+1 sensors stretched to fit exactly, and keeps
// the candidate whose actual X and Y spacings come out closest to equal.
type SpacingFitGrid struct {
	Region     GridRegion
	WallOffset float64   // uniform clearance from every wall (m)
	Candidates []float64 // nominal spacings to try (m)
	WorkPlaneZ float64   // work-plane height (m)
}

// CountedGrid places an explicit nx-by-ny grid with uniform spacing, offset
// from the region's minimum corner. This is the layout of the physical
// luxmeter measurement campaign, where sensor counts and spacing are fixed
// by the instrument placement rather than derived from the room size.
type CountedGrid struct {
	Region     GridRegion
	NX, NY     int     // sensors along X and Y
	Spacing    float64 // uniform spacing in both directions (m)
	OffsetX    float64 // clearance from the MinX wall to the first column (m)
	OffsetY    float64 // clearance from the MinY wall to the first row (m)
	WorkPlaneZ float64
}

// ErrDegenerateRegion reports a region whose usable area is empty.
var ErrDegenerateRegion = errors.New("degenerate grid region")

// Generate emits the sensor points in index order together with the grid
// dimensions it settled on. Identical inputs always produce identical output.
func (g SpacingFitGrid) Generate() ([]SensorPoint, GridInfo, error) {
	if len(g.Candidates) == 0 {
		return nil, GridInfo{}, errors.New("spacing-fit grid: no candidate spacings given")
	}
	for _, s := range g.Candidates {
		if s <= 0 {
			return nil, GridInfo{}, fmt.Errorf("spacing-fit grid: non-positive candidate spacing %g", s)
		}
	}

	minX := g.Region.MinX + g.WallOffset
	maxX := g.Region.MaxX - g.WallOffset
	minY := g.Region.MinY + g.WallOffset
	maxY := g.Region.MaxY - g.WallOffset

	width := maxX - minX
	depth := maxY - minY
	if width <= 0 || depth <= 0 {
		return nil, GridInfo{}, fmt.Errorf("%w: %.3f x %.3f m after %.2f m wall offset",
			ErrDegenerateRegion, width, depth, g.WallOffset)
	}

	best := GridInfo{}
	bestScore := math.Inf(1)
	for _, s := range g.Candidates {
		nx := int(width/s) + 1
		ny := int(depth/s) + 1
		ax := width
		if nx > 1 {
			ax = width / float64(nx-1)
		}
		ay := depth
		if ny > 1 {
			ay = depth / float64(ny-1)
		}
		// Prefer the candidate whose stretched X and Y spacings match best.
		score := math.Abs(ax - ay)
		if score < bestScore {
			bestScore = score
			best = GridInfo{NX: nx, NY: ny, SpacingX: ax, SpacingY: ay, NominalSpacing: s}
		}
	}

	return emitGrid(minX, minY, best, g.WorkPlaneZ), best, nil
}

// Generate emits the sensor points in index order. The far-side clearances
// are derived from the near-side offsets; a grid that would extend past the
// region is a configuration error.
func (g CountedGrid) Generate() ([]SensorPoint, GridInfo, error) {
	if g.NX < 1 || g.NY < 1 {
		return nil, GridInfo{}, fmt.Errorf("counted grid: invalid sensor counts %d x %d", g.NX, g.NY)
	}
	if g.Spacing <= 0 {
		return nil, GridInfo{}, fmt.Errorf("counted grid: non-positive spacing %g", g.Spacing)
	}
	if g.Region.Width() <= 0 || g.Region.Depth() <= 0 {
		return nil, GridInfo{}, fmt.Errorf("%w: %.3f x %.3f m",
			ErrDegenerateRegion, g.Region.Width(), g.Region.Depth())
	}

	cx, cy := g.FarClearance()
	if cx < 0 || cy < 0 {
		return nil, GridInfo{}, fmt.Errorf("counted grid: %d x %d sensors at %.2f m spacing extend %.3f / %.3f m past the region",
			g.NX, g.NY, g.Spacing, -cx, -cy)
	}

	info := GridInfo{NX: g.NX, NY: g.NY, SpacingX: g.Spacing, SpacingY: g.Spacing, NominalSpacing: g.Spacing}
	return emitGrid(g.Region.MinX+g.OffsetX, g.Region.MinY+g.OffsetY, info, g.WorkPlaneZ), info, nil
}

// FarClearance returns the clearance left between the last sensor column/row
// and the MaxX/MaxY walls, for verification against the measured layout.
func (g CountedGrid) FarClearance() (cx, cy float64) {
	endX := g.Region.MinX + g.OffsetX + float64(g.NX-1)*g.Spacing
	endY := g.Region.MinY + g.OffsetY + float64(g.NY-1)*g.Spacing
	return g.Region.MaxX - endX, g.Region.MaxY - endY
}

// emitGrid walks X ascending in the outer loop and Y ascending in the inner
// loop, so sensor index = ix*NY + iy. This order is the contract between the
// points file, the renderer's matrix columns, and the measurement mapping.
func emitGrid(startX, startY float64, info GridInfo, z float64) []SensorPoint {
	pts := make([]SensorPoint, 0, info.Count())
	for ix := 0; ix < info.NX; ix++ {
		x := startX + float64(ix)*info.SpacingX
		for iy := 0; iy < info.NY; iy++ {
			y := startY + float64(iy)*info.SpacingY
			pts = append(pts, SensorPoint{X: x, Y: y, Z: z, DX: 0, DY: 0, DZ: 1})
		}
	}
	return pts
}

// WritePointsFile writes the sensor points in the Radiance sensor-file
// format: one line per sensor, `x y z dx dy dz`, line order = sensor index.
func WritePointsFile(filename string, pts []SensorPoint) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	for _, p := range pts {
		_, err = fmt.Fprintf(w, "%.6f %.6f %.4f %g %g %g\n", p.X, p.Y, p.Z, p.DX, p.DY, p.DZ)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}
	return w.Flush()
}

// ReadPointsFile loads a sensor file back into memory. The slice index of
// each returned point is its SensorIndex.
func ReadPointsFile(filename string) (pts []SensorPoint, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 6 {
			return nil, fmt.Errorf("%s:%d: expected 6 fields, got %d", filename, lineNo, len(fields))
		}
		var v [6]float64
		for i, field := range fields {
			v[i], err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: bad value %q: %w", filename, lineNo, field, err)
			}
		}
		pts = append(pts, SensorPoint{X: v[0], Y: v[1], Z: v[2], DX: v[3], DY: v[4], DZ: v[5]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return pts, nil
}
