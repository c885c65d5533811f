package daylight

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// HoursPerYear is the number of rows in an annual matrix for the non-leap
// reference year.
const HoursPerYear = 8760

// TregenzaPatches is the sky-dome subdivision used by the two-phase runs
// here: 145 Tregenza patches plus the ground patch.
const TregenzaPatches = 146

// RGBMatrix holds the three color channels of a Radiance matrix, in R, G, B
// order. All channels share the same dimensions.
type RGBMatrix [3]*mat.Dense

// Dims returns the per-channel dimensions.
func (m RGBMatrix) Dims() (rows, cols int) { return m[0].Dims() }

// headerPrefixes marks the metadata lines emitted by the Radiance tools
// ahead of the numeric data. Each tool echoes its own command line into the
// header, so the generator names appear alongside the NROWS=/NCOLS= keywords.
var headerPrefixes = []string{
	"#", "NCOMP", "NROWS", "NCOLS", "FORMAT", "SOFTWARE",
	"CAPDATE", "GMT", "rmtxop", "dctimestep", "rfluxmtx",
	"gendaymtx", "oconv", "Applied", "Transposed", "LATLONG",
}

func isHeaderLine(line string) bool {
	for _, prefix := range headerPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// matrixHeader carries the dimensions declared by a matrix file. A value of
// zero means the file did not declare that dimension.
type matrixHeader struct {
	rows, cols, comp int
}

// scanMatrixFile splits a matrix file into its declared header and raw data
// lines. dataLines keeps the original 1-based line number of every data row
// so parse errors can name the offending line.
type dataLine struct {
	no   int
	text string
}

func scanMatrixFile(filename string) (hdr matrixHeader, data []dataLine, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return hdr, nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	inHeader := true
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if inHeader {
			if trimmed == "" {
				continue
			}
			if isHeaderLine(line) {
				switch {
				case strings.HasPrefix(line, "NROWS="):
					hdr.rows, _ = strconv.Atoi(strings.TrimPrefix(trimmed, "NROWS="))
				case strings.HasPrefix(line, "NCOLS="):
					hdr.cols, _ = strconv.Atoi(strings.TrimPrefix(trimmed, "NCOLS="))
				case strings.HasPrefix(line, "NCOMP="):
					hdr.comp, _ = strconv.Atoi(strings.TrimPrefix(trimmed, "NCOMP="))
				}
				continue
			}
			inHeader = false
		}
		if trimmed == "" {
			continue
		}
		data = append(data, dataLine{no: lineNo, text: trimmed})
	}
	if err := scanner.Err(); err != nil {
		return hdr, nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return hdr, data, nil
}

func parseRow(filename string, dl dataLine, want int) ([]float64, error) {
	fields := strings.Fields(dl.text)
	if len(fields) != want {
		return nil, fmt.Errorf("%s:%d: expected %d values per row, got %d",
			filename, dl.no, want, len(fields))
	}
	row := make([]float64, want)
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: bad value %q: %w", filename, dl.no, field, err)
		}
		row[i] = v
	}
	return row, nil
}

// LoadMatrixFile loads a single-component matrix whose dimensions are
// declared in its own header (NROWS=/NCOLS=). A declared NCOMP other than 1
// is a format error; use LoadRGBMatrixFile for three-component files.
func LoadMatrixFile(filename string) (*mat.Dense, error) {
	hdr, data, err := scanMatrixFile(filename)
	if err != nil {
		return nil, err
	}
	if hdr.rows == 0 || hdr.cols == 0 {
		return nil, fmt.Errorf("%s: header does not declare NROWS/NCOLS", filename)
	}
	if hdr.comp > 1 {
		return nil, fmt.Errorf("%s: NCOMP=%d, want a single-component matrix", filename, hdr.comp)
	}
	return loadScalar(filename, data, hdr.rows, hdr.cols)
}

// LoadAnnualFile loads a scalar matrix whose shape the caller knows
// independently, such as the raw annual illuminance output (8760 rows by
// sensor-count columns). Header lines, if any, are skipped; the data must
// match the given shape exactly.
func LoadAnnualFile(filename string, rows, cols int) (*mat.Dense, error) {
	hdr, data, err := scanMatrixFile(filename)
	if err != nil {
		return nil, err
	}
	if hdr.rows != 0 && hdr.rows != rows {
		return nil, fmt.Errorf("%s: header declares %d rows, caller expects %d", filename, hdr.rows, rows)
	}
	if hdr.cols != 0 && hdr.cols != cols {
		return nil, fmt.Errorf("%s: header declares %d columns, caller expects %d", filename, hdr.cols, cols)
	}
	return loadScalar(filename, data, rows, cols)
}

func loadScalar(filename string, data []dataLine, rows, cols int) (*mat.Dense, error) {
	if len(data) != rows {
		return nil, fmt.Errorf("%s: expected %d data rows, got %d", filename, rows, len(data))
	}
	m := mat.NewDense(rows, cols, nil)
	for i, dl := range data {
		row, err := parseRow(filename, dl, cols)
		if err != nil {
			return nil, err
		}
		m.SetRow(i, row)
	}
	return m, nil
}

// LoadRGBMatrixFile loads a three-component Radiance matrix (daylight
// coefficients or a sky matrix). Each data row carries NCOLS triplets of
// R G B values. Dimensions come from the file header.
func LoadRGBMatrixFile(filename string) (RGBMatrix, error) {
	hdr, data, err := scanMatrixFile(filename)
	if err != nil {
		return RGBMatrix{}, err
	}
	if hdr.rows == 0 || hdr.cols == 0 {
		return RGBMatrix{}, fmt.Errorf("%s: header does not declare NROWS/NCOLS", filename)
	}
	if hdr.comp != 0 && hdr.comp != 3 {
		return RGBMatrix{}, fmt.Errorf("%s: NCOMP=%d, want 3 components", filename, hdr.comp)
	}
	if len(data) != hdr.rows {
		return RGBMatrix{}, fmt.Errorf("%s: expected %d data rows, got %d", filename, hdr.rows, len(data))
	}

	var rgb RGBMatrix
	for c := range rgb {
		rgb[c] = mat.NewDense(hdr.rows, hdr.cols, nil)
	}
	for i, dl := range data {
		row, err := parseRow(filename, dl, hdr.cols*3)
		if err != nil {
			return RGBMatrix{}, err
		}
		for j := 0; j < hdr.cols; j++ {
			for c := 0; c < 3; c++ {
				rgb[c].Set(i, j, row[j*3+c])
			}
		}
	}
	return rgb, nil
}

// WriteMatrixFile writes a scalar matrix with a minimal Radiance-style
// header. Values are printed with full precision so a reload through
// LoadMatrixFile recovers them exactly.
func WriteMatrixFile(filename string, m *mat.Dense) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	rows, cols := m.Dims()
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "NROWS=%d\nNCOLS=%d\nNCOMP=1\nFORMAT=ascii\n\n", rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if j > 0 {
				if err = w.WriteByte(' '); err != nil {
					return fmt.Errorf("failed to write %s: %w", filename, err)
				}
			}
			if _, err = w.WriteString(strconv.FormatFloat(m.At(i, j), 'g', -1, 64)); err != nil {
				return fmt.Errorf("failed to write %s: %w", filename, err)
			}
		}
		if err = w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
	}
	return w.Flush()
}

// ErrShapeMismatch reports matrices whose dimensions are incompatible for
// the requested operation.
var ErrShapeMismatch = errors.New("matrix shape mismatch")
