package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/edificio-ier/daylightval/daylight"
)

// External Radiance invocation. rfluxmtx computes the daylight-coefficient
// matrix for the sensor points and gendaymtx expands a .wea weather tape into
// an annual Tregenza sky matrix. Both tools write their matrix to stdout, so
// each run is redirected into the file the transform stage will read back.

func generateDCMatrix(cfg *RunConfig) error {
	pts, err := daylight.ReadPointsFile(cfg.PointsFile)
	if err != nil {
		return err
	}

	// -I+ asks for irradiance at the sensor origins; -y carries the sensor
	// count so the output header is annotated with the right NROWS.
	args := []string{"-I+", "-y", strconv.Itoa(len(pts)), "-n", strconv.Itoa(cfg.NProc)}
	args = append(args, cfg.RfluxmtxArgs...)

	return runRadianceTool(cfg.RfluxmtxBin, args, cfg.PointsFile, cfg.DCMatrixFile)
}

func generateSkyMatrix(cfg *RunConfig) error {
	if cfg.WeaFile == "" {
		return fmt.Errorf("renderer.wea_file is required to generate a sky matrix")
	}
	args := append([]string{}, cfg.GendaymtxArgs...)
	args = append(args, cfg.WeaFile)

	return runRadianceTool(cfg.GendaymtxBin, args, "", cfg.SkyMatrixFile)
}

// runRadianceTool runs one external tool with stdout redirected to outFile
// and, when stdinFile is non-empty, stdin fed from it. A non-zero exit aborts
// the pipeline with the tool's stderr attached to the error.
func runRadianceTool(bin string, args []string, stdinFile, outFile string) (err error) {
	if outFile == "" {
		return fmt.Errorf("no output file configured for %s", bin)
	}
	log.Printf("running: %s %s > %s", bin, strings.Join(args, " "), outFile)

	cmd := exec.Command(bin, args...)

	if stdinFile != "" {
		stdin, err := os.Open(stdinFile)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", stdinFile, err)
		}
		defer func() {
			_ = stdin.Close()
		}()
		cmd.Stdin = stdin
	}

	stdout, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outFile, err)
	}
	defer func() {
		if cerr := stdout.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", outFile, cerr)
		}
	}()
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s failed: %w\n%s", bin, err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%s failed: %w", bin, err)
	}
	// gendaymtx chats on stderr even on success; keep it visible.
	if stderr.Len() > 0 {
		log.Printf("%s: %s", bin, strings.TrimSpace(stderr.String()))
	}
	return nil
}
