package daylight

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DefaultPhotopicWeights converts an RGB irradiance triplet to photopic
// illuminance in lux: 179 lm/W luminous efficacy times the standard Radiance
// channel weights (0.265, 0.670, 0.065). These are configuration, not
// constants baked into the transform.
var DefaultPhotopicWeights = [3]float64{179 * 0.265, 179 * 0.670, 179 * 0.065}

// Illuminance applies the two-phase method: for each channel it multiplies
// the daylight-coefficient matrix (sensors x patches) by the transposed sky
// matrix (timesteps x patches), weights the per-channel results by the
// photopic vector, and returns the summed illuminance as a timesteps x
// sensors matrix in lux.
//
// Negative cells are physically invalid renderer output. When clampNegative
// is set they are clamped to zero; either way the count of negative cells is
// returned so the caller can log it. The patch counts of dc and sky must
// match, otherwise the transform is undefined and an ErrShapeMismatch is
// returned before any computation.
func Illuminance(dc, sky RGBMatrix, weights [3]float64, clampNegative bool) (*mat.Dense, int, error) {
	for c := 1; c < 3; c++ {
		if !sameDims(dc[0], dc[c]) {
			return nil, 0, fmt.Errorf("%w: daylight-coefficient channels differ in shape", ErrShapeMismatch)
		}
		if !sameDims(sky[0], sky[c]) {
			return nil, 0, fmt.Errorf("%w: sky-matrix channels differ in shape", ErrShapeMismatch)
		}
	}
	sensors, dcPatches := dc.Dims()
	timesteps, skyPatches := sky.Dims()
	if dcPatches != skyPatches {
		return nil, 0, fmt.Errorf("%w: daylight coefficients have %d sky patches, sky matrix has %d",
			ErrShapeMismatch, dcPatches, skyPatches)
	}

	// Per channel: (sensors x patches) x (patches x timesteps).
	var sum mat.Dense
	for c := 0; c < 3; c++ {
		var prod mat.Dense
		prod.Mul(dc[c], sky[c].T())
		prod.Scale(weights[c], &prod)
		if c == 0 {
			sum.CloneFrom(&prod)
		} else {
			sum.Add(&sum, &prod)
		}
	}

	out := mat.NewDense(timesteps, sensors, nil)
	negatives := 0
	for t := 0; t < timesteps; t++ {
		for s := 0; s < sensors; s++ {
			v := sum.At(s, t)
			if v < 0 {
				negatives++
				if clampNegative {
					v = 0
				}
			}
			out.Set(t, s, v)
		}
	}
	return out, negatives, nil
}

func sameDims(a, b *mat.Dense) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	return ar == br && ac == bc
}
