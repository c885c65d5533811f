package daylight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func zeros(rows, cols int) *mat.Dense { return mat.NewDense(rows, cols, nil) }

func TestIlluminanceHandComputed(t *testing.T) {
	// Identity daylight coefficients in the red channel only: each sensor
	// sees exactly one sky patch, so the output is the weighted sky value.
	dc := RGBMatrix{
		mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
		zeros(2, 2),
		zeros(2, 2),
	}
	sky := RGBMatrix{
		mat.NewDense(2, 2, []float64{1, 2, 3, 4}), // timesteps x patches
		zeros(2, 2),
		zeros(2, 2),
	}

	out, negatives, err := Illuminance(dc, sky, [3]float64{2, 1, 1}, true)
	require.NoError(t, err)
	assert.Zero(t, negatives)

	// out[t][s] = 2 * sky[t][s] for the identity coefficients.
	assert.Equal(t, 2.0, out.At(0, 0))
	assert.Equal(t, 4.0, out.At(0, 1))
	assert.Equal(t, 6.0, out.At(1, 0))
	assert.Equal(t, 8.0, out.At(1, 1))
}

func TestIlluminanceChannelWeighting(t *testing.T) {
	// One sensor, one patch, one timestep: the output is the dot product
	// of the photopic weights with the per-channel products.
	one := mat.NewDense(1, 1, []float64{1})
	dc := RGBMatrix{one, one, one}
	sky := RGBMatrix{
		mat.NewDense(1, 1, []float64{0.5}),
		mat.NewDense(1, 1, []float64{1.0}),
		mat.NewDense(1, 1, []float64{2.0}),
	}

	out, _, err := Illuminance(dc, sky, DefaultPhotopicWeights, true)
	require.NoError(t, err)
	want := 179 * (0.265*0.5 + 0.670*1.0 + 0.065*2.0)
	assert.InDelta(t, want, out.At(0, 0), 1e-9)
}

func TestIlluminanceShapeLaw(t *testing.T) {
	// Output rows == sky rows, output cols == daylight-coefficient rows.
	dc := RGBMatrix{zeros(5, 7), zeros(5, 7), zeros(5, 7)}
	sky := RGBMatrix{zeros(11, 7), zeros(11, 7), zeros(11, 7)}

	out, _, err := Illuminance(dc, sky, DefaultPhotopicWeights, true)
	require.NoError(t, err)
	rows, cols := out.Dims()
	assert.Equal(t, 11, rows)
	assert.Equal(t, 5, cols)
}

func TestIlluminancePatchMismatch(t *testing.T) {
	dc := RGBMatrix{zeros(2, 146), zeros(2, 146), zeros(2, 146)}
	sky := RGBMatrix{zeros(4, 145), zeros(4, 145), zeros(4, 145)}

	_, _, err := Illuminance(dc, sky, DefaultPhotopicWeights, true)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestIlluminanceNegativePolicy(t *testing.T) {
	dc := RGBMatrix{
		mat.NewDense(1, 1, []float64{1}),
		zeros(1, 1),
		zeros(1, 1),
	}
	sky := RGBMatrix{
		mat.NewDense(2, 1, []float64{-3, 5}),
		zeros(2, 1),
		zeros(2, 1),
	}

	out, negatives, err := Illuminance(dc, sky, [3]float64{1, 1, 1}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, negatives)
	assert.Equal(t, 0.0, out.At(0, 0), "negative cell must clamp to zero")
	assert.Equal(t, 5.0, out.At(1, 0))

	out, negatives, err = Illuminance(dc, sky, [3]float64{1, 1, 1}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, negatives, "negatives are counted even when not clamped")
	assert.Equal(t, -3.0, out.At(0, 0))
}
