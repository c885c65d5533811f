package daylight

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestCompareRecords(t *testing.T) {
	annual := mat.NewDense(3, 2, []float64{
		10, 20,
		30, 40,
		50, 60,
	})
	aligned := []AlignedSeries{
		{Device: "a", Sensor: 0, Samples: []AlignedSample{{Hour: 0, Lux: 12}, {Hour: 2, Lux: 48}}},
		{Device: "b", Sensor: 1, Samples: []AlignedSample{{Hour: 1, Lux: 40}}},
	}

	records, err := Compare(annual, aligned)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 10.0, records[0].Simulated)
	assert.Equal(t, 12.0, records[0].Measured)
	assert.Equal(t, -2.0, records[0].Diff())
	assert.Equal(t, 2.0, records[0].AbsDiff())
	assert.Equal(t, 40.0, records[2].Simulated)
}

func TestCompareShapeErrors(t *testing.T) {
	annual := mat.NewDense(2, 1, []float64{1, 2})

	_, err := Compare(annual, []AlignedSeries{{Device: "a", Sensor: 5}})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Compare(annual, []AlignedSeries{
		{Device: "a", Sensor: 0, Samples: []AlignedSample{{Hour: 2, Lux: 1}}},
	})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestSummarizeSelfComparison(t *testing.T) {
	records := []ComparisonRecord{
		{Sensor: 0, Hour: 0, Simulated: 100, Measured: 100},
		{Sensor: 0, Hour: 1, Simulated: 250, Measured: 250},
		{Sensor: 0, Hour: 2, Simulated: 775, Measured: 775},
	}

	s, err := Summarize(records)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count)
	assert.Zero(t, s.MBE)
	assert.Zero(t, s.RMSE, "RMSE of a series against itself must be exactly 0")
	assert.True(t, s.MAPEDefined)
	assert.Zero(t, s.MAPE)
	assert.True(t, s.CorrelationDefined)
	assert.InDelta(t, 1.0, s.Correlation, 1e-12)
}

func TestSummarizeHandComputed(t *testing.T) {
	records := []ComparisonRecord{
		{Simulated: 300, Measured: 280},
		{Simulated: 600, Measured: 610},
	}

	s, err := Summarize(records)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Count)
	assert.InDelta(t, 5.0, s.MBE, 1e-12)                // (20 - 10) / 2
	assert.InDelta(t, math.Sqrt(250), s.RMSE, 1e-12)    // sqrt((400 + 100) / 2)
	assert.InDelta(t, math.Sqrt(450), s.StdDev, 1e-12)  // sample stddev of {20, -10}
	mape := (20.0/280 + 10.0/610) / 2
	require.True(t, s.MAPEDefined)
	assert.InDelta(t, mape, s.MAPE, 1e-12)
	assert.Equal(t, 2, s.MAPEPairs)

	require.True(t, s.RelativeDefined)
	assert.InDelta(t, 445.0, s.MeasuredMean, 1e-12)
	assert.InDelta(t, 100*5.0/445.0, s.MBEPercent, 1e-12)
	assert.InDelta(t, 100*math.Sqrt(250)/445.0, s.CVRMSE, 1e-12)
}

func TestSummarizeMAPEExcludesZeroMeasured(t *testing.T) {
	records := []ComparisonRecord{
		{Simulated: 100, Measured: 0}, // nighttime reading
		{Simulated: 100, Measured: 0},
		{Simulated: 110, Measured: 100},
	}

	s, err := Summarize(records)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count, "zero-measured pairs still count toward MBE/RMSE")
	assert.Equal(t, 1, s.MAPEPairs)
	assert.Equal(t, 2, s.MAPEExcluded, "excluded pairs are counted, not silently dropped")
	require.True(t, s.MAPEDefined)
	assert.InDelta(t, 0.1, s.MAPE, 1e-12)

	allZero := []ComparisonRecord{{Simulated: 5, Measured: 0}}
	s, err = Summarize(allZero)
	require.NoError(t, err)
	assert.False(t, s.MAPEDefined)
	assert.Equal(t, 1, s.MAPEExcluded)
}

func TestSummarizeNoPairs(t *testing.T) {
	_, err := Summarize(nil)
	assert.ErrorIs(t, err, ErrNoPairs)
}

func TestPearsonInsufficientData(t *testing.T) {
	_, err := Pearson(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = Pearson([]ComparisonRecord{{Simulated: 1, Measured: 1}})
	assert.ErrorIs(t, err, ErrInsufficientData)

	// A constant series has undefined correlation too.
	_, err = Pearson([]ComparisonRecord{
		{Simulated: 5, Measured: 1},
		{Simulated: 5, Measured: 2},
	})
	assert.ErrorIs(t, err, ErrInsufficientData)

	s, err := Summarize([]ComparisonRecord{{Simulated: 1, Measured: 1}})
	require.NoError(t, err)
	assert.False(t, s.CorrelationDefined, "a single pair must not report a correlation value")
}

func TestSummarizeGroups(t *testing.T) {
	records := []ComparisonRecord{
		{Sensor: 1, Hour: 8, Simulated: 100, Measured: 90},
		{Sensor: 1, Hour: 33, Simulated: 200, Measured: 210}, // day 1
		{Sensor: 0, Hour: 8, Simulated: 50, Measured: 50},
	}

	bySensor := SummarizeBySensor(records)
	require.Len(t, bySensor, 2)
	assert.Equal(t, SensorIndex(0), bySensor[0].Sensor)
	assert.Equal(t, 1, bySensor[0].Count)
	assert.Equal(t, SensorIndex(1), bySensor[1].Sensor)
	assert.Equal(t, 2, bySensor[1].Count)

	byDay := SummarizeByDay(records)
	require.Len(t, byDay, 2)
	assert.Equal(t, 0, byDay[0].Window)
	assert.Equal(t, 2, byDay[0].Count)
	assert.Equal(t, 1, byDay[1].Window)

	byHour := SummarizeByHour(records)
	require.Len(t, byHour, 2)
	assert.Equal(t, 8, byHour[0].Window)
	assert.InDelta(t, 5.0, byHour[0].MBE, 1e-12) // (10 + 0) / 2
}
