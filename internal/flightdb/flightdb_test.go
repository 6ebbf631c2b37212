package flightdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sojez1/flightstate/internal/estimator"
	"github.com/sojez1/flightstate/internal/geom"
)

func openTestDB(t *testing.T) *FlightDB {
	t.Helper()
	db, err := NewFlightDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleState(x float64) estimator.ExternalizedState {
	return estimator.ExternalizedState{
		Position:   geom.Vec3{X: x, Y: 2 * x, Z: 0.5},
		Velocity:   geom.Vec3{X: 0.1},
		Attitude:   geom.Vec3{Z: 45},
		Quaternion: geom.IdentityQuat(),
	}
}

func TestStartAndEndRun(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun("bench", "hover test")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	require.NoError(t, db.EndRun(runID))

	runs, err := db.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunID)
	assert.Equal(t, "bench", runs[0].Label)
	assert.Equal(t, "hover test", runs[0].Notes)
}

func TestEndRun_Unknown(t *testing.T) {
	db := openTestDB(t)
	err := db.EndRun("no-such-run")
	assert.Error(t, err)
}

func TestRecordAndQueryEstimates(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun("replay", "")
	require.NoError(t, err)

	require.NoError(t, db.RecordEstimate(runID, 100, sampleState(1)))
	require.NoError(t, db.RecordEstimate(runID, 101, sampleState(2)))

	rows, err := db.QueryEstimates(runID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(100), rows[0].TMs)
	assert.Equal(t, 1.0, rows[0].Position.X)
	assert.Equal(t, 4.0, rows[1].Position.Y)
	assert.Equal(t, 45.0, rows[1].Attitude.Z)
}

func TestRecordEstimates_Batch(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun("replay", "")
	require.NoError(t, err)

	states := []estimator.ExternalizedState{sampleState(1), sampleState(2), sampleState(3)}
	require.NoError(t, db.RecordEstimates(runID, 500, states))

	rows, err := db.QueryEstimates(runID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(500), rows[0].TMs)
	assert.Equal(t, int64(502), rows[2].TMs)
	assert.Equal(t, 3.0, rows[2].Position.X)
}

func TestQueryEstimates_IsolatedPerRun(t *testing.T) {
	db := openTestDB(t)

	runA, err := db.StartRun("a", "")
	require.NoError(t, err)
	runB, err := db.StartRun("b", "")
	require.NoError(t, err)

	require.NoError(t, db.RecordEstimate(runA, 0, sampleState(1)))
	require.NoError(t, db.RecordEstimate(runB, 0, sampleState(9)))

	rows, err := db.QueryEstimates(runA)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.0, rows[0].Position.X)
}
