package estimator_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sojez1/flightstate/internal/calib"
	"github.com/sojez1/flightstate/internal/config"
	"github.com/sojez1/flightstate/internal/estimator"
	"github.com/sojez1/flightstate/internal/geom"
	"github.com/sojez1/flightstate/internal/kalman"
)

// End-to-end runs: a full loop with the real filter core, driven by
// synthetic noiseless measurements of a hovering vehicle. The estimate
// must converge to the true position from a deliberately wrong start.

var e2eAnchors = map[int]geom.Vec3{
	0: {X: -3, Y: -3, Z: 0},
	1: {X: 3, Y: -3, Z: 0},
	2: {X: 3, Y: 3, Z: 0},
	3: {X: -3, Y: 3, Z: 0},
	4: {X: -3, Y: -3, Z: 3},
	5: {X: 3, Y: -3, Z: 3},
	6: {X: 3, Y: 3, Z: 3},
	7: {X: -3, Y: 3, Z: 3},
}

func e2eConfig(t *testing.T, initial geom.Vec3) *config.TuningConfig {
	t.Helper()
	cfg := &config.TuningConfig{
		InitialX: &initial.X,
		InitialY: &initial.Y,
		InitialZ: &initial.Z,
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newE2ELoop(cfg *config.TuningConfig, ctx *calib.Context) (*estimator.Loop, *kalman.Core) {
	core := kalman.NewCore(kalman.ParamsFromTuning(cfg))
	return estimator.NewLoop(core, ctx, estimator.LoopConfigFromTuning(cfg)), core
}

// hoverIMU emits a 100 Hz stream of a motionless, level vehicle: 1 g
// straight up, zero body rates.
func hoverIMU(tMs int64) []estimator.Sample {
	return []estimator.Sample{
		&estimator.AccelerationSample{TimeMs: tMs, Acc: geom.Vec3{Z: 1}},
		&estimator.GyroscopeSample{TimeMs: tMs, Gyro: geom.Vec3{}},
	}
}

func runLoop(t *testing.T, l *estimator.Loop, samples []estimator.Sample, ticks int) estimator.ExternalizedState {
	t.Helper()
	_, st, err := l.Tick(samples...)
	require.NoError(t, err)
	for i := 1; i < ticks; i++ {
		_, st, err = l.Tick()
		require.NoError(t, err)
	}
	return st
}

func TestEndToEnd_TdoaConvergence(t *testing.T) {
	truth := geom.Vec3{} // hovering over the origin
	start := geom.Vec3{X: 0.5, Y: -0.4, Z: 0.3}

	cfg := e2eConfig(t, start)
	ctx := calib.NewContext(e2eAnchors, nil, nil)
	l, _ := newE2ELoop(cfg, ctx)

	var samples []estimator.Sample
	pair := 0
	for tMs := int64(0); tMs < 2000; tMs++ {
		if tMs%10 == 0 {
			samples = append(samples, hoverIMU(tMs)...)
		}
		if tMs%20 == 7 {
			a := pair % len(e2eAnchors)
			b := (pair + 1) % len(e2eAnchors)
			pair++
			dd := truth.Sub(e2eAnchors[b]).Norm() - truth.Sub(e2eAnchors[a]).Norm()
			samples = append(samples, &estimator.TdoaSample{
				TimeMs: tMs, AnchorIDA: a, AnchorIDB: b, DistanceDiff: dd,
			})
		}
	}

	final := runLoop(t, l, samples, 2000)

	assert.Less(t, final.Position.Sub(truth).Norm(), 0.4,
		"estimate should converge to the true position, got %+v", final.Position)
	assert.Less(t, final.Velocity.Norm(), 0.5)
	st := l.Stats()
	assert.Equal(t, int64(2000), st.Ticks)
	assert.Greater(t, st.TdoaUpdates, int64(50))
}

func e2eBasestations() (map[int]calib.BasestationPose, map[int]map[int]calib.SweepCalibration) {
	poses := map[int]calib.BasestationPose{
		// Looks down the world +x axis.
		0: {Origin: geom.Vec3{X: -3, Y: 0, Z: 1}, Rotation: geom.Identity33()},
		// Looks down the world −y axis.
		1: {Origin: geom.Vec3{X: 0, Y: 3, Z: 1}, Rotation: geom.Mat33{
			{0, 1, 0},
			{-1, 0, 0},
			{0, 0, 1},
		}},
	}
	calibs := map[int]map[int]calib.SweepCalibration{
		0: {
			0: {Phase: 0.0005, Tilt: -math.Pi / 6},
			1: {Phase: -0.0003, Tilt: math.Pi / 6},
		},
		1: {
			0: {Phase: 0.0002, Tilt: -math.Pi / 6},
			1: {Phase: -0.0004, Tilt: math.Pi / 6},
		},
	}
	return poses, calibs
}

// sweepSampleAt synthesizes the angle a base station would measure for a
// sensor at the vehicle centre. The centimetre-scale sensor offsets are
// below the tolerance of these runs.
func sweepSampleAt(truth geom.Vec3, tMs int64, sensorID, bsID, sweepID int,
	poses map[int]calib.BasestationPose, calibs map[int]map[int]calib.SweepCalibration) *estimator.SweepAngleSample {

	pose := poses[bsID]
	cal := calibs[bsID][sweepID]
	sr := pose.Rotation.Transpose().MulVec(truth.Sub(pose.Origin))
	angle := kalman.PredictSweepAngle(sr, math.Tan(cal.Tilt), cal.Phase)
	return &estimator.SweepAngleSample{
		TimeMs: tMs, SensorID: sensorID, BasestationID: bsID, SweepID: sweepID,
		T: cal.Tilt, MeasuredSweepAngle: angle,
	}
}

func TestEndToEnd_SweepAngleConvergence(t *testing.T) {
	truth := geom.Vec3{X: 0.8, Y: -1.2, Z: 0.5}

	cfg := e2eConfig(t, geom.Vec3{})
	poses, calibs := e2eBasestations()
	ctx := calib.NewContext(nil, poses, calibs)
	l, _ := newE2ELoop(cfg, ctx)

	var samples []estimator.Sample
	for tMs := int64(0); tMs < 2000; tMs++ {
		if tMs%10 == 0 {
			samples = append(samples, hoverIMU(tMs)...)
		}
		if tMs%20 == 3 {
			bsID := int(tMs/20) % 2
			for sweepID := 0; sweepID < 2; sweepID++ {
				for sensorID := 0; sensorID < 4; sensorID++ {
					samples = append(samples, sweepSampleAt(truth, tMs, sensorID, bsID, sweepID, poses, calibs))
				}
			}
		}
		if tMs%100 == 9 {
			// The external heading reference agrees with the estimate.
			samples = append(samples, &estimator.YawErrorSample{TimeMs: tMs, YawError: 0})
		}
	}

	final := runLoop(t, l, samples, 2000)

	assert.Less(t, final.Position.Sub(truth).Norm(), 0.4,
		"estimate should converge to the true position, got %+v", final.Position)
	st := l.Stats()
	assert.Greater(t, st.SweepUpdates, int64(100))
	assert.Greater(t, st.YawUpdates, int64(10))
}

func TestEndToEnd_Deterministic(t *testing.T) {
	run := func() estimator.ExternalizedState {
		cfg := e2eConfig(t, geom.Vec3{X: 0.5, Y: -0.4, Z: 0.3})
		ctx := calib.NewContext(e2eAnchors, nil, nil)
		l, _ := newE2ELoop(cfg, ctx)

		var samples []estimator.Sample
		for tMs := int64(0); tMs < 500; tMs++ {
			if tMs%10 == 0 {
				samples = append(samples, hoverIMU(tMs)...)
			}
			if tMs%50 == 7 {
				dd := geom.Vec3{}.Sub(e2eAnchors[1]).Norm() - geom.Vec3{}.Sub(e2eAnchors[0]).Norm()
				samples = append(samples, &estimator.TdoaSample{
					TimeMs: tMs, AnchorIDA: 0, AnchorIDB: 1, DistanceDiff: dd,
				})
			}
		}
		return runLoop(t, l, samples, 500)
	}

	first := run()
	second := run()
	assert.Equal(t, first, second, "same inputs must give bit-identical estimates")
}
