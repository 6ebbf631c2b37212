package estimator

import (
	"github.com/sojez1/flightstate/internal/geom"
	"github.com/sojez1/flightstate/internal/outlier"
)

// ExternalizedState is the caller-facing pose/velocity/attitude snapshot
// produced once per tick. The caller owns the value after return.
type ExternalizedState struct {
	Position   geom.Vec3 // world frame, metres
	Velocity   geom.Vec3 // world frame, m/s
	Attitude   geom.Vec3 // roll/pitch/yaw, degrees
	Quaternion geom.Quat
	Acc        geom.Vec3 // latest raw acceleration, g units
}

// FilterCore is the opaque numerical estimator consumed by the loop. The
// loop owns the sequencing of calls; implementations own the mathematics.
// Any method returning an error signals an unrecoverable numerical
// failure that the loop surfaces to the caller.
type FilterCore interface {
	// Init seeds the filter state at the loop's initialization epoch.
	Init(nowMs int64)

	// Predict propagates the state using averaged inertial inputs
	// (acceleration in m/s², angular rate in rad/s).
	Predict(acc, gyro geom.Vec3, nowMs int64, isFlying bool) error

	// AddProcessNoise inflates the covariance for the time elapsed since
	// the previous call. Invoked unconditionally every tick.
	AddProcessNoise(nowMs int64) error

	UpdateWithTdoa(m TdoaMeasurement, nowMs int64, st *outlier.TdoaState) error
	UpdateWithYawError(m YawErrorMeasurement) error
	UpdateWithSweepAngles(m SweepAngleMeasurement, nowMs int64, st *outlier.SweepState) error

	// Finalize re-normalizes internal state after a batch of updates.
	Finalize() error

	// Externalize produces the caller-facing state snapshot.
	Externalize() (ExternalizedState, error)

	StateReader
}

// StateReader exposes read access to the filter's current position and
// orientation, used when composing measurement records.
type StateReader interface {
	// State returns one component of the filter state vector. Indices 0–2
	// are the world-frame position.
	State(i int) float64
	// RotationMatrixElement returns one element of the body-to-world
	// rotation matrix.
	RotationMatrixElement(i, j int) float64
}
