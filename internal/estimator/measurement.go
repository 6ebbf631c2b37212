package estimator

import (
	"github.com/sojez1/flightstate/internal/calib"
	"github.com/sojez1/flightstate/internal/geom"
)

// TdoaMeasurement is a fully resolved time-difference-of-arrival update:
// anchor ids have been replaced with world positions and the noise level
// has been attached.
type TdoaMeasurement struct {
	AnchorPositionA geom.Vec3
	AnchorPositionB geom.Vec3
	// DistanceDiff is |vehicle - anchorB| - |vehicle - anchorA| in metres.
	DistanceDiff float64
	StdDev       float64
}

// YawErrorMeasurement carries an absolute yaw error in radians.
type YawErrorMeasurement struct {
	YawError float64
	StdDev   float64
}

// SweepAngleMeasurement is a fully resolved lighthouse sweep update. The
// rotor rotation is carried both ways so the update model can move
// between the world frame and the rotor frame without recomputing the
// inverse.
type SweepAngleMeasurement struct {
	// SensorPos is the sensor position in the body frame, metres.
	SensorPos geom.Vec3
	// RotorPos is the basestation rotor origin in the world frame.
	RotorPos geom.Vec3
	// RotorRot rotates rotor-frame vectors into the world frame.
	RotorRot geom.Mat33
	// RotorRotInv rotates world-frame vectors into the rotor frame.
	RotorRotInv geom.Mat33

	SweepID            int
	T                  float64
	MeasuredSweepAngle float64
	StdDev             float64

	Calibration calib.SweepCalibration
}

// Deck sensor layout, metres. Sensors sit at the corners of a small
// rectangle centred on the vehicle origin.
const (
	sensorOffsetW = 0.015 / 2.0
	sensorOffsetL = 0.030 / 2.0
)

var sensorPositions = [4]geom.Vec3{
	{X: -sensorOffsetW, Y: sensorOffsetL, Z: 0},
	{X: -sensorOffsetW, Y: -sensorOffsetL, Z: 0},
	{X: sensorOffsetW, Y: sensorOffsetL, Z: 0},
	{X: sensorOffsetW, Y: -sensorOffsetL, Z: 0},
}

// MeasurementBuilder resolves raw samples into measurement records by
// joining them against the calibration context and attaching configured
// noise levels.
type MeasurementBuilder struct {
	ctx         *calib.Context
	tdoaStdDev  float64
	sweepStdDev float64
}

// NewMeasurementBuilder wires a builder to a calibration context.
func NewMeasurementBuilder(ctx *calib.Context, tdoaStdDev, sweepStdDev float64) *MeasurementBuilder {
	return &MeasurementBuilder{
		ctx:         ctx,
		tdoaStdDev:  tdoaStdDev,
		sweepStdDev: sweepStdDev,
	}
}

// BuildTdoa resolves anchor ids to positions. A missing anchor yields a
// LookupError naming the offending id.
func (b *MeasurementBuilder) BuildTdoa(s TdoaSample, state StateReader) (TdoaMeasurement, error) {
	posA, ok := b.ctx.AnchorPosition(s.AnchorIDA)
	if !ok {
		return TdoaMeasurement{}, &LookupError{Entity: "anchor", ID: s.AnchorIDA}
	}
	posB, ok := b.ctx.AnchorPosition(s.AnchorIDB)
	if !ok {
		return TdoaMeasurement{}, &LookupError{Entity: "anchor", ID: s.AnchorIDB}
	}
	tracef("tdoa anchors %d/%d at est pos (%.3f %.3f %.3f)",
		s.AnchorIDA, s.AnchorIDB, state.State(0), state.State(1), state.State(2))
	return TdoaMeasurement{
		AnchorPositionA: posA,
		AnchorPositionB: posB,
		DistanceDiff:    s.DistanceDiff,
		StdDev:          b.tdoaStdDev,
	}, nil
}

// BuildSweepAngle resolves the sensor, basestation pose and per-sweep
// calibration for a lighthouse sample. Missing basestation geometry or
// calibration yields a LookupError.
func (b *MeasurementBuilder) BuildSweepAngle(s SweepAngleSample, state StateReader) (SweepAngleMeasurement, error) {
	if s.SensorID < 0 || s.SensorID >= len(sensorPositions) {
		return SweepAngleMeasurement{}, &LookupError{Entity: "sensor", ID: s.SensorID}
	}
	pose, ok := b.ctx.BasestationPose(s.BasestationID)
	if !ok {
		return SweepAngleMeasurement{}, &LookupError{Entity: "basestation geometry", ID: s.BasestationID}
	}
	cal, ok := b.ctx.SweepCalibration(s.BasestationID, s.SweepID)
	if !ok {
		return SweepAngleMeasurement{}, &LookupError{Entity: "basestation calibration", ID: s.BasestationID}
	}
	tracef("sweep bs %d sweep %d sensor %d at est pos (%.3f %.3f %.3f)",
		s.BasestationID, s.SweepID, s.SensorID, state.State(0), state.State(1), state.State(2))
	return SweepAngleMeasurement{
		SensorPos:          sensorPositions[s.SensorID],
		RotorPos:           pose.Origin,
		RotorRot:           pose.Rotation,
		RotorRotInv:        pose.Rotation.Transpose(),
		SweepID:            s.SweepID,
		T:                  s.T,
		MeasuredSweepAngle: s.MeasuredSweepAngle,
		StdDev:             b.sweepStdDev,
		Calibration:        cal,
	}, nil
}
