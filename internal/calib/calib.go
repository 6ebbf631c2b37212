// Package calib provides the static calibration and geometry tables the
// estimator consumes: ranging-anchor positions, sweep base-station poses
// and per-sweep calibration models. A Context is populated once before the
// loop starts and never mutated afterwards.
package calib

import (
	"github.com/sojez1/flightstate/internal/geom"
)

// SweepCalibration describes the manufacturing calibration of one rotor
// sweep plane of a base station.
type SweepCalibration struct {
	Phase     float64 `yaml:"phase" json:"phase"`
	Tilt      float64 `yaml:"tilt" json:"tilt"`
	Curve     float64 `yaml:"curve" json:"curve"`
	Gibmag    float64 `yaml:"gibmag" json:"gibmag"`
	Gibphase  float64 `yaml:"gibphase" json:"gibphase"`
	Ogeemag   float64 `yaml:"ogeemag" json:"ogeemag"`
	Ogeephase float64 `yaml:"ogeephase" json:"ogeephase"`
}

// BasestationPose is the world-frame pose of a sweep base station.
type BasestationPose struct {
	Origin   geom.Vec3
	Rotation geom.Mat33
}

// Context is the immutable lookup used when building measurement records.
type Context struct {
	anchors      map[int]geom.Vec3
	poses        map[int]BasestationPose
	calibrations map[int]map[int]SweepCalibration // base station id → sweep id
}

// NewContext builds a Context from already-parsed tables. Any of the maps
// may be nil when the corresponding measurement modality is not in use.
func NewContext(anchors map[int]geom.Vec3, poses map[int]BasestationPose, calibrations map[int]map[int]SweepCalibration) *Context {
	return &Context{
		anchors:      anchors,
		poses:        poses,
		calibrations: calibrations,
	}
}

// AnchorPosition looks up the world position of a ranging anchor.
func (c *Context) AnchorPosition(id int) (geom.Vec3, bool) {
	p, ok := c.anchors[id]
	return p, ok
}

// BasestationPose looks up the pose of a sweep base station.
func (c *Context) BasestationPose(id int) (BasestationPose, bool) {
	p, ok := c.poses[id]
	return p, ok
}

// SweepCalibration looks up the calibration model for one sweep plane of a
// base station.
func (c *Context) SweepCalibration(basestationID, sweepID int) (SweepCalibration, bool) {
	sweeps, ok := c.calibrations[basestationID]
	if !ok {
		return SweepCalibration{}, false
	}
	cal, ok := sweeps[sweepID]
	return cal, ok
}
