package estimator

import "github.com/sojez1/flightstate/internal/geom"

// SubSampler averages high-rate inertial readings between two prediction
// steps and applies a fixed unit-conversion scale factor on finalize
// (gravity magnitude for the accelerometer, degrees-to-radians for the
// gyroscope).
type SubSampler struct {
	scale float64
	sum   geom.Vec3
	count int
}

// NewSubSampler creates a sub-sampler with the given scale factor.
func NewSubSampler(scale float64) *SubSampler {
	return &SubSampler{scale: scale}
}

// Accumulate adds one reading to the running window.
func (s *SubSampler) Accumulate(v geom.Vec3) {
	s.sum = s.sum.Add(v)
	s.count++
}

// Count returns the number of readings accumulated since the last
// finalize.
func (s *SubSampler) Count() int {
	return s.count
}

// Finalize returns the scaled mean of the accumulated readings and resets
// the window. With an empty window the count floor of 1 makes the result
// the zero vector rather than a division by zero.
func (s *SubSampler) Finalize() geom.Vec3 {
	n := s.count
	if n < 1 {
		n = 1
	}
	out := s.sum.Scale(s.scale / float64(n))
	s.sum = geom.Vec3{}
	s.count = 0
	return out
}
