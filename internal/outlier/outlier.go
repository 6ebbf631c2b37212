// Package outlier holds the stateful rejection filters that gate ranging
// and sweep-angle measurements before they reach the filter core. The
// filters are sequential and order-dependent: they are owned by the
// estimator loop, reset once at loop initialization and mutated on every
// evaluated measurement.
package outlier

import "math"

// TDOA filter tuning. The integrator charges while measurements disagree
// with the current estimate and discharges while they agree; measurements
// are rejected once the integrator saturates above the acceptance level.
const (
	tdoaAcceptedDistance = 0.8  // metres of innovation considered consistent
	tdoaIntegratorCharge = 10.0 // added per inconsistent measurement
	tdoaIntegratorLeak   = 1.0  // removed per consistent measurement
	tdoaIntegratorMax    = 100.0
	tdoaIntegratorAccept = 50.0
)

// TdoaState is the rejection state for TDOA ranging measurements.
type TdoaState struct {
	integrator float64
}

// Reset returns the filter to its initial, all-accepting state.
func (s *TdoaState) Reset() {
	s.integrator = 0
}

// Validate evaluates one innovation (metres) and reports whether the
// measurement should be applied. The internal integrator is updated as a
// side effect.
func (s *TdoaState) Validate(innovation float64) bool {
	if math.Abs(innovation) > tdoaAcceptedDistance {
		s.integrator += tdoaIntegratorCharge
	} else {
		s.integrator -= tdoaIntegratorLeak
	}
	if s.integrator > tdoaIntegratorMax {
		s.integrator = tdoaIntegratorMax
	}
	if s.integrator < 0 {
		s.integrator = 0
	}
	return s.integrator < tdoaIntegratorAccept
}

// Sweep (lighthouse) filter tuning. After a reset the filter holds an open
// window during which everything is accepted so the estimate can be pulled
// toward the base stations; afterwards, consistent measurements keep the
// window extended.
const (
	sweepOpenWindowMs   = 1000
	sweepExtendWindowMs = 250
	sweepAcceptedAngle  = 0.1 // radians of innovation considered consistent
)

// SweepState is the rejection state for sweep-angle measurements.
type SweepState struct {
	windowMs int64
}

// Reset opens the acceptance window starting at nowMs.
func (s *SweepState) Reset(nowMs int64) {
	s.windowMs = nowMs + sweepOpenWindowMs
}

// Validate evaluates one angular innovation (radians) at nowMs and reports
// whether the measurement should be applied.
func (s *SweepState) Validate(innovation float64, nowMs int64) bool {
	if math.Abs(innovation) < sweepAcceptedAngle {
		if nowMs+sweepExtendWindowMs > s.windowMs {
			s.windowMs = nowMs + sweepExtendWindowMs
		}
		return true
	}
	return nowMs < s.windowMs
}
