package units

import (
	"math"
	"testing"
)

func TestDegreesRadiansRoundTrip(t *testing.T) {
	for _, deg := range []float64{-180, -90, 0, 45, 90, 360} {
		rad := DegreesToRadians(deg)
		if got := RadiansToDegrees(rad); math.Abs(got-deg) > 1e-12 {
			t.Errorf("round trip of %g° = %g°", deg, got)
		}
	}
	if got := DegreesToRadians(180); math.Abs(got-math.Pi) > 1e-15 {
		t.Errorf("180° = %g rad, want π", got)
	}
}

func TestGsToMetersPerSecondSquared(t *testing.T) {
	if got := GsToMetersPerSecondSquared(1, 9.81); got != 9.81 {
		t.Errorf("1 g = %g m/s², want 9.81", got)
	}
	if got := GsToMetersPerSecondSquared(2, 0); got != 2*GravityStandard {
		t.Errorf("fallback gravity: got %g, want %g", got, 2*GravityStandard)
	}
}
