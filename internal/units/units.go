// Package units provides shared physical constants and unit conversions
// for sensor readings.
package units

import "math"

// GravityStandard is the standard gravitational acceleration in m/s²,
// used to convert accelerometer readings from g units.
const GravityStandard = 9.81

// RadPerDeg converts degrees to radians when used as a scale factor.
const RadPerDeg = math.Pi / 180.0

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(deg float64) float64 {
	return deg * RadPerDeg
}

// RadiansToDegrees converts an angle in radians to degrees.
func RadiansToDegrees(rad float64) float64 {
	return rad / RadPerDeg
}

// GsToMetersPerSecondSquared converts an acceleration in g units to m/s²
// using the given gravity magnitude. A non-positive gravity falls back to
// the standard value.
func GsToMetersPerSecondSquared(gs, gravity float64) float64 {
	if gravity <= 0 {
		gravity = GravityStandard
	}
	return gs * gravity
}
