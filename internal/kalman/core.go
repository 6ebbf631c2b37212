// Package kalman implements the error-state Kalman filter backing the
// estimation loop. The filter tracks world-frame position and velocity
// plus a body-frame attitude error alongside a reference quaternion; the
// error is folded back into the quaternion on every finalize.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/sojez1/flightstate/internal/config"
	"github.com/sojez1/flightstate/internal/estimator"
	"github.com/sojez1/flightstate/internal/geom"
	"github.com/sojez1/flightstate/internal/outlier"
	"github.com/sojez1/flightstate/internal/units"
)

// State vector layout.
const (
	stateX = iota
	stateY
	stateZ
	stateVX
	stateVY
	stateVZ
	stateD0 // attitude error, body x
	stateD1 // attitude error, body y
	stateD2 // attitude error, body z

	stateDim
)

// Covariance diagonal bounds. The lower bound keeps updates from locking
// the filter solid, the upper bound keeps a starved filter from blowing
// up before measurements arrive.
const (
	minCovariance = 1e-6
	maxCovariance = 100.0
)

// Params holds the filter's numerical tuning.
type Params struct {
	InitialPosition geom.Vec3

	StdDevInitialPosition float64
	StdDevInitialVelocity float64
	StdDevInitialAttitude float64

	ProcNoisePos float64
	ProcNoiseVel float64
	ProcNoiseAtt float64

	GravityMagnitude float64
}

// ParamsFromTuning builds Params from a loaded TuningConfig.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		InitialPosition: geom.Vec3{
			X: cfg.GetInitialX(),
			Y: cfg.GetInitialY(),
			Z: cfg.GetInitialZ(),
		},
		StdDevInitialPosition: cfg.GetStdDevInitialPosition(),
		StdDevInitialVelocity: cfg.GetStdDevInitialVelocity(),
		StdDevInitialAttitude: cfg.GetStdDevInitialAttitude(),
		ProcNoisePos:          cfg.GetProcessNoisePos(),
		ProcNoiseVel:          cfg.GetProcessNoiseVel(),
		ProcNoiseAtt:          cfg.GetProcessNoiseAtt(),
		GravityMagnitude:      cfg.GetGravityMagnitude(),
	}
}

// Core is the filter state. It satisfies the loop's FilterCore contract
// and is not safe for concurrent use.
type Core struct {
	params Params

	// s is the filter state: position, velocity, attitude error. The
	// attitude error is zero except between updates and finalize.
	s [stateDim]float64

	q geom.Quat
	r geom.Mat33 // body-to-world rotation, kept in sync with q

	p *mat.Dense // stateDim × stateDim covariance

	lastPredictMs int64
	lastNoiseMs   int64

	latestAcc geom.Vec3 // g units, world-independent diagnostics
}

var _ estimator.FilterCore = (*Core)(nil)

// NewCore allocates a filter with the given tuning. Call Init before the
// first predict.
func NewCore(params Params) *Core {
	return &Core{
		params: params,
		q:      geom.IdentityQuat(),
		r:      geom.Identity33(),
		p:      mat.NewDense(stateDim, stateDim, nil),
	}
}

// Init resets the filter to its initial state at the given time.
func (c *Core) Init(nowMs int64) {
	c.s = [stateDim]float64{}
	c.s[stateX] = c.params.InitialPosition.X
	c.s[stateY] = c.params.InitialPosition.Y
	c.s[stateZ] = c.params.InitialPosition.Z

	c.q = geom.IdentityQuat()
	c.r = geom.Identity33()
	c.latestAcc = geom.Vec3{}

	c.p.Zero()
	for i := stateX; i <= stateZ; i++ {
		c.p.Set(i, i, sq(c.params.StdDevInitialPosition))
	}
	for i := stateVX; i <= stateVZ; i++ {
		c.p.Set(i, i, sq(c.params.StdDevInitialVelocity))
	}
	for i := stateD0; i <= stateD2; i++ {
		c.p.Set(i, i, sq(c.params.StdDevInitialAttitude))
	}

	c.lastPredictMs = nowMs
	c.lastNoiseMs = nowMs
}

// Predict propagates the state by the time elapsed since the previous
// predict, using the averaged acceleration (m/s², body frame) and angular
// rate (rad/s, body frame).
func (c *Core) Predict(acc, gyro geom.Vec3, nowMs int64, isFlying bool) error {
	dt := float64(nowMs-c.lastPredictMs) / 1000.0
	c.lastPredictMs = nowMs
	if dt <= 0 {
		return nil
	}

	g := c.params.GravityMagnitude
	if g > 0 {
		c.latestAcc = acc.Scale(1.0 / g)
	}

	worldAcc := c.r.MulVec(acc).Sub(geom.Vec3{Z: g})

	pos := geom.Vec3{X: c.s[stateX], Y: c.s[stateY], Z: c.s[stateZ]}
	vel := geom.Vec3{X: c.s[stateVX], Y: c.s[stateVY], Z: c.s[stateVZ]}

	pos = pos.Add(vel.Scale(dt)).Add(worldAcc.Scale(0.5 * dt * dt))
	vel = vel.Add(worldAcc.Scale(dt))
	if !isFlying {
		// On the ground the legs carry the weight; bleed off velocity so
		// integration errors do not walk the estimate away.
		vel = vel.Scale(1.0 - dt)
	}

	c.s[stateX], c.s[stateY], c.s[stateZ] = pos.X, pos.Y, pos.Z
	c.s[stateVX], c.s[stateVY], c.s[stateVZ] = vel.X, vel.Y, vel.Z

	c.q = c.q.Mul(geom.FromRotationVector(gyro.Scale(dt))).Normalize()
	c.r = c.q.RotationMatrix()

	// Linearized transition. Position couples to velocity, velocity to
	// the attitude error through the rotated specific force, and the
	// attitude error is transported by the body rate.
	a := identity(stateDim)
	for i := 0; i < 3; i++ {
		a.Set(stateX+i, stateVX+i, dt)
	}
	ra := c.r.Mul(skew(acc))
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			a.Set(stateVX+i, stateD0+j, -ra[i][j]*dt)
		}
	}
	sg := skew(gyro)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := -sg[i][j] * dt
			if i == j {
				v += 1
			}
			a.Set(stateD0+i, stateD0+j, v)
		}
	}

	var tmp mat.Dense
	tmp.Mul(a, c.p)
	c.p.Mul(&tmp, a.T())

	c.enforceBounds()
	return c.checkFinite("predict")
}

// AddProcessNoise inflates the covariance for the time elapsed since the
// previous call.
func (c *Core) AddProcessNoise(nowMs int64) error {
	dt := float64(nowMs-c.lastNoiseMs) / 1000.0
	c.lastNoiseMs = nowMs
	if dt <= 0 {
		return nil
	}

	for i := stateX; i <= stateZ; i++ {
		c.p.Set(i, i, c.p.At(i, i)+sq(c.params.ProcNoisePos*dt))
	}
	for i := stateVX; i <= stateVZ; i++ {
		c.p.Set(i, i, c.p.At(i, i)+sq(c.params.ProcNoiseVel*dt))
	}
	for i := stateD0; i <= stateD2; i++ {
		c.p.Set(i, i, c.p.At(i, i)+sq(c.params.ProcNoiseAtt*dt))
	}

	c.enforceBounds()
	return c.checkFinite("process noise")
}

// UpdateWithTdoa applies one ranging difference if the outlier filter
// accepts it.
func (c *Core) UpdateWithTdoa(m estimator.TdoaMeasurement, nowMs int64, st *outlier.TdoaState) error {
	pos := geom.Vec3{X: c.s[stateX], Y: c.s[stateY], Z: c.s[stateZ]}
	dA := pos.Sub(m.AnchorPositionA)
	dB := pos.Sub(m.AnchorPositionB)
	nA := dA.Norm()
	nB := dB.Norm()
	if nA < 0.01 || nB < 0.01 {
		// Sitting on top of an anchor; the jacobian degenerates.
		return nil
	}

	predicted := nB - nA
	innovation := m.DistanceDiff - predicted
	if !st.Validate(innovation) {
		return nil
	}

	var h [stateDim]float64
	h[stateX] = dB.X/nB - dA.X/nA
	h[stateY] = dB.Y/nB - dA.Y/nA
	h[stateZ] = dB.Z/nB - dA.Z/nA
	return c.scalarUpdate(h, innovation, m.StdDev, "tdoa update")
}

// UpdateWithYawError applies an externally measured yaw error. The
// measurement observes the body-z attitude error directly.
func (c *Core) UpdateWithYawError(m estimator.YawErrorMeasurement) error {
	var h [stateDim]float64
	h[stateD2] = 1
	return c.scalarUpdate(h, m.YawError, m.StdDev, "yaw error update")
}

// UpdateWithSweepAngles applies one sweep-angle bearing if the outlier
// filter accepts it.
func (c *Core) UpdateWithSweepAngles(m estimator.SweepAngleMeasurement, nowMs int64, st *outlier.SweepState) error {
	pos := geom.Vec3{X: c.s[stateX], Y: c.s[stateY], Z: c.s[stateZ]}
	sensorWorld := pos.Add(c.r.MulVec(m.SensorPos))
	sr := m.RotorRotInv.MulVec(sensorWorld.Sub(m.RotorPos))

	r2 := sr.X*sr.X + sr.Y*sr.Y
	if r2 < 1e-6 {
		// Directly on the rotor axis; the bearing is undefined.
		return nil
	}

	tanT := math.Tan(m.T)
	predicted := PredictSweepAngle(sr, tanT, m.Calibration.Phase)
	innovation := m.MeasuredSweepAngle - predicted
	if !st.Validate(innovation, nowMs) {
		return nil
	}

	// Gradient of the predicted angle in the rotor frame, then rotated
	// into the world frame for the position states.
	rr := math.Sqrt(r2)
	z := sr.Z
	u := z * tanT / rr
	var du float64
	if uu := 1 - u*u; uu > 1e-9 {
		du = 1 / math.Sqrt(uu)
	}
	grad := geom.Vec3{
		X: -sr.Y/r2 + du*(-z*tanT*sr.X/(r2*rr)),
		Y: sr.X/r2 + du*(-z*tanT*sr.Y/(r2*rr)),
		Z: du * tanT / rr,
	}
	worldGrad := m.RotorRot.MulVec(grad)

	var h [stateDim]float64
	h[stateX] = worldGrad.X
	h[stateY] = worldGrad.Y
	h[stateZ] = worldGrad.Z
	return c.scalarUpdate(h, innovation, m.StdDev, "sweep update")
}

// PredictSweepAngle is the forward measurement model for one sweep plane:
// the horizontal bearing in the rotor frame, tilted by the plane slant and
// shifted by the calibrated phase. sr is the sensor position in the rotor
// frame, tanT the tangent of the plane tilt.
func PredictSweepAngle(sr geom.Vec3, tanT, phase float64) float64 {
	rr := math.Hypot(sr.X, sr.Y)
	u := sr.Z * tanT / rr
	if u > 1 {
		u = 1
	} else if u < -1 {
		u = -1
	}
	return math.Atan2(sr.Y, sr.X) + math.Asin(u) + phase
}

// scalarUpdate applies a single scalar measurement in Joseph form, which
// preserves covariance symmetry and positive definiteness under roundoff.
func (c *Core) scalarUpdate(h [stateDim]float64, innovation, stdDev float64, op string) error {
	hm := mat.NewDense(1, stateDim, h[:])

	var pht mat.Dense
	pht.Mul(c.p, hm.T())

	hphr := stdDev * stdDev
	for i := 0; i < stateDim; i++ {
		hphr += h[i] * pht.At(i, 0)
	}
	if hphr <= 0 {
		return &estimator.NumericalError{Op: op}
	}

	var k [stateDim]float64
	for i := 0; i < stateDim; i++ {
		k[i] = pht.At(i, 0) / hphr
		c.s[i] += k[i] * innovation
	}

	// P ← (I − KH) P (I − KH)ᵀ + K R Kᵀ
	ikh := identity(stateDim)
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			ikh.Set(i, j, ikh.At(i, j)-k[i]*h[j])
		}
	}
	var tmp mat.Dense
	tmp.Mul(ikh, c.p)
	c.p.Mul(&tmp, ikh.T())
	r := stdDev * stdDev
	for i := 0; i < stateDim; i++ {
		for j := 0; j < stateDim; j++ {
			c.p.Set(i, j, c.p.At(i, j)+k[i]*r*k[j])
		}
	}

	c.enforceBounds()
	return c.checkFinite(op)
}

// Finalize folds the accumulated attitude error into the reference
// quaternion and re-zeroes the error states.
func (c *Core) Finalize() error {
	v := geom.Vec3{X: c.s[stateD0], Y: c.s[stateD1], Z: c.s[stateD2]}
	if v.Norm() > 1e-10 {
		c.q = c.q.Mul(geom.FromRotationVector(v)).Normalize()
		c.r = c.q.RotationMatrix()
		c.s[stateD0], c.s[stateD1], c.s[stateD2] = 0, 0, 0
	}
	return c.checkFinite("finalize")
}

// Externalize produces the caller-facing snapshot.
func (c *Core) Externalize() (estimator.ExternalizedState, error) {
	roll, pitch, yaw := c.q.RollPitchYaw()
	st := estimator.ExternalizedState{
		Position: geom.Vec3{X: c.s[stateX], Y: c.s[stateY], Z: c.s[stateZ]},
		Velocity: geom.Vec3{X: c.s[stateVX], Y: c.s[stateVY], Z: c.s[stateVZ]},
		Attitude: geom.Vec3{
			X: units.RadiansToDegrees(roll),
			Y: units.RadiansToDegrees(pitch),
			Z: units.RadiansToDegrees(yaw),
		},
		Quaternion: c.q,
		Acc:        c.latestAcc,
	}
	if !st.Position.IsFinite() || !st.Velocity.IsFinite() || !st.Attitude.IsFinite() || !st.Quaternion.IsFinite() {
		return estimator.ExternalizedState{}, &estimator.NumericalError{Op: "externalize"}
	}
	return st, nil
}

// State returns one component of the state vector.
func (c *Core) State(i int) float64 {
	return c.s[i]
}

// RotationMatrixElement returns one element of the body-to-world rotation.
func (c *Core) RotationMatrixElement(i, j int) float64 {
	return c.r[i][j]
}

// enforceBounds symmetrizes the covariance and clamps its diagonal.
func (c *Core) enforceBounds() {
	for i := 0; i < stateDim; i++ {
		for j := i + 1; j < stateDim; j++ {
			v := (c.p.At(i, j) + c.p.At(j, i)) / 2
			c.p.Set(i, j, v)
			c.p.Set(j, i, v)
		}
		d := c.p.At(i, i)
		if d < minCovariance {
			c.p.Set(i, i, minCovariance)
		} else if d > maxCovariance {
			c.p.Set(i, i, maxCovariance)
		}
	}
}

// checkFinite guards against NaN/Inf contamination of state or covariance.
func (c *Core) checkFinite(op string) error {
	for i := 0; i < stateDim; i++ {
		if math.IsNaN(c.s[i]) || math.IsInf(c.s[i], 0) {
			return &estimator.NumericalError{Op: op}
		}
		for j := 0; j < stateDim; j++ {
			v := c.p.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &estimator.NumericalError{Op: op}
			}
		}
	}
	if !c.q.IsFinite() {
		return &estimator.NumericalError{Op: op}
	}
	return nil
}

func sq(v float64) float64 { return v * v }

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func skew(v geom.Vec3) geom.Mat33 {
	return geom.Mat33{
		{0, -v.Z, v.Y},
		{v.Z, 0, -v.X},
		{-v.Y, v.X, 0},
	}
}
