// Package estimator orchestrates the state-estimation loop: it owns
// logical time, averages inertial readings between prediction steps,
// drains queued positioning samples in timestamp order and dispatches
// them to a filter core. The numerical filter itself lives behind the
// FilterCore interface.
package estimator

import (
	"fmt"

	"github.com/sojez1/flightstate/internal/calib"
	"github.com/sojez1/flightstate/internal/config"
	"github.com/sojez1/flightstate/internal/outlier"
	"github.com/sojez1/flightstate/internal/units"
)

// LoopConfig holds the orchestration parameters for the estimation loop.
// Noise levels here apply to the raw measurements, not the process model,
// which is configured on the filter core.
type LoopConfig struct {
	// PredictRateHz is how often the filter propagates its state. Must
	// evenly divide the 1 kHz tick rate.
	PredictRateHz int
	// GravityMagnitude converts accelerometer readings from g units to
	// m/s² when averaging inertial input.
	GravityMagnitude float64

	TdoaStdDev     float64
	SweepStdDev    float64
	YawErrorStdDev float64

	// LookupFailurePolicy selects what happens when a sample references
	// an unknown anchor or basestation: skip the sample or abort the tick.
	LookupFailurePolicy string
	// AssumeFlying is passed through to the filter's predict step.
	AssumeFlying bool
}

// DefaultLoopConfig returns the standard loop parameters. Prefer
// LoopConfigFromTuning in production code where a TuningConfig is loaded.
func DefaultLoopConfig() LoopConfig {
	cfg := &config.TuningConfig{}
	return LoopConfigFromTuning(cfg)
}

// LoopConfigFromTuning builds a LoopConfig from a loaded TuningConfig.
func LoopConfigFromTuning(cfg *config.TuningConfig) LoopConfig {
	return LoopConfig{
		PredictRateHz:       cfg.GetPredictRateHz(),
		GravityMagnitude:    cfg.GetGravityMagnitude(),
		TdoaStdDev:          cfg.GetTdoaStdDev(),
		SweepStdDev:         cfg.GetSweepStdDev(),
		YawErrorStdDev:      cfg.GetYawErrorStdDev(),
		LookupFailurePolicy: cfg.GetLookupFailurePolicy(),
		AssumeFlying:        cfg.GetAssumeFlying(),
	}
}

// LoopStats counts work done by the loop since construction.
type LoopStats struct {
	Ticks            int64
	Predictions      int64
	SamplesProcessed int64
	TdoaUpdates      int64
	SweepUpdates     int64
	YawUpdates       int64
	LookupFailures   int64
}

// Loop drives a FilterCore on a fixed 1 ms tick. Each Tick call advances
// logical time by exactly one millisecond: inertial samples are averaged
// between predictions, positioning samples are applied in timestamp order,
// and the caller gets back the externalized state for that instant.
//
// Loop is not safe for concurrent use.
type Loop struct {
	cfg     LoopConfig
	core    FilterCore
	builder *MeasurementBuilder
	queue   *Queue

	accSub  *SubSampler
	gyroSub *SubSampler

	tdoaOutlier  outlier.TdoaState
	sweepOutlier outlier.SweepState

	initialized      bool
	epochMs          int64
	nowMs            int64
	nextPredictionMs int64
	predictPeriodMs  int64

	stats LoopStats
}

// NewLoop wires a loop to a filter core and a calibration context. The
// config must have passed validation upstream; an invalid predict rate
// here falls back to the default.
func NewLoop(core FilterCore, ctx *calib.Context, cfg LoopConfig) *Loop {
	rate := cfg.PredictRateHz
	if rate <= 0 || 1000%rate != 0 {
		rate = (&config.TuningConfig{}).GetPredictRateHz()
	}
	return &Loop{
		cfg:             cfg,
		core:            core,
		builder:         NewMeasurementBuilder(ctx, cfg.TdoaStdDev, cfg.SweepStdDev),
		queue:           NewQueue(),
		accSub:          NewSubSampler(cfg.GravityMagnitude),
		gyroSub:         NewSubSampler(units.RadPerDeg),
		predictPeriodMs: int64(1000 / rate),
	}
}

// Enqueue adds samples to the pending queue without advancing time.
// Samples must arrive in non-decreasing timestamp order.
func (l *Loop) Enqueue(samples ...Sample) {
	for _, s := range samples {
		l.queue.Push(s)
	}
}

// NowMs reports the loop's current logical time. Zero before the first
// tick initializes the epoch.
func (l *Loop) NowMs() int64 { return l.nowMs }

// Stats returns a snapshot of the loop's work counters.
func (l *Loop) Stats() LoopStats { return l.stats }

// Tick enqueues the given samples, advances logical time by one
// millisecond and returns the new time together with the externalized
// state at that instant.
//
// The first call establishes the time epoch from the earliest sample and
// must carry at least one sample; it returns ErrEmptyFirstBatch otherwise.
// Samples timestamped in the future stay queued for later ticks.
func (l *Loop) Tick(samples ...Sample) (int64, ExternalizedState, error) {
	l.Enqueue(samples...)

	if !l.initialized {
		head, ok := l.queue.Peek()
		if !ok {
			return l.nowMs, ExternalizedState{}, ErrEmptyFirstBatch
		}
		l.epochMs = head.TimestampMs()
		l.nowMs = l.epochMs
		l.nextPredictionMs = l.nowMs + l.predictPeriodMs
		l.core.Init(l.nowMs)
		l.tdoaOutlier.Reset()
		l.sweepOutlier.Reset(l.nowMs)
		l.initialized = true
		diagf("loop initialized, epoch %d ms, predict period %d ms", l.epochMs, l.predictPeriodMs)
	}

	l.stats.Ticks++

	// Prediction starts lazily: the first tick only establishes the
	// schedule, propagation happens once time has moved past it.
	if l.nowMs > l.nextPredictionMs {
		acc := l.accSub.Finalize()
		gyro := l.gyroSub.Finalize()
		if err := l.core.Predict(acc, gyro, l.nowMs, l.cfg.AssumeFlying); err != nil {
			return l.nowMs, ExternalizedState{}, fmt.Errorf("predict at %d ms: %w", l.nowMs, err)
		}
		l.nextPredictionMs += l.predictPeriodMs
		l.stats.Predictions++
	}

	if err := l.core.AddProcessNoise(l.nowMs); err != nil {
		return l.nowMs, ExternalizedState{}, fmt.Errorf("process noise at %d ms: %w", l.nowMs, err)
	}

	if err := l.drainQueue(); err != nil {
		return l.nowMs, ExternalizedState{}, err
	}

	if err := l.core.Finalize(); err != nil {
		return l.nowMs, ExternalizedState{}, fmt.Errorf("finalize at %d ms: %w", l.nowMs, err)
	}

	l.nowMs++
	st, err := l.core.Externalize()
	if err != nil {
		return l.nowMs, ExternalizedState{}, fmt.Errorf("externalize at %d ms: %w", l.nowMs, err)
	}
	return l.nowMs, st, nil
}

// drainQueue applies every queued sample whose timestamp is due. The
// queue is time ordered, so the first future sample stops the drain and
// everything behind it waits for a later tick.
func (l *Loop) drainQueue() error {
	for {
		head, ok := l.queue.Peek()
		if !ok {
			return nil
		}
		ts := head.TimestampMs()
		if ts > l.nowMs {
			return nil
		}
		if ts < l.epochMs {
			return &SequencingError{SampleMs: ts, EpochMs: l.epochMs}
		}
		l.queue.popFront()
		if err := l.dispatch(head); err != nil {
			return err
		}
		l.stats.SamplesProcessed++
	}
}

func (l *Loop) dispatch(s Sample) error {
	switch s := s.(type) {
	case *AccelerationSample:
		l.accSub.Accumulate(s.Acc)
	case *GyroscopeSample:
		l.gyroSub.Accumulate(s.Gyro)
	case *TdoaSample:
		m, err := l.builder.BuildTdoa(*s, l.core)
		if err != nil {
			return l.lookupFailure(err)
		}
		if err := l.core.UpdateWithTdoa(m, l.nowMs, &l.tdoaOutlier); err != nil {
			return fmt.Errorf("tdoa update at %d ms: %w", l.nowMs, err)
		}
		l.stats.TdoaUpdates++
	case *YawErrorSample:
		m := YawErrorMeasurement{YawError: s.YawError, StdDev: l.cfg.YawErrorStdDev}
		if err := l.core.UpdateWithYawError(m); err != nil {
			return fmt.Errorf("yaw error update at %d ms: %w", l.nowMs, err)
		}
		l.stats.YawUpdates++
	case *SweepAngleSample:
		m, err := l.builder.BuildSweepAngle(*s, l.core)
		if err != nil {
			return l.lookupFailure(err)
		}
		if err := l.core.UpdateWithSweepAngles(m, l.nowMs, &l.sweepOutlier); err != nil {
			return fmt.Errorf("sweep update at %d ms: %w", l.nowMs, err)
		}
		l.stats.SweepUpdates++
	default:
		return fmt.Errorf("unhandled sample type %T", s)
	}
	return nil
}

// lookupFailure applies the configured policy to a resolution error.
// Skipped failures are counted and logged but do not stop the tick.
func (l *Loop) lookupFailure(err error) error {
	l.stats.LookupFailures++
	if l.cfg.LookupFailurePolicy == config.LookupPolicyAbort {
		return err
	}
	opsf("skipping sample: %v", err)
	return nil
}
