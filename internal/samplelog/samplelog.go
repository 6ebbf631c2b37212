// Package samplelog reads and writes recorded sensor samples as JSON
// lines, one sample per line, and replays a recording through an
// estimation loop. Recordings come from on-board flash dumps converted to
// this format; the type tags match the on-board log event names.
package samplelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sojez1/flightstate/internal/estimator"
	"github.com/sojez1/flightstate/internal/geom"
	"github.com/sojez1/flightstate/internal/timeutil"
)

// Recognized sample type tags.
const (
	TypeTdoa         = "estTDOA"
	TypeYawError     = "estYawError"
	TypeSweepAngle   = "estSweepAngle"
	TypeAcceleration = "estAcceleration"
	TypeGyroscope    = "estGyroscope"
)

// record is the superset wire form of all sample kinds; the type tag
// selects which fields are meaningful.
type record struct {
	Type string `json:"type"`
	TMs  int64  `json:"t_ms"`

	AnchorA      int     `json:"anchor_a,omitempty"`
	AnchorB      int     `json:"anchor_b,omitempty"`
	DistanceDiff float64 `json:"distance_diff,omitempty"`

	YawError float64 `json:"yaw_error,omitempty"`

	SensorID      int     `json:"sensor_id,omitempty"`
	BasestationID int     `json:"basestation_id,omitempty"`
	SweepID       int     `json:"sweep_id,omitempty"`
	T             float64 `json:"t,omitempty"`
	SweepAngle    float64 `json:"sweep_angle,omitempty"`

	Acc  *geom.Vec3 `json:"acc,omitempty"`
	Gyro *geom.Vec3 `json:"gyro,omitempty"`
}

// Read parses a sample stream. Timestamps must be non-decreasing; an
// unknown type tag or a time reversal is an error naming the line.
func Read(r io.Reader) ([]estimator.Sample, error) {
	var out []estimator.Sample
	var lastMs int64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		s, err := rec.toSample()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(out) > 0 && s.TimestampMs() < lastMs {
			return nil, fmt.Errorf("line %d: timestamp %d ms runs backwards (previous %d ms)", line, s.TimestampMs(), lastMs)
		}
		lastMs = s.TimestampMs()
		out = append(out, s)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return out, nil
}

// ReadFile reads a sample recording from disk.
func ReadFile(path string) ([]estimator.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", path, err)
	}
	defer f.Close()
	samples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("recording %s: %w", path, err)
	}
	return samples, nil
}

func (r *record) toSample() (estimator.Sample, error) {
	switch r.Type {
	case TypeTdoa:
		return &estimator.TdoaSample{
			TimeMs: r.TMs, AnchorIDA: r.AnchorA, AnchorIDB: r.AnchorB, DistanceDiff: r.DistanceDiff,
		}, nil
	case TypeYawError:
		return &estimator.YawErrorSample{TimeMs: r.TMs, YawError: r.YawError}, nil
	case TypeSweepAngle:
		return &estimator.SweepAngleSample{
			TimeMs: r.TMs, SensorID: r.SensorID, BasestationID: r.BasestationID,
			SweepID: r.SweepID, T: r.T, MeasuredSweepAngle: r.SweepAngle,
		}, nil
	case TypeAcceleration:
		if r.Acc == nil {
			return nil, fmt.Errorf("%s record without acc field", r.Type)
		}
		return &estimator.AccelerationSample{TimeMs: r.TMs, Acc: *r.Acc}, nil
	case TypeGyroscope:
		if r.Gyro == nil {
			return nil, fmt.Errorf("%s record without gyro field", r.Type)
		}
		return &estimator.GyroscopeSample{TimeMs: r.TMs, Gyro: *r.Gyro}, nil
	default:
		return nil, fmt.Errorf("unknown sample type %q", r.Type)
	}
}

// Write serializes samples in the line format Read accepts.
func Write(w io.Writer, samples []estimator.Sample) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, s := range samples {
		if err := enc.Encode(fromSample(s)); err != nil {
			return fmt.Errorf("sample %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func fromSample(s estimator.Sample) record {
	switch s := s.(type) {
	case *estimator.TdoaSample:
		return record{Type: TypeTdoa, TMs: s.TimeMs, AnchorA: s.AnchorIDA, AnchorB: s.AnchorIDB, DistanceDiff: s.DistanceDiff}
	case *estimator.YawErrorSample:
		return record{Type: TypeYawError, TMs: s.TimeMs, YawError: s.YawError}
	case *estimator.SweepAngleSample:
		return record{
			Type: TypeSweepAngle, TMs: s.TimeMs, SensorID: s.SensorID,
			BasestationID: s.BasestationID, SweepID: s.SweepID, T: s.T, SweepAngle: s.MeasuredSweepAngle,
		}
	case *estimator.AccelerationSample:
		acc := s.Acc
		return record{Type: TypeAcceleration, TMs: s.TimeMs, Acc: &acc}
	case *estimator.GyroscopeSample:
		gyro := s.Gyro
		return record{Type: TypeGyroscope, TMs: s.TimeMs, Gyro: &gyro}
	default:
		// The sample interface is sealed; this is unreachable.
		panic(fmt.Sprintf("unhandled sample type %T", s))
	}
}

// Replay feeds a recording through the loop, ticking once per
// millisecond from the first sample's timestamp until the last sample
// has been consumed. each is called after every tick with the loop time
// and the externalized state; returning an error stops the replay.
func Replay(l *estimator.Loop, samples []estimator.Sample, each func(tMs int64, st estimator.ExternalizedState) error) error {
	if len(samples) == 0 {
		return estimator.ErrEmptyFirstBatch
	}
	lastMs := samples[len(samples)-1].TimestampMs()

	tMs, st, err := l.Tick(samples...)
	if err != nil {
		return err
	}
	if each != nil {
		if err := each(tMs, st); err != nil {
			return err
		}
	}
	for tMs <= lastMs {
		tMs, st, err = l.Tick()
		if err != nil {
			return err
		}
		if each != nil {
			if err := each(tMs, st); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReplayPaced replays a recording at speed times real time, sleeping on
// the clock so that logical milliseconds track wall-clock milliseconds.
// A speed of 2 plays twice as fast; anything non-positive collapses to a
// flat-out replay.
func ReplayPaced(l *estimator.Loop, samples []estimator.Sample, clock timeutil.Clock, speed float64, each func(tMs int64, st estimator.ExternalizedState) error) error {
	if speed <= 0 {
		return Replay(l, samples, each)
	}
	if len(samples) == 0 {
		return estimator.ErrEmptyFirstBatch
	}

	start := clock.Now()
	epochMs := samples[0].TimestampMs()
	return Replay(l, samples, func(tMs int64, st estimator.ExternalizedState) error {
		elapsed := time.Duration(float64(tMs-epochMs)/speed) * time.Millisecond
		if ahead := elapsed - clock.Since(start); ahead > 0 {
			clock.Sleep(ahead)
		}
		if each != nil {
			return each(tMs, st)
		}
		return nil
	})
}
