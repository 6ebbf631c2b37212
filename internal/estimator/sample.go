package estimator

import "github.com/sojez1/flightstate/internal/geom"

// Sample is one raw, time-tagged sensor reading. The concrete types below
// form a closed set; the loop's dispatch switches over them exhaustively
// and treats any other implementation as a programming error.
type Sample interface {
	// TimestampMs is the capture time of the reading in milliseconds.
	TimestampMs() int64

	sealedSample()
}

// TdoaSample is a time-difference-of-arrival ranging reading between two
// anchors.
type TdoaSample struct {
	TimeMs       int64
	AnchorIDA    int
	AnchorIDB    int
	DistanceDiff float64 // |vehicle−anchorB| − |vehicle−anchorA|, metres
}

// YawErrorSample is an externally supplied yaw correction.
type YawErrorSample struct {
	TimeMs   int64
	YawError float64 // radians
}

// SweepAngleSample is a bearing reading from one sweep plane of a rotating
// base station, seen by one of the on-board light sensors.
type SweepAngleSample struct {
	TimeMs             int64
	SensorID           int
	BasestationID      int
	SweepID            int
	T                  float64 // rotor phase time of the hit, seconds
	MeasuredSweepAngle float64 // radians
}

// AccelerationSample is a raw accelerometer reading in g units.
type AccelerationSample struct {
	TimeMs int64
	Acc    geom.Vec3
}

// GyroscopeSample is a raw gyroscope reading in degrees per second.
type GyroscopeSample struct {
	TimeMs int64
	Gyro   geom.Vec3
}

func (s *TdoaSample) TimestampMs() int64         { return s.TimeMs }
func (s *YawErrorSample) TimestampMs() int64     { return s.TimeMs }
func (s *SweepAngleSample) TimestampMs() int64   { return s.TimeMs }
func (s *AccelerationSample) TimestampMs() int64 { return s.TimeMs }
func (s *GyroscopeSample) TimestampMs() int64    { return s.TimeMs }

func (*TdoaSample) sealedSample()         {}
func (*YawErrorSample) sealedSample()     {}
func (*SweepAngleSample) sealedSample()   {}
func (*AccelerationSample) sealedSample() {}
func (*GyroscopeSample) sealedSample()    {}

// Queue is the shared sample queue between the producer and the loop:
// the producer appends at the tail, the loop removes ready samples from
// the head. Single writer, single reader, no internal locking.
type Queue struct {
	samples []Sample
}

// NewQueue builds a queue pre-populated with the given samples in order.
func NewQueue(samples ...Sample) *Queue {
	q := &Queue{samples: make([]Sample, len(samples))}
	copy(q.samples, samples)
	return q
}

// Push appends a sample at the tail of the queue.
func (q *Queue) Push(s Sample) {
	q.samples = append(q.samples, s)
}

// Len returns the number of queued samples.
func (q *Queue) Len() int {
	return len(q.samples)
}

// Peek returns the head sample without removing it.
func (q *Queue) Peek() (Sample, bool) {
	if len(q.samples) == 0 {
		return nil, false
	}
	return q.samples[0], true
}

func (q *Queue) popFront() Sample {
	s := q.samples[0]
	q.samples[0] = nil
	q.samples = q.samples[1:]
	return s
}
