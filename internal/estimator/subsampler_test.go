package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sojez1/flightstate/internal/geom"
)

func TestSubSampler_ScaledMean(t *testing.T) {
	s := NewSubSampler(2.0)
	s.Accumulate(geom.Vec3{X: 1, Y: 2, Z: 3})
	s.Accumulate(geom.Vec3{X: 3, Y: 4, Z: 5})
	assert.Equal(t, 2, s.Count())

	out := s.Finalize()
	assert.Equal(t, geom.Vec3{X: 4, Y: 6, Z: 8}, out)
}

func TestSubSampler_EmptyWindowYieldsZero(t *testing.T) {
	s := NewSubSampler(9.81)
	out := s.Finalize()
	assert.Equal(t, geom.Vec3{}, out)
}

func TestSubSampler_FinalizeResetsWindow(t *testing.T) {
	s := NewSubSampler(1.0)
	s.Accumulate(geom.Vec3{X: 10})
	s.Finalize()

	assert.Equal(t, 0, s.Count())
	s.Accumulate(geom.Vec3{X: 2})
	out := s.Finalize()
	assert.Equal(t, geom.Vec3{X: 2}, out, "previous window must not leak into the next")
}

func TestQueue_PushPeekOrder(t *testing.T) {
	q := NewQueue()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Peek()
	assert.False(t, ok)

	a := &AccelerationSample{TimeMs: 1}
	b := &GyroscopeSample{TimeMs: 2}
	q.Push(a)
	q.Push(b)

	head, ok := q.Peek()
	assert.True(t, ok)
	assert.Same(t, Sample(a), head)
	assert.Equal(t, 2, q.Len())

	assert.Same(t, Sample(a), q.popFront())
	assert.Same(t, Sample(b), q.popFront())
	assert.Equal(t, 0, q.Len())
}
