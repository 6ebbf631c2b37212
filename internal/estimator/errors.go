package estimator

import (
	"errors"
	"fmt"
)

// ErrEmptyFirstBatch is returned when the very first Tick is called with
// an empty queue: the loop seeds its clock from the first sample and has
// nothing to seed from.
var ErrEmptyFirstBatch = errors.New("estimator: cannot initialize from an empty sample batch")

// LookupError reports a measurement referencing a calibration identifier
// that is absent from the calibration context.
type LookupError struct {
	Entity string // "anchor", "basestation geometry", "basestation calibration", "sensor"
	ID     int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("estimator: unknown %s %d", e.Entity, e.ID)
}

// NumericalError reports that the filter core produced a non-finite or
// otherwise invalid state. The estimate is no longer trustworthy; the
// loop must stop.
type NumericalError struct {
	Op string
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("estimator: filter state is not finite after %s", e.Op)
}

// SequencingError reports a sample that would require simulated time to
// run backward: its timestamp precedes the loop's initialization epoch.
type SequencingError struct {
	SampleMs int64
	EpochMs  int64
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("estimator: sample timestamp %d ms precedes loop epoch %d ms", e.SampleMs, e.EpochMs)
}
