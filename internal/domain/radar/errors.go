package radar

import "errors"

// Domain errors
var (
	// Series errors
	ErrEmptySeries   = errors.New("empty series: no usable rows after cleaning")
	ErrDuplicateDate = errors.New("duplicate date in series")
	ErrInvalidPrice  = errors.New("invalid price: close must be positive")

	// Window errors
	ErrCorruptWindowState = errors.New("corrupt sparkline window state")

	// Batch errors
	ErrBatchExhausted = errors.New("batch exhausted: no instrument succeeded")

	// Config errors
	ErrNoInstruments = errors.New("no active instruments configured")

	// Repository errors
	ErrMetricNotFound     = errors.New("daily metric not found")
	ErrInstrumentNotFound = errors.New("instrument not found")
)

// IsSeriesError checks if the error invalidates one instrument's series.
// These are real input failures, counted against the instrument for the run.
func IsSeriesError(err error) bool {
	return errors.Is(err, ErrEmptySeries) ||
		errors.Is(err, ErrDuplicateDate) ||
		errors.Is(err, ErrInvalidPrice)
}
