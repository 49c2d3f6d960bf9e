package smbus

import "errors"

var (
	// ErrBusBusy means the idle-wait timed out: the host was talking.
	ErrBusBusy = errors.New("smbus: bus busy")

	// ErrBusStuck means repeated idle-wait failures tripped a peripheral
	// reinitialization.
	ErrBusStuck = errors.New("smbus: bus stuck")

	// ErrReadFailed means no attempt produced a valid single-byte sample.
	ErrReadFailed = errors.New("smbus: read failed")
)
