package bme280

import (
	"errors"
	"fmt"
)

// Errors returned by the driver.
var (
	ErrClosed             = errors.New("bme280: session closed")
	ErrNotConfigured      = errors.New("bme280: not configured")
	ErrChipID             = errors.New("bme280: unexpected chip id")
	ErrResetTimeout       = errors.New("bme280: nvm copy still running after reset")
	ErrMeasurementTimeout = errors.New("bme280: measurement timeout")
	ErrInvalidSettings    = errors.New("bme280: invalid settings")
	ErrChannelSkipped     = errors.New("bme280: channel oversampling is skipped")
)

// BusError is a failed bus transaction, naming the register and operation.
type BusError struct {
	Op  string
	Reg byte
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bme280: %s (reg 0x%02X): %v", e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }
