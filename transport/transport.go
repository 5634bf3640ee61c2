// Package transport opens the host I²C bus that the sensor session owns.
// Every backend returns a handle satisfying drivers.I2C, so the driver never
// sees which library sits underneath.
package transport

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/drivers"
)

// Backend names.
const (
	Periph = "periph"
	D2R2   = "d2r2"
)

var (
	ErrUnknownBackend = errors.New("transport: unknown backend")
	ErrPinMismatch    = errors.New("transport: bus pins do not match configuration")
)

// Bus is an owned bus handle.
type Bus interface {
	drivers.I2C
	io.Closer
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend string
	// Bus is the periph bus name ("" for the first one) or the d2r2 bus
	// number ("1" on a Raspberry Pi).
	Bus string
	// SDA and SCL are the expected pin names. Empty skips the check.
	SDA string
	SCL string
	// ClockHz is the requested bus clock; 0 keeps the bus default.
	ClockHz int64
}

// Open opens the bus named by cfg.
func Open(cfg Config, log logrus.FieldLogger) (Bus, error) {
	log = log.WithFields(logrus.Fields{"backend": cfg.Backend, "bus": cfg.Bus})
	switch cfg.Backend {
	case Periph, "":
		return openPeriph(cfg, log)
	case D2R2:
		return openD2R2(cfg, log)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownBackend, cfg.Backend)
}

// checkPins compares the pins a bus reports against the configured ones.
func checkPins(cfg Config, sda, scl string) error {
	if cfg.SDA != "" && cfg.SDA != sda {
		return fmt.Errorf("%w: SDA is %s, want %s", ErrPinMismatch, sda, cfg.SDA)
	}
	if cfg.SCL != "" && cfg.SCL != scl {
		return fmt.Errorf("%w: SCL is %s, want %s", ErrPinMismatch, scl, cfg.SCL)
	}
	return nil
}
