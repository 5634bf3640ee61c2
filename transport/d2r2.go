package transport

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	i2c "github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"
	"github.com/sirupsen/logrus"
)

// d2r2Bus multiplexes one go-i2c handle per device address. The register
// pointer survives the stop condition between write and read, so a
// write-then-read pair is equivalent to a repeated start for register reads.
type d2r2Bus struct {
	mu   sync.Mutex
	bus  int
	devs map[uint16]*i2c.I2C
}

func openD2R2(cfg Config, log logrus.FieldLogger) (Bus, error) {
	n := 1
	if cfg.Bus != "" {
		v, err := strconv.Atoi(cfg.Bus)
		if err != nil {
			return nil, fmt.Errorf("transport: d2r2 bus %q: %w", cfg.Bus, err)
		}
		n = v
	}
	if cfg.ClockHz > 0 {
		log.WithField("clock_hz", cfg.ClockHz).Warn("d2r2 backend cannot set bus clock, using kernel default")
	}
	if cfg.SDA != "" || cfg.SCL != "" {
		log.Warn("d2r2 backend does not report pins, skipping pin check")
	}
	// go-i2c logs every transfer at debug level
	if err := logger.ChangePackageLogLevel("i2c", logger.InfoLevel); err != nil {
		log.WithError(err).Debug("cannot quiet go-i2c logger")
	}
	log.Info("i2c bus open")
	return &d2r2Bus{bus: n, devs: map[uint16]*i2c.I2C{}}, nil
}

func (b *d2r2Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.devs == nil {
		return errors.New("transport: bus closed")
	}
	dev, ok := b.devs[addr]
	if !ok {
		var err error
		dev, err = i2c.NewI2C(uint8(addr), b.bus)
		if err != nil {
			return err
		}
		b.devs[addr] = dev
	}
	if len(w) > 0 {
		if _, err := dev.WriteBytes(w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		n, err := dev.ReadBytes(r)
		if err != nil {
			return err
		}
		if n != len(r) {
			return fmt.Errorf("transport: short read %d/%d from 0x%02X", n, len(r), addr)
		}
	}
	return nil
}

func (b *d2r2Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, d := range b.devs {
		errs = append(errs, d.Close())
	}
	b.devs = nil
	return errors.Join(errs...)
}
