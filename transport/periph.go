package transport

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

func openPeriph(cfg Config, log logrus.FieldLogger) (Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("transport: host init: %w", err)
	}
	b, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, fmt.Errorf("transport: open i2c %q: %w", cfg.Bus, err)
	}
	if p, ok := b.(i2c.Pins); ok {
		sda, scl := p.SDA().Name(), p.SCL().Name()
		if err := checkPins(cfg, sda, scl); err != nil {
			b.Close()
			return nil, err
		}
		log = log.WithFields(logrus.Fields{"sda": sda, "scl": scl})
	}
	if cfg.ClockHz > 0 {
		if err := b.SetSpeed(physic.Frequency(cfg.ClockHz) * physic.Hertz); err != nil {
			b.Close()
			return nil, fmt.Errorf("transport: set speed %d Hz: %w", cfg.ClockHz, err)
		}
	}
	log.WithField("clock_hz", cfg.ClockHz).Info("i2c bus open")
	return b, nil
}
