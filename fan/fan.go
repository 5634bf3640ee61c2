// Package fan maps temperature to a cooling fan PWM duty cycle.
package fan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/Uranury/envnode/mathx"
)

// Level13Max is full scale of the 13-bit duty level reported in logs.
const Level13Max = 8191

var ErrUnknownPin = errors.New("fan: unknown pin")

// Duty maps temperature linearly from [minTemp, maxTemp] onto [0, 1]: 0 at
// or below minTemp, 1 at or above maxTemp.
func Duty(temperature, minTemp, maxTemp float32) float32 {
	return mathx.Fraction(temperature, minTemp, maxTemp)
}

// Level13 returns d as a 13-bit level.
func Level13(d float32) uint16 {
	return uint16(mathx.Clamp(d, 0, 1)*Level13Max + 0.5)
}

// Output is a PWM-capable pin.
type Output interface {
	PWM(duty gpio.Duty, f physic.Frequency) error
}

// Config holds the mapping thresholds and PWM frequency.
type Config struct {
	MinTemp float32
	MaxTemp float32
	FreqHz  int64
}

// Controller applies Duty to an Output.
type Controller struct {
	mu   sync.Mutex
	out  Output
	cfg  Config
	log  logrus.FieldLogger
	duty float32
}

// NewController drives out; a zero FreqHz defaults to 4 kHz.
func NewController(out Output, cfg Config, log logrus.FieldLogger) *Controller {
	if cfg.FreqHz <= 0 {
		cfg.FreqHz = 4000
	}
	return &Controller{out: out, cfg: cfg, log: log}
}

// Open drives the named GPIO pin.
func Open(pin string, cfg Config, log logrus.FieldLogger) (*Controller, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("fan: host init: %w", err)
	}
	p := gpioreg.ByName(pin)
	if p == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownPin, pin)
	}
	c := NewController(p, cfg, log.WithField("pin", p.Name()))
	if err := c.apply(0); err != nil {
		return nil, err
	}
	return c, nil
}

// Set maps temperature to a duty cycle, applies it and returns it.
func (c *Controller) Set(temperature float32) (float32, error) {
	d := Duty(temperature, c.cfg.MinTemp, c.cfg.MaxTemp)
	if err := c.apply(d); err != nil {
		return 0, err
	}
	c.log.WithFields(logrus.Fields{
		"temperature": temperature,
		"duty":        d,
		"level":       Level13(d),
	}).Debug("fan duty")
	return d, nil
}

// Current returns the last applied duty.
func (c *Controller) Current() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duty
}

// Close stops the fan.
func (c *Controller) Close() error {
	return c.apply(0)
}

func (c *Controller) apply(d float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	duty := gpio.Duty(float64(d)*float64(gpio.DutyMax) + 0.5)
	if err := c.out.PWM(duty, physic.Frequency(c.cfg.FreqHz)*physic.Hertz); err != nil {
		return fmt.Errorf("fan: set duty %.3f: %w", d, err)
	}
	c.duty = d
	return nil
}
