// Package monitor runs the polling loop: read every sensor, hand readings
// to the sinks and drive the fan from the primary sensor's temperature.
package monitor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Uranury/envnode/sensors"
)

// Sink consumes readings.
type Sink interface {
	Name() string
	Store(*sensors.SensorData) error
}

// Actuator is driven by temperature. Set returns the applied duty.
type Actuator interface {
	Set(temperature float32) (float32, error)
}

// Loop polls Sensors every Interval.
type Loop struct {
	Sensors []sensors.Sensor
	Sinks   []Sink
	// Fan may be nil.
	Fan Actuator
	// Primary is the SensorType whose temperature drives Fan.
	Primary  string
	Interval time.Duration
	Log      logrus.FieldLogger
}

// Run polls once immediately and then on every tick until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.Poll()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Poll()
		}
	}
}

// Poll reads every sensor once. Errors are logged and the poll continues.
func (l *Loop) Poll() {
	for _, sensor := range l.Sensors {
		log := l.Log.WithField("sensor", sensor.Name())
		data, err := sensor.Read()
		if err != nil {
			log.WithError(err).Warn("read failed")
			continue
		}
		log.WithFields(logrus.Fields(fieldsOf(data))).Debug("reading")

		for _, sink := range l.Sinks {
			if err := sink.Store(data); err != nil {
				log.WithError(err).WithField("sink", sink.Name()).Warn("store failed")
			}
		}

		if l.Fan == nil || data.SensorType != l.Primary {
			continue
		}
		t, ok := data.Fields[sensors.FieldTemperature]
		if !ok {
			continue
		}
		if _, err := l.Fan.Set(float32(t)); err != nil {
			log.WithError(err).Warn("fan update failed")
		}
	}
}

func fieldsOf(d *sensors.SensorData) map[string]any {
	m := make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		m[k] = v
	}
	return m
}
