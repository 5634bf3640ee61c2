package sensors

import (
	"time"

	"github.com/Uranury/envnode/bme280"
)

// BME280 adapts a calibrated bme280.Session to the Sensor interface.
type BME280 struct {
	Session *bme280.Session
}

func (b *BME280) Name() string {
	return "BME280"
}

func (b *BME280) Read() (*SensorData, error) {
	r, err := b.Session.Read()
	if err != nil {
		return nil, err
	}

	fields := map[string]float64{FieldTemperature: float64(r.Temperature)}
	// skipped channels are left out
	if r.HasPressure {
		fields[FieldPressure] = float64(r.Pressure)
	}
	if r.HasHumidity {
		fields[FieldHumidity] = float64(r.Humidity)
	}

	return &SensorData{
		SensorType: "bme280",
		Fields:     fields,
		Timestamp:  time.Now(),
	}, nil
}

// Close releases the device and its bus.
func (b *BME280) Close() error {
	return b.Session.Close()
}
