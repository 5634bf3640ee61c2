package sensors

import "time"

// SensorData is the unified record every sensor produces and every sink
// consumes.
type SensorData struct {
	SensorType string             `json:"sensor_type"`
	Fields     map[string]float64 `json:"fields"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Field names shared by sensors and sinks.
const (
	FieldTemperature = "temperature" // °C
	FieldPressure    = "pressure"    // Pa
	FieldHumidity    = "humidity"    // %RH
)

// Sensor interface that all sensors must implement
type Sensor interface {
	Read() (*SensorData, error)
	Name() string
}
