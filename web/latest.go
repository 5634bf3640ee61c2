package web

import (
	"sync"

	"github.com/Uranury/envnode/sensors"
)

// Latest keeps the most recent reading per sensor type.
type Latest struct {
	mu   sync.RWMutex
	data map[string]sensors.SensorData
}

func NewLatest() *Latest {
	return &Latest{data: make(map[string]sensors.SensorData)}
}

func (l *Latest) Name() string { return "latest" }

// Store implements the sink interface; it never fails.
func (l *Latest) Store(data *sensors.SensorData) error {
	l.Put(data)
	return nil
}

// Put records data as the latest reading of its sensor type.
func (l *Latest) Put(data *sensors.SensorData) {
	l.mu.Lock()
	l.data[data.SensorType] = *data
	l.mu.Unlock()
}

// Get returns the latest reading of sensorType.
func (l *Latest) Get(sensorType string) (sensors.SensorData, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.data[sensorType]
	return d, ok
}
