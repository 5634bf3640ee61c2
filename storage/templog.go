// Package storage holds the sinks that persist readings: a plain-text
// temperature log served by the web page, and InfluxDB.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Uranury/envnode/sensors"
)

// TempLog appends one "HH:MM:SS | T | P | H" line per reading of one sensor
// type. The timestamp is uptime since the log was opened.
type TempLog struct {
	mu         sync.Mutex
	path       string
	sensorType string
	f          *os.File
	start      time.Time
	now        func() time.Time
}

// OpenTempLog creates path, truncating anything from a previous run.
func OpenTempLog(path, sensorType string) (*TempLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return &TempLog{
		path:       path,
		sensorType: sensorType,
		f:          f,
		start:      time.Now(),
		now:        time.Now,
	}, nil
}

func (l *TempLog) Name() string { return "templog" }

// Store appends data if it comes from the logged sensor type.
func (l *TempLog) Store(data *sensors.SensorData) error {
	if data.SensorType != l.sensorType {
		return nil
	}
	t, ok := data.Fields[sensors.FieldTemperature]
	if !ok {
		return nil
	}

	var b strings.Builder
	b.WriteString(formatUptime(l.now().Sub(l.start)))
	fmt.Fprintf(&b, " | %.2f", t)
	if p, ok := data.Fields[sensors.FieldPressure]; ok {
		fmt.Fprintf(&b, " | %.2f", p)
	}
	if h, ok := data.Fields[sensors.FieldHumidity]; ok {
		fmt.Fprintf(&b, " | %.2f", h)
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	if _, err := l.f.WriteString(b.String()); err != nil {
		return fmt.Errorf("storage: append %s: %w", l.path, err)
	}
	return nil
}

// Contents returns the whole log.
func (l *TempLog) Contents() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return os.ReadFile(l.path)
}

// Clear truncates the log and restarts the uptime clock.
func (l *TempLog) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return os.ErrClosed
	}
	if err := l.f.Truncate(0); err != nil {
		return err
	}
	if _, err := l.f.Seek(0, 0); err != nil {
		return err
	}
	l.start = l.now()
	return nil
}

func (l *TempLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// formatUptime renders d as HH:MM:SS, wrapping hours at 24.
func formatUptime(d time.Duration) string {
	s := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", (s/3600)%24, (s/60)%60, s%60)
}
