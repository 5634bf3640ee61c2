// Package config reads the node configuration from the environment, after
// loading a .env file when one exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Uranury/envnode/bme280"
	"github.com/Uranury/envnode/fan"
	"github.com/Uranury/envnode/storage"
	"github.com/Uranury/envnode/transport"
)

type Config struct {
	HTTPAddr     string
	PollInterval time.Duration
	LogLevel     logrus.Level
	LogPath      string

	I2C    transport.Config
	Sensor bme280.Options
	BME280 bme280.Settings

	// FanPin is empty when no fan is attached.
	FanPin string
	Fan    fan.Config

	// Influx is disabled when Bucket is empty.
	Influx storage.InfluxConfig

	// DHTPin is empty when no DHT22 is attached.
	DHTPin string
}

// Load reads .env (if present) and the environment. All malformed values are
// reported together.
func Load(log logrus.FieldLogger) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment variables")
	}
	e := &env{log: log}

	cfg := Config{
		HTTPAddr:     e.str("HTTP_ADDR", ":8080"),
		PollInterval: e.duration("POLL_INTERVAL", 2*time.Second),
		LogPath:      e.str("LOG_PATH", "data/temp_log.txt"),
		I2C: transport.Config{
			Backend: e.str("I2C_BACKEND", transport.Periph),
			Bus:     e.str("I2C_BUS", ""),
			SDA:     e.str("I2C_SDA", ""),
			SCL:     e.str("I2C_SCL", ""),
			ClockHz: int64(e.integer("I2C_CLOCK_HZ", 100000)),
		},
		Sensor: bme280.Options{
			Address: e.address("BME280_ADDR", bme280.Address),
		},
		FanPin: e.str("FAN_PIN", ""),
		Fan: fan.Config{
			MinTemp: e.float("TEMP_MIN", 20),
			MaxTemp: e.float("TEMP_MAX", 27),
			FreqHz:  int64(e.integer("FAN_FREQ_HZ", 4000)),
		},
		Influx: storage.InfluxConfig{
			URL:    e.str("INFLUX_URL", "http://localhost:8086"),
			Token:  e.str("INFLUX_TOKEN", ""),
			Org:    e.str("INFLUX_ORG", ""),
			Bucket: e.str("INFLUX_BUCKET", ""),
			Node:   e.str("NODE_ID", ""),
		},
		DHTPin: e.str("DHT_PIN", ""),
	}

	lvl, err := logrus.ParseLevel(e.str("LOG_LEVEL", "info"))
	e.add("LOG_LEVEL", err)
	cfg.LogLevel = lvl

	cfg.BME280 = e.settings()

	if cfg.I2C.Backend == transport.D2R2 && cfg.I2C.Bus == "" {
		cfg.I2C.Bus = "1"
	}
	if cfg.FanPin != "" && cfg.Fan.MinTemp >= cfg.Fan.MaxTemp {
		e.add("TEMP_MIN", fmt.Errorf("%v is not below TEMP_MAX %v", cfg.Fan.MinTemp, cfg.Fan.MaxTemp))
	}
	if cfg.PollInterval <= 0 {
		e.add("POLL_INTERVAL", errors.New("must be positive"))
	}

	if len(e.errs) > 0 {
		return Config{}, errors.Join(e.errs...)
	}
	return cfg, nil
}

// env collects parse errors so one run reports every bad key.
type env struct {
	log  logrus.FieldLogger
	errs []error
}

func (e *env) add(key string, err error) {
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", key, err))
	}
}

func (e *env) str(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	e.log.Debugf("Environment variable %s not set, using %q", key, defaultValue)
	return defaultValue
}

func (e *env) integer(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	e.add(key, err)
	return v
}

func (e *env) float(key string, defaultValue float32) float32 {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(s, 32)
	e.add(key, err)
	return float32(v)
}

func (e *env) duration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(s)
	e.add(key, err)
	return v
}

// address accepts "0x76", "118" or "0o166".
func (e *env) address(key string, defaultValue uint16) uint16 {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseUint(s, 0, 7)
	e.add(key, err)
	return uint16(v)
}

func (e *env) settings() bme280.Settings {
	set := bme280.DefaultSettings()

	mode, err := bme280.ParseMode(e.str("BME280_MODE", "normal"))
	e.add("BME280_MODE", err)
	set.Mode = mode

	for _, o := range []struct {
		key string
		dst *bme280.Oversampling
		def int
	}{
		{"BME280_OSRS_T", &set.Temperature, 2},
		{"BME280_OSRS_P", &set.Pressure, 4},
		{"BME280_OSRS_H", &set.Humidity, 2},
	} {
		v, err := bme280.OversamplingFromFactor(e.integer(o.key, o.def))
		e.add(o.key, err)
		*o.dst = v
	}

	f, err := bme280.FilterFromCoefficient(e.integer("BME280_FILTER", 4))
	e.add("BME280_FILTER", err)
	set.Filter = f

	sb, err := bme280.StandbyFromDuration(e.duration("BME280_STANDBY", 62500*time.Microsecond))
	e.add("BME280_STANDBY", err)
	set.Standby = sb

	return set
}

// String renders cfg for the startup log without the Influx token.
func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "http=%s poll=%s i2c=%s/%s addr=0x%02X mode=%s",
		c.HTTPAddr, c.PollInterval, c.I2C.Backend, c.I2C.Bus, c.Sensor.Address, c.BME280.Mode)
	if c.FanPin != "" {
		fmt.Fprintf(&b, " fan=%s(%.1f..%.1f)", c.FanPin, c.Fan.MinTemp, c.Fan.MaxTemp)
	}
	if c.Influx.Bucket != "" {
		fmt.Fprintf(&b, " influx=%s/%s", c.Influx.URL, c.Influx.Bucket)
	}
	if c.DHTPin != "" {
		fmt.Fprintf(&b, " dht=%s", c.DHTPin)
	}
	return b.String()
}
