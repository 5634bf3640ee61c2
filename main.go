package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Uranury/envnode/bme280"
	"github.com/Uranury/envnode/config"
	"github.com/Uranury/envnode/fan"
	"github.com/Uranury/envnode/monitor"
	"github.com/Uranury/envnode/sensors"
	"github.com/Uranury/envnode/storage"
	"github.com/Uranury/envnode/transport"
	"github.com/Uranury/envnode/web"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(log)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	log.SetLevel(cfg.LogLevel)
	log.Infof("config: %s", cfg)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("node stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus, err := transport.Open(cfg.I2C, log)
	if err != nil {
		return err
	}
	// Open owns bus from here on and closes it on failure.
	session, err := bme280.Open(bus, cfg.Sensor)
	if err != nil {
		return err
	}
	bme := &sensors.BME280{Session: session}
	defer func() {
		if err := bme.Close(); err != nil {
			log.WithError(err).Warn("close sensor")
		}
	}()
	if err := session.Configure(cfg.BME280); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"addr":    cfg.Sensor.Address,
		"mode":    cfg.BME280.Mode,
		"osrs_t":  cfg.BME280.Temperature,
		"osrs_p":  cfg.BME280.Pressure,
		"osrs_h":  cfg.BME280.Humidity,
		"filter":  cfg.BME280.Filter,
		"standby": cfg.BME280.Standby,
	}).Info("BME280 configured")

	// Initialize all sensors
	all := []sensors.Sensor{bme}
	if cfg.DHTPin != "" {
		dht, err := sensors.NewDHT22(cfg.DHTPin)
		if err != nil {
			log.WithError(err).WithField("pin", cfg.DHTPin).Warn("DHT22 unavailable, continuing without it")
		} else {
			all = append(all, dht)
		}
	}

	tempLog, err := storage.OpenTempLog(cfg.LogPath, "bme280")
	if err != nil {
		return err
	}
	defer tempLog.Close()

	hub := web.NewHub(log)
	latest := web.NewLatest()
	sinks := []monitor.Sink{tempLog, latest, hub}

	if cfg.Influx.Bucket != "" {
		if cfg.Influx.Node == "" {
			cfg.Influx.Node = uuid.NewString()
		}
		influx := storage.NewInflux(cfg.Influx, log)
		defer influx.Close()
		sinks = append(sinks, influx)
	}

	loop := &monitor.Loop{
		Sensors:  all,
		Sinks:    sinks,
		Primary:  "bme280",
		Interval: cfg.PollInterval,
		Log:      log,
	}
	if cfg.FanPin != "" {
		fc, err := fan.Open(cfg.FanPin, cfg.Fan, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := fc.Close(); err != nil {
				log.WithError(err).Warn("stop fan")
			}
		}()
		loop.Fan = fc
	}

	srv := &web.Server{
		Logs:        tempLog,
		Latest:      latest,
		Hub:         hub,
		Primary:     bme,
		PrimaryType: "bme280",
		Log:         log,
	}

	log.Infof("Monitoring sensors: %d", len(all))
	for _, sensor := range all {
		log.Infof("  - %s", sensor.Name())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, cfg.HTTPAddr) })
	g.Go(func() error { return loop.Run(ctx) })
	err = g.Wait()
	log.Info("shutting down")
	return err
}
