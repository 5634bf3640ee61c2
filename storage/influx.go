package storage

import (
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/Uranury/envnode/sensors"
)

// InfluxConfig names the InfluxDB target.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Node tags every point with this node's id.
	Node string
}

// Influx writes readings as "sensor_data" points through the non-blocking
// write API.
type Influx struct {
	write api.WriteAPI
	// closeClient closes the write API, which ends its Errors channel.
	closeClient func()
	node        string
	done        chan struct{}
}

func NewInflux(cfg InfluxConfig, log logrus.FieldLogger) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	w := client.WriteAPI(cfg.Org, cfg.Bucket)
	log = log.WithFields(logrus.Fields{"url": cfg.URL, "bucket": cfg.Bucket})
	return newInflux(w, client.Close, cfg.Node, log)
}

func newInflux(w api.WriteAPI, closeClient func(), node string, log logrus.FieldLogger) *Influx {
	i := &Influx{write: w, closeClient: closeClient, node: node, done: make(chan struct{})}
	go func() {
		defer close(i.done)
		for err := range w.Errors() {
			log.WithError(err).Warn("influx write failed")
		}
	}()
	return i
}

func (i *Influx) Name() string { return "influx" }

func (i *Influx) Store(data *sensors.SensorData) error {
	i.write.WritePoint(point(data, i.node))
	return nil
}

// Close flushes pending points, closes the client and returns once every
// write error has been logged.
func (i *Influx) Close() error {
	i.write.Flush()
	i.closeClient()
	<-i.done
	return nil
}

func point(data *sensors.SensorData, node string) *write.Point {
	p := influxdb2.NewPointWithMeasurement("sensor_data").
		AddTag("sensor", data.SensorType).
		SetTime(data.Timestamp)
	if node != "" {
		p.AddTag("node", node)
	}

	// Add all fields dynamically
	for key, value := range data.Fields {
		p.AddField(key, value)
	}
	return p
}
