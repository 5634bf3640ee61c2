package sensors

import (
	"sync"
	"time"

	"github.com/MichaelS11/go-dht"
)

var dhtHostInit = sync.OnceValue(dht.HostInit)

// DHT22 is an optional single-wire temperature/humidity sensor read next to
// the BME280.
type DHT22 struct {
	Pin     string
	Retries int
	Dht     *dht.DHT
}

func NewDHT22(pin string) (*DHT22, error) {
	if err := dhtHostInit(); err != nil {
		return nil, err
	}

	d, err := dht.NewDHT(pin, dht.Celsius, "dht22")
	if err != nil {
		return nil, err
	}

	return &DHT22{Pin: pin, Retries: 11, Dht: d}, nil
}

func (d *DHT22) Name() string {
	return "DHT22"
}

func (d *DHT22) Read() (*SensorData, error) {
	humidity, temperature, err := d.Dht.ReadRetry(d.Retries)
	if err != nil {
		return nil, err
	}

	return &SensorData{
		SensorType: "dht22",
		Fields: map[string]float64{
			FieldTemperature: temperature,
			FieldHumidity:    humidity,
		},
		Timestamp: time.Now(),
	}, nil
}
