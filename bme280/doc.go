// Package bme280 drives a Bosch BME280 pressure/temperature/humidity sensor
// over I²C.
//
// Open resets the device and loads its factory trim; Configure writes the
// oversampling, filter and standby settings; Read performs one burst read of
// the data registers and compensates it with the datasheet's fixed-point
// formulas:
//
//	s, err := bme280.Open(bus, bme280.Options{})
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Configure(bme280.DefaultSettings()); err != nil { ... }
//	r, err := s.Read() // r.Temperature °C, r.Pressure Pa, r.Humidity %RH
//
// Compensation is exposed on Calibration as pure functions. Temperature
// compensation yields a FineTemp which pressure and humidity compensation
// take as an explicit argument; it must come from the same RawSample.
//
// Datasheet:
// https://www.bosch-sensortec.com/media/boschsensortec/downloads/datasheets/bst-bme280-ds002.pdf
package bme280
