package bme280

import (
	"periph.io/x/conn/v3/physic"

	"github.com/Uranury/envnode/mathx"
)

// FineTemp is the datasheet's t_fine (t_fine/5120 is °C), consumed by
// pressure and humidity compensation. It is only meaningful for the
// RawSample whose temperature produced it.
type FineTemp int32

// humidityMax is 100 %RH in Q22.10 before the final >>12.
const humidityMax = 419430400

// RawSample is one measurement cycle as read in a single burst.
type RawSample struct {
	Pressure    uint32 // 20 bits
	Temperature uint32 // 20 bits
	Humidity    uint16
}

// decodeRaw unpacks the 8-byte burst starting at press_msb.
func decodeRaw(b []byte) RawSample {
	return RawSample{
		Pressure: uint32(b[offPress])<<rawMSBShift |
			uint32(b[offPress+1])<<rawLSBShift |
			uint32(b[offPress+2])>>rawXLSBShift,
		Temperature: uint32(b[offTemp])<<rawMSBShift |
			uint32(b[offTemp+1])<<rawLSBShift |
			uint32(b[offTemp+2])>>rawXLSBShift,
		Humidity: uint16(b[offHum])<<humMSBShift | uint16(b[offHum+1]),
	}
}

// CalibratedReading is a compensated measurement. Pressure and Humidity are
// zero and their Has flag false when the channel's oversampling is skipped.
type CalibratedReading struct {
	Temperature float32 // °C
	Pressure    float32 // Pa
	Humidity    float32 // %RH, 0..100

	HasPressure bool
	HasHumidity bool
}

// Env converts r to periph physical units. Skipped channels stay zero.
func (r CalibratedReading) Env() physic.Env {
	e := physic.Env{
		Temperature: physic.ZeroCelsius + physic.Temperature(float64(r.Temperature)*float64(physic.Kelvin)),
	}
	if r.HasPressure {
		e.Pressure = physic.Pressure(float64(r.Pressure) * float64(physic.Pascal))
	}
	if r.HasHumidity {
		e.Humidity = physic.RelativeHumidity(float64(r.Humidity) * float64(physic.PercentRH))
	}
	return e
}

// Compensate runs temperature compensation and feeds its fine temperature
// to pressure and humidity compensation of the same sample.
func (c *Calibration) Compensate(raw RawSample) (CalibratedReading, FineTemp) {
	t, fine := c.CompensateTemperature(raw.Temperature)
	return CalibratedReading{
		Temperature: t,
		Pressure:    c.CompensatePressure(raw.Pressure, fine),
		Humidity:    c.CompensateHumidity(raw.Humidity, fine),
		HasPressure: true,
		HasHumidity: true,
	}, fine
}

// compensateEnabled is Compensate limited to the channels set measures.
// Skipped channels are never compensated.
func (c *Calibration) compensateEnabled(raw RawSample, set Settings) (CalibratedReading, FineTemp) {
	t, fine := c.CompensateTemperature(raw.Temperature)
	r := CalibratedReading{Temperature: t}
	if set.Pressure != Skipped {
		r.Pressure = c.CompensatePressure(raw.Pressure, fine)
		r.HasPressure = true
	}
	if set.Humidity != Skipped {
		r.Humidity = c.CompensateHumidity(raw.Humidity, fine)
		r.HasHumidity = true
	}
	return r, fine
}

// CompensateTemperature returns °C and the fine temperature for adcT.
func (c *Calibration) CompensateTemperature(adcT uint32) (float32, FineTemp) {
	centi, fine := c.compensateTemperatureInt(int32(adcT))
	return float32(centi) / 100, fine
}

// CompensatePressure returns Pa for adcP. fine must come from the same
// sample's temperature. A negative intermediate result wraps through the
// unsigned conversion, as in the Bosch reference code, so coefficients far
// outside a real part's trim can yield values above 1.6e7 Pa.
func (c *Calibration) CompensatePressure(adcP uint32, fine FineTemp) float32 {
	return float32(float64(c.compensatePressureInt(int32(adcP), fine)) / 256)
}

// CompensateHumidity returns %RH in [0, 100] for adcH. fine must come from
// the same sample's temperature.
func (c *Calibration) CompensateHumidity(adcH uint16, fine FineTemp) float32 {
	return float32(c.compensateHumidityInt(int32(adcH), fine)) / 1024
}

// compensateTemperatureInt returns temperature in 0.01 °C. 5123 is 51.23 °C.
func (c *Calibration) compensateTemperatureInt(adcT int32) (int32, FineTemp) {
	t1 := int32(c.T1)
	var1 := (((adcT >> 3) - (t1 << 1)) * int32(c.T2)) >> 11
	var2 := (((((adcT >> 4) - t1) * ((adcT >> 4) - t1)) >> 12) * int32(c.T3)) >> 14
	fine := var1 + var2
	return (fine*5 + 128) >> 8, FineTemp(fine)
}

// compensatePressureInt returns pressure in Pa as Q24.8. 24674867 is
// 24674867/256 = 96386.2 Pa. A zero divisor yields 0.
func (c *Calibration) compensatePressureInt(adcP int32, fine FineTemp) uint32 {
	var1 := int64(fine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = (((int64(1) << 47) + var1) * int64(c.P1)) >> 33
	if var1 == 0 {
		return 0
	}
	p := int64(1048576) - int64(adcP)
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	p = ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)
	return uint32(p)
}

// compensateHumidityInt returns humidity in %RH as Q22.10. 47445 is
// 47445/1024 = 46.333 %RH.
func (c *Calibration) compensateHumidityInt(adcH int32, fine FineTemp) uint32 {
	v := int32(fine) - 76800
	v = ((((adcH << 14) - (int32(c.H4) << 20) - (int32(c.H5) * v)) + 16384) >> 15) *
		(((((((v*int32(c.H6))>>10)*(((v*int32(c.H3))>>11)+32768))>>10)+2097152)*int32(c.H2) + 8192) >> 14)
	v -= ((((v >> 15) * (v >> 15)) >> 7) * int32(c.H1)) >> 4
	v = mathx.Clamp(v, 0, humidityMax)
	return uint32(v >> 12)
}
