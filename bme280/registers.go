package bme280

import (
	"fmt"
	"strings"
	"time"
)

// I²C addresses. SDO low selects 0x76, SDO high 0x77.
const (
	Address    uint16 = 0x76
	AddressAlt uint16 = 0x77
)

// Register map.
const (
	regCalibTP  byte = 0x88 // dig_T1..dig_P9, 24 bytes
	regCalibH1  byte = 0xA1 // dig_H1, 1 byte
	regChipID   byte = 0xD0
	regReset    byte = 0xE0
	regCalibH   byte = 0xE1 // dig_H2..dig_H6, 7 bytes
	regCtrlHum  byte = 0xF2
	regStatus   byte = 0xF3
	regCtrlMeas byte = 0xF4
	regConfig   byte = 0xF5
	regPressMSB byte = 0xF7 // burst start: press[3] temp[3] hum[2]
)

const (
	chipID   = 0x60
	resetCmd = 0xB6

	calibTPLen = 24
	calibHLen  = 7
	dataLen    = 8
)

// Status register bits.
const (
	statusImUpdate  = 1 << 0 // NVM data being copied to image registers
	statusMeasuring = 1 << 3
)

// Control and config register packing.
const (
	ctrlHumMask = 0x07

	ctrlMeasOsrsTShift = 5
	ctrlMeasOsrsPShift = 2
	ctrlMeasModeMask   = 0x03

	configStandbyShift = 5
	configFilterShift  = 2
)

// Trim block layout. dig_T1..dig_P9 are little-endian 16-bit pairs at
// consecutive offsets of the 0x88 block; the humidity block at 0xE1 packs
// dig_H4 and dig_H5 as 12-bit values sharing the nibbles of 0xE5.
const (
	offT1 = 0
	offT2 = 2
	offT3 = 4
	offP1 = 6
	offP2 = 8
	offP3 = 10
	offP4 = 12
	offP5 = 14
	offP6 = 16
	offP7 = 18
	offP8 = 20
	offP9 = 22

	offH2     = 0 // 0xE1/0xE2
	offH3     = 2 // 0xE3
	offH4MSB  = 3 // 0xE4, dig_H4[11:4]
	offH45LSB = 4 // 0xE5, dig_H4[3:0] low nibble, dig_H5[3:0] high nibble
	offH5MSB  = 5 // 0xE6, dig_H5[11:4]
	offH6     = 6 // 0xE7

	h4LSBMask  = 0x0F
	h5LSBShift = 4
	h45Shift   = 4
)

// Raw data burst layout.
const (
	offPress = 0
	offTemp  = 3
	offHum   = 6

	rawMSBShift  = 12
	rawLSBShift  = 4
	rawXLSBShift = 4
	humMSBShift  = 8
)

// Mode is the sensor power mode.
type Mode uint8

const (
	Sleep  Mode = 0
	Forced Mode = 1
	Normal Mode = 3
)

func (m Mode) String() string {
	switch m {
	case Sleep:
		return "sleep"
	case Forced:
		return "forced"
	case Normal:
		return "normal"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// ParseMode accepts "sleep", "forced" or "normal".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sleep":
		return Sleep, nil
	case "forced":
		return Forced, nil
	case "normal", "":
		return Normal, nil
	}
	return 0, fmt.Errorf("bme280: unknown mode %q", s)
}

// Oversampling is the number of ADC samples averaged per measurement.
type Oversampling uint8

const (
	Skipped Oversampling = iota
	O1x
	O2x
	O4x
	O8x
	O16x
)

// OversamplingFromFactor maps 0, 1, 2, 4, 8 or 16 to its register value.
func OversamplingFromFactor(n int) (Oversampling, error) {
	switch n {
	case 0:
		return Skipped, nil
	case 1:
		return O1x, nil
	case 2:
		return O2x, nil
	case 4:
		return O4x, nil
	case 8:
		return O8x, nil
	case 16:
		return O16x, nil
	}
	return 0, fmt.Errorf("bme280: invalid oversampling factor %d", n)
}

// Factor returns the number of samples, 0 when skipped.
func (o Oversampling) Factor() int {
	if o == Skipped || o > O16x {
		return 0
	}
	return 1 << (o - 1)
}

func (o Oversampling) String() string {
	if o == Skipped {
		return "skipped"
	}
	return fmt.Sprintf("%dx", o.Factor())
}

// Filter is the IIR filter coefficient.
type Filter uint8

const (
	FilterOff Filter = iota
	Filter2
	Filter4
	Filter8
	Filter16
)

// FilterFromCoefficient maps 0, 2, 4, 8 or 16 to its register value.
func FilterFromCoefficient(n int) (Filter, error) {
	switch n {
	case 0:
		return FilterOff, nil
	case 2:
		return Filter2, nil
	case 4:
		return Filter4, nil
	case 8:
		return Filter8, nil
	case 16:
		return Filter16, nil
	}
	return 0, fmt.Errorf("bme280: invalid filter coefficient %d", n)
}

func (f Filter) String() string {
	if f == FilterOff {
		return "off"
	}
	return fmt.Sprintf("x%d", 1<<f)
}

// Standby is the idle time between measurements in normal mode.
type Standby uint8

const (
	Standby0_5ms Standby = iota
	Standby62_5ms
	Standby125ms
	Standby250ms
	Standby500ms
	Standby1000ms
	Standby10ms
	Standby20ms
)

var standbyDurations = [...]time.Duration{
	Standby0_5ms:  500 * time.Microsecond,
	Standby62_5ms: 62500 * time.Microsecond,
	Standby125ms:  125 * time.Millisecond,
	Standby250ms:  250 * time.Millisecond,
	Standby500ms:  500 * time.Millisecond,
	Standby1000ms: time.Second,
	Standby10ms:   10 * time.Millisecond,
	Standby20ms:   20 * time.Millisecond,
}

// StandbyFromDuration returns the register value for one of the durations
// the device supports exactly.
func StandbyFromDuration(d time.Duration) (Standby, error) {
	for i, v := range standbyDurations {
		if v == d {
			return Standby(i), nil
		}
	}
	return 0, fmt.Errorf("bme280: unsupported standby time %s", d)
}

// Duration returns the idle time selected by s.
func (s Standby) Duration() time.Duration {
	if int(s) >= len(standbyDurations) {
		return 0
	}
	return standbyDurations[s]
}

func (s Standby) String() string { return s.Duration().String() }

// Settings is the full measurement configuration written by Configure.
type Settings struct {
	Mode        Mode
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Filter      Filter
	Standby     Standby
}

// DefaultSettings is normal mode, T 2x, P 4x, H 2x, IIR 4, 62.5 ms standby.
func DefaultSettings() Settings {
	return Settings{
		Mode:        Normal,
		Temperature: O2x,
		Pressure:    O4x,
		Humidity:    O2x,
		Filter:      Filter4,
		Standby:     Standby62_5ms,
	}
}

func (s Settings) validate() error {
	switch {
	case s.Mode != Sleep && s.Mode != Forced && s.Mode != Normal:
		return fmt.Errorf("%w: mode %d", ErrInvalidSettings, s.Mode)
	case s.Temperature == Skipped:
		// pressure and humidity compensation need the temperature
		return fmt.Errorf("%w: temperature cannot be skipped", ErrInvalidSettings)
	case s.Temperature > O16x, s.Pressure > O16x, s.Humidity > O16x:
		return fmt.Errorf("%w: oversampling out of range", ErrInvalidSettings)
	case s.Filter > Filter16:
		return fmt.Errorf("%w: filter %d", ErrInvalidSettings, s.Filter)
	case s.Standby > Standby20ms:
		return fmt.Errorf("%w: standby %d", ErrInvalidSettings, s.Standby)
	}
	return nil
}

func (s Settings) ctrlHum() byte {
	return byte(s.Humidity) & ctrlHumMask
}

func (s Settings) ctrlMeas() byte {
	return byte(s.Temperature)<<ctrlMeasOsrsTShift |
		byte(s.Pressure)<<ctrlMeasOsrsPShift |
		byte(s.Mode)&ctrlMeasModeMask
}

func (s Settings) config() byte {
	return byte(s.Standby)<<configStandbyShift | byte(s.Filter)<<configFilterShift
}

// MeasurementTime is the maximum conversion time for s, from the
// datasheet's typical/maximum timing appendix.
func (s Settings) MeasurementTime() time.Duration {
	us := 1250 + 2300*s.Temperature.Factor()
	if n := s.Pressure.Factor(); n > 0 {
		us += 2300*n + 575
	}
	if n := s.Humidity.Factor(); n > 0 {
		us += 2300*n + 575
	}
	return time.Duration(us) * time.Microsecond
}
