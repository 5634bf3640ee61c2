package bme280

import (
	"encoding/binary"
	"fmt"
)

// Calibration holds the factory trim coefficients of one device. Values are
// only produced by ParseCalibration from the device's trim registers.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16 // signed 12-bit
	H5 int16 // signed 12-bit
	H6 int8
}

// ParseCalibration decodes the 24-byte block read from 0x88, the dig_H1
// byte at 0xA1 and the 7-byte block read from 0xE1.
func ParseCalibration(tp []byte, h1 byte, h []byte) (Calibration, error) {
	if len(tp) != calibTPLen {
		return Calibration{}, fmt.Errorf("bme280: temperature/pressure trim is %d bytes, want %d", len(tp), calibTPLen)
	}
	if len(h) != calibHLen {
		return Calibration{}, fmt.Errorf("bme280: humidity trim is %d bytes, want %d", len(h), calibHLen)
	}
	le := binary.LittleEndian
	c := Calibration{
		T1: le.Uint16(tp[offT1:]),
		T2: int16(le.Uint16(tp[offT2:])),
		T3: int16(le.Uint16(tp[offT3:])),

		P1: le.Uint16(tp[offP1:]),
		P2: int16(le.Uint16(tp[offP2:])),
		P3: int16(le.Uint16(tp[offP3:])),
		P4: int16(le.Uint16(tp[offP4:])),
		P5: int16(le.Uint16(tp[offP5:])),
		P6: int16(le.Uint16(tp[offP6:])),
		P7: int16(le.Uint16(tp[offP7:])),
		P8: int16(le.Uint16(tp[offP8:])),
		P9: int16(le.Uint16(tp[offP9:])),

		H1: h1,
		H2: int16(le.Uint16(h[offH2:])),
		H3: h[offH3],
		// The MSB bytes carry the sign of the 12-bit fields.
		H4: int16(int8(h[offH4MSB]))<<h45Shift | int16(h[offH45LSB]&h4LSBMask),
		H5: int16(int8(h[offH5MSB]))<<h45Shift | int16(h[offH45LSB]>>h5LSBShift),
		H6: int8(h[offH6]),
	}
	return c, nil
}
