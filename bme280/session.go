package bme280

import (
	"errors"
	"io"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

// Conn is an owned bus handle. Tx must perform the write followed by a
// read of len(r) bytes from addr; Close releases the handle.
type Conn interface {
	drivers.I2C
	io.Closer
}

// Options controls non-register behaviour. All fields are optional.
type Options struct {
	// Address defaults to 0x76.
	Address uint16
	// PollInterval between status reads while waiting on the device.
	// Default 2 ms.
	PollInterval time.Duration
	// ResetTimeout bounds the wait for the NVM copy after soft reset.
	// Default 20 ms.
	ResetTimeout time.Duration
	// MeasureTimeout bounds a forced-mode conversion on top of the
	// datasheet maximum. Default 50 ms.
	MeasureTimeout time.Duration
}

func (o *Options) defaults() {
	if o.Address == 0 {
		o.Address = Address
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Millisecond
	}
	if o.ResetTimeout <= 0 {
		o.ResetTimeout = 20 * time.Millisecond
	}
	if o.MeasureTimeout <= 0 {
		o.MeasureTimeout = 50 * time.Millisecond
	}
}

type state uint8

const (
	stateCalibrated state = iota // reset done, trim loaded
	stateReady                   // control registers written
	stateClosed
)

// Session owns one device on one bus handle. All methods are safe for
// concurrent use; bus transactions never overlap.
type Session struct {
	mu       sync.Mutex
	conn     Conn
	opts     Options
	cal      Calibration
	settings Settings
	state    state
	fine     FineTemp

	w   [2]byte
	buf [dataLen]byte
}

// Open takes ownership of conn, soft-resets the device and loads its
// calibration. On failure conn is closed and no Session is returned.
func Open(conn Conn, opts Options) (_ *Session, err error) {
	opts.defaults()
	s := &Session{conn: conn, opts: opts}
	defer func() {
		if err != nil {
			if cerr := conn.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	}()

	id, err := s.chipID()
	if err != nil {
		return nil, err
	}
	if id != chipID {
		return nil, ErrChipID
	}
	if err := s.writeReg(regReset, resetCmd, "soft reset"); err != nil {
		return nil, err
	}
	if err := s.waitStatusClear(statusImUpdate, opts.ResetTimeout, ErrResetTimeout); err != nil {
		return nil, err
	}
	cal, err := s.loadCalibration()
	if err != nil {
		return nil, err
	}
	s.cal = cal
	s.state = stateCalibrated
	return s, nil
}

// loadCalibration reads all three trim blocks before decoding any of them.
func (s *Session) loadCalibration() (Calibration, error) {
	var tp [calibTPLen]byte
	var h1 [1]byte
	var h [calibHLen]byte
	if err := s.readReg(regCalibTP, tp[:], "read T/P trim"); err != nil {
		return Calibration{}, err
	}
	if err := s.readReg(regCalibH1, h1[:], "read dig_H1"); err != nil {
		return Calibration{}, err
	}
	if err := s.readReg(regCalibH, h[:], "read H trim"); err != nil {
		return Calibration{}, err
	}
	return ParseCalibration(tp[:], h1[0], h[:])
}

// Configure writes ctrl_hum, ctrl_meas and config in that order; ctrl_hum
// only takes effect after the following ctrl_meas write. On error the first
// failing register is reported and Configure may be retried.
func (s *Session) Configure(set Settings) error {
	if err := set.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return ErrClosed
	}
	if err := s.writeReg(regCtrlHum, set.ctrlHum(), "write ctrl_hum"); err != nil {
		return err
	}
	if err := s.writeReg(regCtrlMeas, set.ctrlMeas(), "write ctrl_meas"); err != nil {
		return err
	}
	if err := s.writeReg(regConfig, set.config(), "write config"); err != nil {
		return err
	}
	s.settings = set
	s.state = stateReady
	return nil
}

// Read performs one burst read of the data registers and compensates it.
// In forced mode a conversion is started first and awaited. Channels
// configured as Skipped are left out of the result.
func (s *Session) Read() (CalibratedReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.readRawLocked()
	if err != nil {
		return CalibratedReading{}, err
	}
	r, fine := s.cal.compensateEnabled(raw, s.settings)
	s.fine = fine
	return r, nil
}

// ReadRaw returns the uncompensated ADC values of one measurement cycle.
func (s *Session) ReadRaw() (RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRawLocked()
}

// ReadTemperature returns °C from a fresh measurement.
func (s *Session) ReadTemperature() (float32, error) {
	r, err := s.Read()
	return r.Temperature, err
}

// ReadPressure returns Pa from a fresh measurement, or ErrChannelSkipped.
func (s *Session) ReadPressure() (float32, error) {
	r, err := s.Read()
	if err == nil && !r.HasPressure {
		err = ErrChannelSkipped
	}
	return r.Pressure, err
}

// ReadHumidity returns %RH from a fresh measurement, or ErrChannelSkipped.
func (s *Session) ReadHumidity() (float32, error) {
	r, err := s.Read()
	if err == nil && !r.HasHumidity {
		err = ErrChannelSkipped
	}
	return r.Humidity, err
}

// Measuring reports whether a conversion is running.
func (s *Session) Measuring() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return false, ErrClosed
	}
	st, err := s.status()
	return st&statusMeasuring != 0, err
}

// Calibration returns a copy of the loaded trim coefficients.
func (s *Session) Calibration() Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cal
}

// Settings returns the last configuration written.
func (s *Session) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// FineTemp returns the fine temperature of the last Read.
func (s *Session) FineTemp() FineTemp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fine
}

// Close releases the bus handle. Calling Close twice is a caller error and
// returns ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return ErrClosed
	}
	s.state = stateClosed
	return s.conn.Close()
}

func (s *Session) readRawLocked() (RawSample, error) {
	switch s.state {
	case stateClosed:
		return RawSample{}, ErrClosed
	case stateCalibrated:
		return RawSample{}, ErrNotConfigured
	}
	if s.settings.Mode == Forced {
		if err := s.writeReg(regCtrlMeas, s.settings.ctrlMeas(), "trigger forced"); err != nil {
			return RawSample{}, err
		}
		time.Sleep(s.settings.MeasurementTime())
		if err := s.waitStatusClear(statusMeasuring, s.opts.MeasureTimeout, ErrMeasurementTimeout); err != nil {
			return RawSample{}, err
		}
	}
	// One transaction so all three values come from the same cycle.
	if err := s.readReg(regPressMSB, s.buf[:], "read data"); err != nil {
		return RawSample{}, err
	}
	return decodeRaw(s.buf[:]), nil
}

func (s *Session) chipID() (byte, error) {
	var id [1]byte
	err := s.readReg(regChipID, id[:], "read chip id")
	return id[0], err
}

func (s *Session) status() (byte, error) {
	var st [1]byte
	err := s.readReg(regStatus, st[:], "read status")
	return st[0], err
}

// waitStatusClear polls the status register until mask clears or timeout
// elapses, in which case errTimeout is returned.
func (s *Session) waitStatusClear(mask byte, timeout time.Duration, errTimeout error) error {
	deadline := time.Now().Add(timeout)
	for {
		st, err := s.status()
		if err != nil {
			return err
		}
		if st&mask == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return errTimeout
		}
		time.Sleep(s.opts.PollInterval)
	}
}

func (s *Session) readReg(reg byte, r []byte, op string) error {
	s.w[0] = reg
	if err := s.conn.Tx(s.opts.Address, s.w[:1], r); err != nil {
		return &BusError{Op: op, Reg: reg, Err: err}
	}
	return nil
}

func (s *Session) writeReg(reg, val byte, op string) error {
	s.w[0] = reg
	s.w[1] = val
	if err := s.conn.Tx(s.opts.Address, s.w[:2], nil); err != nil {
		return &BusError{Op: op, Reg: reg, Err: err}
	}
	return nil
}
