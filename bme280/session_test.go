package bme280

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func openFake(t *testing.T) (*Session, *fakeBus) {
	t.Helper()
	f := newFakeBus()
	s, err := Open(f, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, f
}

func TestOpen_ResetAndCalibration(t *testing.T) {
	s, f := openFake(t)
	if got := s.Calibration(); got != goldenCalibration() {
		t.Fatalf("calibration %+v", got)
	}
	w := f.writeLog()
	if len(w) != 1 || w[0] != [2]byte{regReset, resetCmd} {
		t.Fatalf("writes = %v, want single soft reset", w)
	}
}

func TestOpen_CalibrationAllOrNothing(t *testing.T) {
	for _, reg := range []byte{regCalibTP, regCalibH1, regCalibH} {
		f := newFakeBus()
		f.failRead[reg] = true
		s, err := Open(f, Options{})
		if s != nil {
			t.Fatalf("reg 0x%02X: got a session with partial calibration", reg)
		}
		var be *BusError
		if !errors.As(err, &be) || be.Reg != reg {
			t.Fatalf("reg 0x%02X: err = %v, want BusError naming the register", reg, err)
		}
		if !errors.Is(err, errNACK) {
			t.Fatalf("reg 0x%02X: cause lost: %v", reg, err)
		}
		if f.closed != 1 {
			t.Fatalf("reg 0x%02X: bus closed %d times, want 1", reg, f.closed)
		}
	}
}

func TestOpen_ResetFailureReleasesBus(t *testing.T) {
	f := newFakeBus()
	f.failWrite[regReset] = true
	if _, err := Open(f, Options{}); err == nil {
		t.Fatal("expected error")
	}
	if f.closed != 1 {
		t.Fatalf("bus closed %d times, want 1", f.closed)
	}
}

func TestOpen_WrongChip(t *testing.T) {
	f := newFakeBus()
	f.regs[regChipID] = 0x58 // BMP280
	if _, err := Open(f, Options{}); !errors.Is(err, ErrChipID) {
		t.Fatalf("err = %v, want ErrChipID", err)
	}
}

func TestOpen_NVMCopyTimeout(t *testing.T) {
	f := newFakeBus()
	f.regs[regStatus] = statusImUpdate
	_, err := Open(f, Options{PollInterval: time.Millisecond, ResetTimeout: 5 * time.Millisecond})
	if !errors.Is(err, ErrResetTimeout) {
		t.Fatalf("err = %v, want ErrResetTimeout", err)
	}
}

func TestConfigure_RegisterOrderAndPacking(t *testing.T) {
	s, f := openFake(t)
	if err := s.Configure(DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	w := f.writeLog()[1:] // skip reset
	want := [][2]byte{
		{regCtrlHum, 0x02},                      // osrs_h 2x
		{regCtrlMeas, 0x02<<5 | 0x03<<2 | 0x03}, // osrs_t 2x, osrs_p 4x, normal
		{regConfig, 0x01<<5 | 0x02<<2},          // 62.5 ms, filter 4
	}
	if len(w) != len(want) {
		t.Fatalf("writes = %v", w)
	}
	for i := range want {
		if w[i] != want[i] {
			t.Errorf("write %d = %#v, want %#v", i, w[i], want[i])
		}
	}
}

func TestConfigure_ReportsFirstFailingRegister(t *testing.T) {
	s, f := openFake(t)
	f.failWrite[regCtrlMeas] = true
	err := s.Configure(DefaultSettings())
	var be *BusError
	if !errors.As(err, &be) || be.Reg != regCtrlMeas {
		t.Fatalf("err = %v, want BusError on ctrl_meas", err)
	}
	if _, err := s.Read(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("read after failed configure: %v", err)
	}
	delete(f.failWrite, regCtrlMeas)
	if err := s.Configure(DefaultSettings()); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestConfigure_InvalidSettings(t *testing.T) {
	s, _ := openFake(t)
	set := DefaultSettings()
	set.Mode = 2
	if err := s.Configure(set); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err = %v", err)
	}
}

func TestRead_EndToEnd(t *testing.T) {
	s, _ := openFake(t)
	if err := s.Configure(DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	var got [3]CalibratedReading
	for i := range got {
		r, err := s.Read()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		got[i] = r
	}
	if got[0] != got[1] || got[1] != got[2] {
		t.Fatalf("readings differ for constant input: %+v", got)
	}
	if s.FineTemp() != 128422 {
		t.Fatalf("fine = %d", s.FineTemp())
	}
	c := goldenCalibration()
	if want, _ := c.CompensateTemperature(goldenAdcT); got[0].Temperature != want {
		t.Errorf("temperature %v, want %v", got[0].Temperature, want)
	}
}

func TestRead_FineTempFollowsEachSample(t *testing.T) {
	s, f := openFake(t)
	if err := s.Configure(DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	first, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	fine1 := s.FineTemp()

	// same pressure/humidity counts, warmer temperature counts
	b := append([]byte(nil), goldenData...)
	b[3], b[4] = 0x81, 0x60
	f.setData(b)
	second, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if s.FineTemp() == fine1 {
		t.Fatal("fine temperature not refreshed")
	}
	if second.Pressure == first.Pressure || second.Humidity == first.Humidity {
		t.Fatalf("pressure/humidity compensated with stale fine temperature: %+v vs %+v", first, second)
	}
	c := goldenCalibration()
	raw := decodeRaw(b)
	want, _ := c.Compensate(raw)
	if second != want {
		t.Fatalf("got %+v, want %+v", second, want)
	}
}

func TestRead_BusErrorNamesDataRegister(t *testing.T) {
	s, f := openFake(t)
	if err := s.Configure(DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	f.failRead[regPressMSB] = true
	_, err := s.Read()
	var be *BusError
	if !errors.As(err, &be) || be.Reg != regPressMSB {
		t.Fatalf("err = %v", err)
	}
}

func TestRead_ForcedModeTriggers(t *testing.T) {
	s, f := openFake(t)
	set := DefaultSettings()
	set.Mode = Forced
	set.Temperature, set.Pressure, set.Humidity = O1x, O1x, O1x
	if err := s.Configure(set); err != nil {
		t.Fatal(err)
	}
	before := len(f.writeLog())
	if _, err := s.Read(); err != nil {
		t.Fatal(err)
	}
	w := f.writeLog()
	if len(w) != before+1 || w[len(w)-1] != [2]byte{regCtrlMeas, set.ctrlMeas()} {
		t.Fatalf("forced read did not trigger a conversion: %v", w[before:])
	}
}

func TestRead_ForcedModeTimeout(t *testing.T) {
	f := newFakeBus()
	s, err := Open(f, Options{PollInterval: time.Millisecond, MeasureTimeout: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	set := DefaultSettings()
	set.Mode = Forced
	if err := s.Configure(set); err != nil {
		t.Fatal(err)
	}
	f.mu.Lock()
	f.regs[regStatus] = statusMeasuring
	f.mu.Unlock()
	if _, err := s.Read(); !errors.Is(err, ErrMeasurementTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestRead_ConcurrentCallersSerialized(t *testing.T) {
	s, f := openFake(t)
	if err := s.Configure(DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	f.delay = 100 * time.Microsecond
	want, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r, err := s.Read()
				if err != nil {
					errs <- err
					return
				}
				if r != want {
					errs <- errors.New("reading changed under concurrency")
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if f.overlap.Load() {
		t.Fatal("bus transactions overlapped")
	}
}

func TestClose(t *testing.T) {
	s, f := openFake(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if f.closed != 1 {
		t.Fatalf("closed %d times", f.closed)
	}
	if err := s.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second close: %v", err)
	}
	if f.closed != 1 {
		t.Fatal("second close reached the bus")
	}
	if _, err := s.Read(); !errors.Is(err, ErrClosed) {
		t.Fatalf("read after close: %v", err)
	}
	if err := s.Configure(DefaultSettings()); !errors.Is(err, ErrClosed) {
		t.Fatalf("configure after close: %v", err)
	}
}

func TestRead_BeforeConfigure(t *testing.T) {
	s, f := openFake(t)
	before := len(f.writeLog())
	if _, err := s.Read(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v", err)
	}
	if _, err := s.ReadRaw(); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("raw err = %v", err)
	}
	if len(f.writeLog()) != before {
		t.Fatal("unconfigured read touched the bus")
	}
}

func TestRead_SingleQuantities(t *testing.T) {
	s, _ := openFake(t)
	if err := s.Configure(DefaultSettings()); err != nil {
		t.Fatal(err)
	}
	raw, err := s.ReadRaw()
	if err != nil {
		t.Fatal(err)
	}
	if raw != (RawSample{Pressure: goldenAdcP, Temperature: goldenAdcT, Humidity: goldenAdcH}) {
		t.Fatalf("raw = %+v", raw)
	}

	c := goldenCalibration()
	want, _ := c.Compensate(raw)
	temp, err := s.ReadTemperature()
	if err != nil || temp != want.Temperature {
		t.Fatalf("temperature %v, %v", temp, err)
	}
	press, err := s.ReadPressure()
	if err != nil || press != want.Pressure {
		t.Fatalf("pressure %v, %v", press, err)
	}
	hum, err := s.ReadHumidity()
	if err != nil || hum != want.Humidity {
		t.Fatalf("humidity %v, %v", hum, err)
	}
}

func TestMeasuring(t *testing.T) {
	s, f := openFake(t)
	if m, err := s.Measuring(); err != nil || m {
		t.Fatalf("idle: %v, %v", m, err)
	}
	f.mu.Lock()
	f.regs[regStatus] = statusMeasuring
	f.mu.Unlock()
	if m, err := s.Measuring(); err != nil || !m {
		t.Fatalf("busy: %v, %v", m, err)
	}
}

func TestRead_SkippedChannelsOmitted(t *testing.T) {
	s, f := openFake(t)
	set := DefaultSettings()
	set.Pressure, set.Humidity = Skipped, Skipped
	if err := s.Configure(set); err != nil {
		t.Fatal(err)
	}
	// the device reports 0x80000 and 0x8000 for skipped channels
	b := append([]byte(nil), goldenData...)
	b[0], b[1], b[2] = 0x80, 0x00, 0x00
	b[6], b[7] = 0x80, 0x00
	f.setData(b)

	r, err := s.Read()
	if err != nil {
		t.Fatal(err)
	}
	if r.HasPressure || r.HasHumidity || r.Pressure != 0 || r.Humidity != 0 {
		t.Fatalf("skipped channels compensated: %+v", r)
	}
	if r.Temperature != 25.08 {
		t.Fatalf("temperature %v", r.Temperature)
	}
	if _, err := s.ReadPressure(); !errors.Is(err, ErrChannelSkipped) {
		t.Fatalf("pressure err = %v", err)
	}
	if _, err := s.ReadHumidity(); !errors.Is(err, ErrChannelSkipped) {
		t.Fatalf("humidity err = %v", err)
	}

	set.Humidity = O1x
	if err := s.Configure(set); err != nil {
		t.Fatal(err)
	}
	if r, err = s.Read(); err != nil {
		t.Fatal(err)
	}
	if r.HasPressure || !r.HasHumidity {
		t.Fatalf("only pressure is skipped: %+v", r)
	}
}

func TestConfigure_TemperatureRequired(t *testing.T) {
	s, _ := openFake(t)
	set := DefaultSettings()
	set.Temperature = Skipped
	if err := s.Configure(set); !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("err = %v", err)
	}
}
