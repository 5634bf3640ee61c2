package bme280

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*fakeBus)(nil)

var errNACK = errors.New("nack")

// Register-file BME280 fake. Reads copy from regs starting at w[0]; two-byte
// writes store w[1] at w[0].
type fakeBus struct {
	mu     sync.Mutex
	regs   [256]byte
	writes [][2]byte
	closed int

	// failRead/failWrite inject errNACK on the given register.
	failRead  map[byte]bool
	failWrite map[byte]bool

	delay    time.Duration
	inflight atomic.Int32
	overlap  atomic.Bool
}

// Golden trim from the datasheet example plus a typical humidity set.
var (
	goldenTP = []byte{112, 107, 67, 103, 24, 252, 125, 142, 67, 214, 208, 11, 39, 11, 140, 0, 249, 255, 140, 60, 248, 198, 112, 23}
	goldenH1 = byte(75)
	goldenH  = []byte{106, 1, 0, 19, 41, 3, 30}

	// press 415148, temp 519888, hum 30000
	goldenData = []byte{101, 90, 192, 126, 237, 0, 117, 48}
)

func newFakeBus() *fakeBus {
	f := &fakeBus{
		failRead:  map[byte]bool{},
		failWrite: map[byte]bool{},
	}
	f.regs[regChipID] = chipID
	copy(f.regs[regCalibTP:], goldenTP)
	f.regs[regCalibH1] = goldenH1
	copy(f.regs[regCalibH:], goldenH)
	copy(f.regs[regPressMSB:], goldenData)
	return f
}

func (f *fakeBus) Tx(addr uint16, w, r []byte) error {
	if f.inflight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inflight.Add(-1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if addr != Address || len(w) == 0 {
		return errNACK
	}
	reg := w[0]
	if len(r) > 0 {
		if f.failRead[reg] {
			return errNACK
		}
		copy(r, f.regs[reg:])
		return nil
	}
	if len(w) != 2 {
		return errNACK
	}
	if f.failWrite[reg] {
		return errNACK
	}
	f.writes = append(f.writes, [2]byte{reg, w[1]})
	if reg != regReset {
		f.regs[reg] = w[1]
	}
	return nil
}

func (f *fakeBus) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeBus) setData(b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy(f.regs[regPressMSB:], b)
}

func (f *fakeBus) writeLog() [][2]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]byte(nil), f.writes...)
}
