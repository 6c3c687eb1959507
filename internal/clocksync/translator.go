package clocksync

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/banshee-data/depthsync/internal/timeutil"
	"github.com/banshee-data/depthsync/internal/units"
	"gonum.org/v1/gonum/stat"
)

// Defaults for Config fields left at zero.
const (
	DefaultCounterBits    = 32
	DefaultDriftTolerance = 20 * time.Millisecond
	DefaultSkewWindow     = 256
)

// Counter widths accepted by Config. At MaxCounterBits a full period of
// millisecond ticks still fits in int64 nanoseconds.
const (
	MinCounterBits = 8
	MaxCounterBits = 43
)

// HostTimestamp is nanoseconds since the host epoch shared with the
// publication layer. Only Translator produces one.
type HostTimestamp int64

// Seconds returns the timestamp as floating point seconds.
func (h HostTimestamp) Seconds() float64 {
	return units.NanosToSeconds(int64(h))
}

// Nanos returns the raw nanosecond count.
func (h HostTimestamp) Nanos() int64 {
	return int64(h)
}

// Config holds translator parameters.
type Config struct {
	// CounterBits is the width of the device tick counter. The counter
	// wraps after 2^CounterBits ticks of whatever scale a sample uses.
	CounterBits uint
	// DriftTolerance bounds the offset error before re-anchoring.
	DriftTolerance time.Duration
	// SkewWindow is the number of offset observations kept for the skew
	// estimate reported by Status.
	SkewWindow int
	// OnEvent, when set, receives calibration events. It is called without
	// the translator lock held.
	OnEvent func(Event)
}

// Validate checks parameter ranges after defaults are applied.
func (c Config) Validate() error {
	if c.CounterBits < MinCounterBits || c.CounterBits > MaxCounterBits {
		return fmt.Errorf("counter bits must be between %d and %d, got %d", MinCounterBits, MaxCounterBits, c.CounterBits)
	}
	if c.DriftTolerance <= 0 {
		return fmt.Errorf("drift tolerance must be positive, got %v", c.DriftTolerance)
	}
	if c.SkewWindow < 2 {
		return fmt.Errorf("skew window must hold at least 2 observations, got %d", c.SkewWindow)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.CounterBits == 0 {
		c.CounterBits = DefaultCounterBits
	}
	if c.DriftTolerance == 0 {
		c.DriftTolerance = DefaultDriftTolerance
	}
	if c.SkewWindow == 0 {
		c.SkewWindow = DefaultSkewWindow
	}
	return c
}

// Translator maps device ticks onto host time. It is safe for concurrent
// use by the motion and frame delivery goroutines.
type Translator struct {
	host      *timeutil.Monotonic
	bits      uint
	tolerance int64
	window    int
	onEvent   func(Event)

	mu         sync.Mutex
	calibrated bool

	deviceOrigin int64 // unwrapped device ns at the anchor
	hostOrigin   int64 // host ns at the anchor

	lastDevice int64 // unwrapped device ns of the latest update
	lastHost   int64 // host ns of the latest update
	lastError  int64 // offset error of the latest update

	// offset observations for skew estimation, unwrapped device ns and
	// host-minus-device ns.
	skewX []float64
	skewY []float64

	updates   uint64
	resyncs   uint64
	wraps     uint64
	ambiguous uint64
}

// NewTranslator builds a translator reading host time from host.
func NewTranslator(host *timeutil.Monotonic, cfg Config) (*Translator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if host == nil {
		host = timeutil.NewMonotonic(nil)
	}
	return &Translator{
		host:      host,
		bits:      cfg.CounterBits,
		tolerance: cfg.DriftTolerance.Nanoseconds(),
		window:    cfg.SkewWindow,
		onEvent:   cfg.OnEvent,
	}, nil
}

// period returns the counter period in ticks.
func (t *Translator) period() int64 {
	return int64(1) << t.bits
}

// PeriodDuration returns how long the counter takes to wrap at scale,
// saturating at the largest representable duration.
func (t *Translator) PeriodDuration(scale units.Scale) time.Duration {
	if t.period() > math.MaxInt64/scale.Nanos() {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(t.period() * scale.Nanos())
}

// unwrap places raw on the unwrapped device timeline next to lastDevice,
// choosing the nearest candidate modulo the counter period. wrapped reports
// whether the counter rolled over between lastDevice and raw.
func (t *Translator) unwrap(raw uint64, scale units.Scale) (ns int64, wrapped bool) {
	p := t.period()
	tickNs := scale.Nanos()

	lastTicks := floorDiv(t.lastDevice, tickNs)
	lastWrapped := floorMod(lastTicks, p)
	cur := int64(raw & uint64(p-1))

	delta := cur - lastWrapped
	switch {
	case delta > p/2:
		delta -= p
	case delta < -p/2:
		delta += p
		wrapped = true
	}
	return (lastTicks + delta) * tickNs, wrapped
}

// Translate converts a device reading to host time using the current
// calibration. It does not modify any state.
func (t *Translator) Translate(raw uint64, scale units.Scale) (HostTimestamp, error) {
	if !scale.IsValid() {
		return 0, fmt.Errorf("translate: invalid clock scale %v", scale)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.calibrated {
		return 0, ErrUnsynchronized
	}
	dev, _ := t.unwrap(raw, scale)
	return HostTimestamp(t.hostOrigin + dev - t.deviceOrigin), nil
}

// Update observes raw against the current host time, calibrating on the
// first call and correcting wraps and drift afterwards.
func (t *Translator) Update(raw uint64, scale units.Scale) error {
	if !scale.IsValid() {
		return fmt.Errorf("update: invalid clock scale %v", scale)
	}
	hostNow := t.host.NowNanos()

	var events []Event
	err := func() error {
		t.mu.Lock()
		defer t.mu.Unlock()
		t.updates++

		if !t.calibrated {
			dev := int64(raw&uint64(t.period()-1)) * scale.Nanos()
			t.anchor(dev, hostNow)
			t.calibrated = true
			t.lastDevice, t.lastHost, t.lastError = dev, hostNow, 0
			t.observeOffset(dev, hostNow)
			events = append(events, t.event(EventCalibrated, dev, hostNow, 0))
			return nil
		}

		if time.Duration(hostNow-t.lastHost) >= t.PeriodDuration(scale) {
			dev, _ := t.unwrap(raw, scale)
			t.anchor(dev, hostNow)
			t.ambiguous++
			t.lastDevice, t.lastHost, t.lastError = dev, hostNow, 0
			t.skewX, t.skewY = t.skewX[:0], t.skewY[:0]
			t.observeOffset(dev, hostNow)
			events = append(events, t.event(EventAmbiguous, dev, hostNow, 0))
			return ErrWraparoundAmbiguous
		}

		dev, wrapped := t.unwrap(raw, scale)
		if wrapped {
			t.wraps++
		}
		offsetErr := hostNow - (t.hostOrigin + dev - t.deviceOrigin)
		t.lastError = offsetErr
		t.observeOffset(dev, hostNow)
		if wrapped {
			events = append(events, t.event(EventWrapped, dev, hostNow, offsetErr))
		}
		if abs64(offsetErr) > t.tolerance {
			t.anchor(dev, hostNow)
			t.resyncs++
			events = append(events, t.event(EventResynchronized, dev, hostNow, offsetErr))
		}
		if dev > t.lastDevice {
			t.lastDevice = dev
		}
		t.lastHost = hostNow
		return nil
	}()

	if t.onEvent != nil {
		for _, ev := range events {
			t.onEvent(ev)
		}
	}
	return err
}

// Reset drops the calibration so the next Update anchors afresh. Counters
// are kept.
func (t *Translator) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calibrated = false
	t.deviceOrigin, t.hostOrigin = 0, 0
	t.lastDevice, t.lastHost, t.lastError = 0, 0, 0
	t.skewX, t.skewY = t.skewX[:0], t.skewY[:0]
}

// Calibrated reports whether a reference pair has been established.
func (t *Translator) Calibrated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calibrated
}

func (t *Translator) anchor(dev, host int64) {
	t.deviceOrigin = dev
	t.hostOrigin = host
}

func (t *Translator) observeOffset(dev, host int64) {
	if len(t.skewX) >= t.window {
		copy(t.skewX, t.skewX[1:])
		copy(t.skewY, t.skewY[1:])
		t.skewX = t.skewX[:len(t.skewX)-1]
		t.skewY = t.skewY[:len(t.skewY)-1]
	}
	t.skewX = append(t.skewX, units.NanosToSeconds(dev))
	t.skewY = append(t.skewY, float64(host-dev))
}

func (t *Translator) event(kind EventKind, dev, host, offsetErr int64) Event {
	return Event{
		Kind:             kind,
		DeviceNanos:      dev,
		HostNanos:        host,
		OffsetErrorNanos: offsetErr,
	}
}

// skewPPM fits host-minus-device offset against device seconds. The slope
// is in ns per second, i.e. thousandths of a ppm.
func (t *Translator) skewPPM() float64 {
	if len(t.skewX) < 2 {
		return 0
	}
	first := t.skewX[0]
	same := true
	for _, x := range t.skewX[1:] {
		if x != first {
			same = false
			break
		}
	}
	if same {
		return 0
	}
	_, beta := stat.LinearRegression(t.skewX, t.skewY, nil, false)
	return beta / 1e3
}

// Status is a snapshot of the calibration state.
type Status struct {
	Calibrated           bool    `json:"calibrated"`
	CounterBits          uint    `json:"counter_bits"`
	DriftToleranceNanos  int64   `json:"drift_tolerance_nanos"`
	DeviceOriginNanos    int64   `json:"device_origin_nanos"`
	HostOriginNanos      int64   `json:"host_origin_nanos"`
	LastUpdateHostNanos  int64   `json:"last_update_host_nanos"`
	LastOffsetErrorNanos int64   `json:"last_offset_error_nanos"`
	SkewPPM              float64 `json:"skew_ppm"`
	Updates              uint64  `json:"updates"`
	Resyncs              uint64  `json:"resyncs"`
	Wraps                uint64  `json:"wraps"`
	Ambiguous            uint64  `json:"ambiguous"`
}

// Status returns a snapshot of the calibration and its counters.
func (t *Translator) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		Calibrated:           t.calibrated,
		CounterBits:          t.bits,
		DriftToleranceNanos:  t.tolerance,
		DeviceOriginNanos:    t.deviceOrigin,
		HostOriginNanos:      t.hostOrigin,
		LastUpdateHostNanos:  t.lastHost,
		LastOffsetErrorNanos: t.lastError,
		SkewPPM:              t.skewPPM(),
		Updates:              t.updates,
		Resyncs:              t.resyncs,
		Wraps:                t.wraps,
		Ambiguous:            t.ambiguous,
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
