// Package poller converts the host DAW's passive ExtState exports into a
// stream of discrete, de-duplicated change events on the bus.
package poller

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/normanking/reavoice/internal/bus"
	"github.com/normanking/reavoice/internal/extstate"
	"github.com/normanking/reavoice/internal/logging"
	"github.com/normanking/reavoice/pkg/types"
)

const (
	// DefaultInterval is the poll cadence used when none is configured.
	DefaultInterval = 200 * time.Millisecond

	// MinInterval and MaxInterval bound SetPollRate. Out-of-range values
	// clamp; they are never an error.
	MinInterval = 100 * time.Millisecond
	MaxInterval = 1000 * time.Millisecond

	// DefaultDeadBand suppresses floating-point/OSC jitter on a held
	// control: value moves at or below this delta produce no event.
	DefaultDeadBand = 0.001

	// heartbeatEvery is the tick interval between liveness events.
	heartbeatEvery = 25
)

// Config configures a Poller.
type Config struct {
	Interval time.Duration
	DeadBand float64
}

// Poller periodically samples the ExtState store, detects meaningful
// changes, and publishes control-touched and control-clicked events.
//
// The loop runs on a single goroutine; work for one tick completes before
// the next tick's work begins. A tick that fails to read or parse is
// logged and skipped, never fatal.
type Poller struct {
	store    extstate.Store
	eventBus *bus.Bus
	deadBand float64

	mu       sync.Mutex
	interval time.Duration
	running  bool
	stop     chan struct{}
	done     chan struct{}

	// Change-detection state, touched only by the loop goroutine.
	lastControlID string
	lastValue     float64
	hasLastValue  bool
	tickCount     uint64
}

// New creates a Poller reading from store and publishing to eventBus.
func New(store extstate.Store, eventBus *bus.Bus, cfg Config) *Poller {
	interval := clampInterval(cfg.Interval)
	deadBand := cfg.DeadBand
	if deadBand <= 0 {
		deadBand = DefaultDeadBand
	}

	return &Poller{
		store:    store,
		eventBus: eventBus,
		interval: interval,
		deadBand: deadBand,
	}
}

// Start begins the poll loop. Starting a running poller is a logged no-op.
// The first poll runs immediately; subsequent polls follow the configured
// interval.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		log.Debug().Msg("poller: already running, start ignored")
		return
	}

	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	log.Info().Dur("interval", p.interval).Msg("poller: starting")
	go p.run(p.interval, p.stop, p.done)
}

// Stop halts the poll loop. It is idempotent, and no tick fires after it
// returns: the loop goroutine is joined, not merely flagged.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
	log.Info().Msg("poller: stopped")
}

// IsRunning reports whether the poll loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// SetPollRate changes the poll interval, clamping to [MinInterval,
// MaxInterval]. A running poller is stopped and restarted so the new
// interval applies atomically, with no drift or double-fire.
func (p *Poller) SetPollRate(ms int) {
	interval := clampInterval(time.Duration(ms) * time.Millisecond)

	p.mu.Lock()
	wasRunning := p.running
	p.mu.Unlock()

	if wasRunning {
		p.Stop()
	}

	p.mu.Lock()
	p.interval = interval
	p.mu.Unlock()
	log.Debug().Dur("interval", interval).Msg("poller: rate changed")

	if wasRunning {
		p.Start()
	}
}

// Interval returns the currently configured poll interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// run is the poll loop goroutine.
func (p *Poller) run(interval time.Duration, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Immediate first poll, then tick cadence.
	p.poll()

	for {
		select {
		case <-ticker.C:
			p.poll()
		case <-stop:
			return
		}
	}
}

// poll reads one snapshot and publishes any resulting events. Errors are
// logged and swallowed: one bad sample must never stop the loop.
func (p *Poller) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), MinInterval)
	defer cancel()

	values, err := p.store.Section(ctx, extstate.Namespace)
	if err != nil {
		log.Warn().Err(err).Msg("poller: state read failed, skipping tick")
		event := bus.NewEvent(bus.EventPipelineError)
		event.Error = err.Error()
		event.Details = "state read failed"
		p.eventBus.Publish(event)
		return
	}

	p.tickCount++
	if p.tickCount%heartbeatEvery == 0 {
		p.eventBus.Publish(bus.NewEvent(bus.EventHeartbeat))
	}

	// Touch detection runs before the click check so a click in the same
	// tick is attributed to the fresh control, never a stale one.
	if values[extstate.KeyControlDetected] == "true" {
		p.checkTouched(values)
	}
	p.checkClicked(ctx, values)
}

// checkTouched compares the current sample with the previous one and
// publishes a control-touched event when the control or its value moved.
func (p *Poller) checkTouched(values map[string]string) {
	sample := parseSample(values)
	controlID := sample.ControlID()

	value, hasValue := parseFloat(values[extstate.KeyValue])

	controlChanged := controlID != p.lastControlID
	valueChanged := !controlChanged && p.hasLastValue && hasValue &&
		abs(value-p.lastValue) > p.deadBand

	if !controlChanged && !valueChanged {
		return
	}

	p.lastControlID = controlID
	p.lastValue = value
	p.hasLastValue = hasValue

	descriptor := sample.Descriptor()
	event := bus.NewEvent(bus.EventControlTouched)
	event.Sample = &sample
	event.Control = &descriptor
	event.Track = sample.TrackNumber
	event.ControlChanged = controlChanged
	event.ValueChanged = valueChanged
	p.eventBus.Publish(event)

	log.Debug().
		Str("control_id", controlID).
		Bool("control_changed", controlChanged).
		Bool("value_changed", valueChanged).
		Msg("poller: control touched")
}

// checkClicked publishes a control-clicked event when the bridge's click
// flag is set, then clears the flag at the source so the same click is
// not re-emitted next tick.
func (p *Poller) checkClicked(ctx context.Context, values map[string]string) {
	if values[extstate.KeyControlClicked] != "true" {
		return
	}

	trackNumber, _ := parseInt(values[extstate.KeyClickedTrack])
	timestamp, ok := parseInt(values[extstate.KeyClickTimestamp])
	if !ok {
		timestamp = time.Now().UnixMilli()
	}

	// The descriptor must carry the same title shape as a touch sample's
	// descriptor so both resolve to the same learned pattern. The GUID is
	// diagnostic only; it must stay out of the track-extraction text.
	clickedType := values[extstate.KeyClickedType]
	title := clickedType
	if int(trackNumber) != types.NoTrack {
		title = fmt.Sprintf("track %d %s", trackNumber, clickedType)
	}

	descriptor := types.ControlDescriptor{
		Type:      clickedType,
		Role:      values[extstate.KeyControlContext],
		Title:     title,
		Timestamp: timestamp,
	}

	event := bus.NewEvent(bus.EventControlClicked)
	event.Control = &descriptor
	event.Track = int(trackNumber)
	event.Details = values[extstate.KeyClickedGUID]
	p.eventBus.Publish(event)

	log.Debug().Str("type", descriptor.Type).Msg("poller: control clicked")

	// The write-back must land even when the tick deadline is nearly
	// spent; a lost write re-emits this click on every later tick.
	writeCtx, cancel := logging.DetachContextWithTimeout(ctx, MinInterval)
	defer cancel()
	if err := p.store.Set(writeCtx, extstate.Namespace, extstate.KeyControlClicked, "false"); err != nil {
		log.Warn().Err(err).Msg("poller: click flag write-back failed")
	}
}

// parseSample assembles a PollSample from raw key values. Malformed
// numeric fields read as absent, never as errors.
func parseSample(values map[string]string) types.PollSample {
	trackNumber, _ := parseInt(values[extstate.KeyTrackNumber])
	value, _ := parseFloat(values[extstate.KeyValue])
	timestamp, ok := parseInt(values[extstate.KeyTimestamp])
	if !ok {
		timestamp = time.Now().UnixMilli()
	}

	return types.PollSample{
		ControlType:    values[extstate.KeyControlType],
		Context:        values[extstate.KeyControlContext],
		TrackNumber:    int(trackNumber),
		TrackName:      values[extstate.KeyTrackName],
		TrackGUID:      values[extstate.KeyTrackGUID],
		Parameter:      values[extstate.KeyParameter],
		Value:          value,
		ValueFormatted: values[extstate.KeyValueFormatted],
		Timestamp:      timestamp,
	}
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseInt(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clampInterval(d time.Duration) time.Duration {
	if d == 0 {
		return DefaultInterval
	}
	if d < MinInterval {
		return MinInterval
	}
	if d > MaxInterval {
		return MaxInterval
	}
	return d
}
