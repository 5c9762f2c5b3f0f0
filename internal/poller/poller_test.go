package poller

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/normanking/reavoice/internal/bus"
	"github.com/normanking/reavoice/internal/extstate"
	"github.com/normanking/reavoice/internal/learner"
	"github.com/normanking/reavoice/pkg/types"
)

func newTestPoller(t *testing.T) (*Poller, *extstate.MemStore, chan bus.Event) {
	t.Helper()

	b := bus.New()
	t.Cleanup(func() { b.Close() })

	store := extstate.NewMemStore()
	p := New(store, b, Config{})

	events := make(chan bus.Event, 32)
	b.Subscribe(bus.EventControlTouched, func(e bus.Event) { events <- e })
	b.Subscribe(bus.EventControlClicked, func(e bus.Event) { events <- e })

	return p, store, events
}

func waitEvent(t *testing.T, events chan bus.Event) bus.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return bus.Event{}
	}
}

func assertNoEvent(t *testing.T, events chan bus.Event) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected event %s", e.Type)
	case <-time.After(150 * time.Millisecond):
	}
}

func touchSample(value string) map[string]string {
	return map[string]string{
		extstate.KeyControlDetected: "true",
		extstate.KeyControlType:     "volume_fader",
		extstate.KeyControlContext:  "mcp",
		extstate.KeyTrackNumber:     "3",
		extstate.KeyValue:           value,
	}
}

func TestClampInterval(t *testing.T) {
	tests := []struct {
		in       time.Duration
		expected time.Duration
	}{
		{0, DefaultInterval},
		{50 * time.Millisecond, MinInterval},
		{5 * time.Second, MaxInterval},
		{300 * time.Millisecond, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := clampInterval(tt.in); got != tt.expected {
			t.Errorf("clampInterval(%v) = %v, want %v", tt.in, got, tt.expected)
		}
	}
}

func TestFirstSampleEmitsTouch(t *testing.T) {
	p, store, events := newTestPoller(t)

	store.SetSample(extstate.Namespace, touchSample("0.5"))
	p.poll()

	e := waitEvent(t, events)
	if e.Type != bus.EventControlTouched {
		t.Fatalf("expected control touched, got %s", e.Type)
	}
	if !e.ControlChanged {
		t.Error("first sample should report a control change")
	}
	if e.Track != 3 {
		t.Errorf("expected track 3, got %d", e.Track)
	}
	if e.Sample == nil || e.Sample.ControlType != "volume_fader" {
		t.Error("expected sample to carry the control type")
	}
}

func TestDeadBandSuppressesJitter(t *testing.T) {
	p, store, events := newTestPoller(t)

	store.SetSample(extstate.Namespace, touchSample("0.5"))
	p.poll()
	waitEvent(t, events)

	// Same control, same value: no event.
	p.poll()

	// Jitter within the dead band: no event.
	store.SetSample(extstate.Namespace, touchSample("0.5005"))
	p.poll()

	// A real move: exactly one event.
	store.SetSample(extstate.Namespace, touchSample("0.502"))
	p.poll()

	e := waitEvent(t, events)
	if !e.ValueChanged || e.ControlChanged {
		t.Errorf("expected a value-only change, got control=%v value=%v",
			e.ControlChanged, e.ValueChanged)
	}
	assertNoEvent(t, events)
}

func TestControlSwitchEmitsTouch(t *testing.T) {
	p, store, events := newTestPoller(t)

	store.SetSample(extstate.Namespace, touchSample("0.5"))
	p.poll()
	waitEvent(t, events)

	sample := touchSample("0.5")
	sample[extstate.KeyControlType] = "pan_knob"
	store.SetSample(extstate.Namespace, sample)
	p.poll()

	e := waitEvent(t, events)
	if !e.ControlChanged {
		t.Error("expected control change for a different control id")
	}
	if e.ValueChanged {
		t.Error("a control switch is not a value change")
	}
}

func TestNoDetectionNoEvent(t *testing.T) {
	p, store, events := newTestPoller(t)

	store.SetSample(extstate.Namespace, map[string]string{
		extstate.KeyControlType: "volume_fader",
		extstate.KeyValue:       "0.5",
	})
	p.poll()

	assertNoEvent(t, events)
}

func TestMalformedValueTreatedAsAbsent(t *testing.T) {
	p, store, events := newTestPoller(t)

	store.SetSample(extstate.Namespace, touchSample("not-a-number"))
	p.poll()

	// The control itself is still new, so a touch fires.
	e := waitEvent(t, events)
	if !e.ControlChanged {
		t.Error("expected control change")
	}

	// With no usable previous value, later numeric values cannot report
	// a value change on the same control.
	store.SetSample(extstate.Namespace, touchSample("0.8"))
	p.poll()
	assertNoEvent(t, events)
}

func TestClickEventAndWriteBack(t *testing.T) {
	p, store, events := newTestPoller(t)

	store.SetSample(extstate.Namespace, map[string]string{
		extstate.KeyControlClicked: "true",
		extstate.KeyClickedType:    "mute_button",
		extstate.KeyClickedTrack:   "4",
		extstate.KeyClickedGUID:    "{guid-4}",
		extstate.KeyClickTimestamp: "1700000000000",
	})
	p.poll()

	e := waitEvent(t, events)
	if e.Type != bus.EventControlClicked {
		t.Fatalf("expected control clicked, got %s", e.Type)
	}
	if e.Track != 4 {
		t.Errorf("expected track 4, got %d", e.Track)
	}
	if e.Control == nil || e.Control.Type != "mute_button" {
		t.Error("expected click descriptor with the clicked type")
	}

	// The flag is cleared at the source so the click is not re-emitted.
	flag, err := store.Get(context.Background(), extstate.Namespace, extstate.KeyControlClicked)
	if err != nil {
		t.Fatalf("read click flag: %v", err)
	}
	if flag != "false" {
		t.Errorf("expected click flag cleared, got %q", flag)
	}

	p.poll()
	assertNoEvent(t, events)
}

func TestTouchAndClickShareLearnerKey(t *testing.T) {
	p, store, events := newTestPoller(t)

	store.SetSample(extstate.Namespace, map[string]string{
		extstate.KeyControlDetected: "true",
		extstate.KeyControlType:     "mute_button",
		extstate.KeyControlContext:  "mcp",
		extstate.KeyTrackNumber:     "3",
		extstate.KeyControlClicked:  "true",
		extstate.KeyClickedType:     "mute_button",
		extstate.KeyClickedTrack:    "3",
		extstate.KeyClickedGUID:     "{286BCA2C-4F11-9A02}",
	})
	p.poll()

	var touched, clicked *types.ControlDescriptor
	for touched == nil || clicked == nil {
		e := waitEvent(t, events)
		switch e.Type {
		case bus.EventControlTouched:
			touched = e.Control
		case bus.EventControlClicked:
			clicked = e.Control
			if e.Details != "{286BCA2C-4F11-9A02}" {
				t.Errorf("expected GUID carried as event detail, got %q", e.Details)
			}
		}
	}

	touchKey := learner.PatternKey(*touched)
	clickKey := learner.PatternKey(*clicked)
	if touchKey != clickKey {
		t.Fatalf("touch key %q and click key %q must match", touchKey, clickKey)
	}
	if touchKey != "track3-mcp-mute_button" {
		t.Errorf("unexpected pattern key %q", touchKey)
	}
}

func TestStateReadFailurePublishesError(t *testing.T) {
	b := bus.New()
	t.Cleanup(func() { b.Close() })

	// An oversized state file makes every read fail.
	path := filepath.Join(t.TempDir(), "extstate.ini")
	if err := os.WriteFile(path, make([]byte, 2<<20), 0644); err != nil {
		t.Fatal(err)
	}
	p := New(extstate.NewFileStore(path), b, Config{})

	errs := make(chan bus.Event, 1)
	b.Subscribe(bus.EventPipelineError, func(e bus.Event) { errs <- e })

	p.poll()

	e := waitEvent(t, errs)
	if e.Error == "" {
		t.Error("expected the read error carried on the event")
	}
	if e.Details != "state read failed" {
		t.Errorf("unexpected details %q", e.Details)
	}
}

func TestHeartbeat(t *testing.T) {
	p, _, _ := newTestPoller(t)

	b := p.eventBus
	beats := make(chan bus.Event, 4)
	b.Subscribe(bus.EventHeartbeat, func(e bus.Event) { beats <- e })

	for i := 0; i < heartbeatEvery; i++ {
		p.poll()
	}

	select {
	case <-beats:
	case <-time.After(time.Second):
		t.Fatal("expected a heartbeat after a full cycle of ticks")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	p, _, _ := newTestPoller(t)

	if p.IsRunning() {
		t.Fatal("new poller should not be running")
	}

	p.Start()
	p.Start()
	if !p.IsRunning() {
		t.Fatal("poller should be running after Start")
	}

	p.Stop()
	if p.IsRunning() {
		t.Fatal("poller should be stopped after Stop")
	}
	p.Stop()
}

func TestSetPollRateClamps(t *testing.T) {
	p, _, _ := newTestPoller(t)

	p.SetPollRate(50)
	if p.Interval() != MinInterval {
		t.Errorf("expected %v, got %v", MinInterval, p.Interval())
	}

	p.SetPollRate(2000)
	if p.Interval() != MaxInterval {
		t.Errorf("expected %v, got %v", MaxInterval, p.Interval())
	}

	p.SetPollRate(250)
	if p.Interval() != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", p.Interval())
	}
}

func TestSetPollRateWhileRunning(t *testing.T) {
	p, _, _ := newTestPoller(t)

	p.Start()
	defer p.Stop()

	p.SetPollRate(500)
	if !p.IsRunning() {
		t.Error("poller should keep running across a rate change")
	}
	if p.Interval() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", p.Interval())
	}
}
