package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"player-piano/calibration"
	"player-piano/midi"
	"player-piano/timeline"
)

// recorder is a Sink that renders every reset, sleep and commit as a line.
type recorder struct {
	drive   [midi.NumKeys]int
	sustain bool
	trace   []string

	commits    int
	failCommit int // fail the nth commit (1-based), 0 = never
}

func (r *recorder) SetDrive(key, value int) error {
	r.drive[key] = value
	return nil
}

func (r *recorder) SetSustain(engaged bool) error {
	r.sustain = engaged
	return nil
}

func (r *recorder) Commit() error {
	r.commits++
	if r.commits == r.failCommit {
		return errBoom
	}
	var parts []string
	for k, v := range r.drive {
		if v != 0 {
			parts = append(parts, fmt.Sprintf("%d=%d", k, v))
		}
	}
	if r.sustain {
		parts = append(parts, "sustain")
	}
	if len(parts) == 0 {
		parts = append(parts, "silent")
	}
	r.trace = append(r.trace, "commit "+strings.Join(parts, " "))
	return nil
}

func (r *recorder) ResetAll() error {
	r.drive = [midi.NumKeys]int{}
	r.sustain = false
	r.trace = append(r.trace, "reset")
	return nil
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.trace = append(r.trace, "sleep "+d.String())
	return ctx.Err()
}

var errBoom = errors.New("spi write failed")

func newTestPlayer(r *recorder) *Player {
	p := New(r, calibration.NewMapper(calibration.GenerateDefault(2048)))
	p.sleep = r.sleep
	return p
}

func compile(t *testing.T, events ...midi.Event) *timeline.Timeline {
	t.Helper()
	tl, err := timeline.Compile(events, 480, 500000)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return tl
}

func checkTrace(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("trace mismatch\ngot:\n  %s\nwant:\n  %s", strings.Join(got, "\n  "), strings.Join(want, "\n  "))
	}
}

func TestPlayChordWithEarlyRelease(t *testing.T) {
	tl := compile(t,
		midi.Event{Kind: midi.NoteOn, Key: 39, Velocity: 100},
		midi.Event{Kind: midi.NoteOn, Key: 43, Velocity: 100},
		midi.Event{Kind: midi.NoteOff, Key: 39, Delta: 480},
		midi.Event{Kind: midi.NoteOff, Key: 43},
	)

	r := &recorder{}
	if err := newTestPlayer(r).Play(context.Background(), tl); err != nil {
		t.Fatalf("Play: %v", err)
	}

	checkTrace(t, r.trace, []string{
		"reset",
		"sleep 3s",
		"commit 39=3657 43=3657",
		"sleep 350ms",
		"commit silent", // early release
		"sleep 150ms",
		"commit silent", // close-out
		"reset",
	})
}

func TestPlayEngagesSustainEarly(t *testing.T) {
	tl := compile(t,
		midi.Event{Kind: midi.NoteOn, Key: 10, Velocity: 64},
		midi.Event{Kind: midi.NoteOn, Key: 12, Velocity: 64, Delta: 480},
		midi.Event{Kind: midi.Sustain, Engaged: true},
		midi.Event{Kind: midi.NoteOff, Key: 10, Delta: 480},
		midi.Event{Kind: midi.NoteOff, Key: 12},
	)

	r := &recorder{}
	p := newTestPlayer(r)
	p.LeadIn = time.Second
	if err := p.Play(context.Background(), tl); err != nil {
		t.Fatalf("Play: %v", err)
	}

	checkTrace(t, r.trace, []string{
		"reset",
		"sleep 1s",
		"commit 10=3072",
		"sleep 350ms",
		"commit 10=3072 sustain",
		"sleep 150ms",
		"commit 10=3072 12=3072 sustain",
		"sleep 350ms",
		"commit sustain", // keys lifted early
		"sleep 150ms",
		"commit sustain",
		"sleep 0s",
		"sleep 0s",
		"commit silent", // pedal waits for the close-out
		"reset",
	})
}

func TestPlaySleepsSumToHold(t *testing.T) {
	for _, settle := range []float64{0, 0.3, 0.7, 1} {
		tl := &timeline.Timeline{
			Frames:       []timeline.Frame{{HoldTicks: 7}, {HoldTicks: 1001}, {}},
			TicksPerBeat: 96,
			Tempo:        461538,
		}
		tl.Frames[0].Drive[5] = 1
		tl.Frames[1].Drive[5] = 1

		var sleeps []time.Duration
		r := &recorder{}
		p := newTestPlayer(r)
		p.Settle = settle
		p.sleep = func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return nil
		}
		if err := p.Play(context.Background(), tl); err != nil {
			t.Fatalf("Play: %v", err)
		}

		if len(sleeps) != 5 {
			t.Fatalf("settle %v: %d sleeps, want lead-in plus two per pair", settle, len(sleeps))
		}
		for i := 0; i < 2; i++ {
			if got, want := sleeps[1+2*i]+sleeps[2+2*i], tl.Hold(i); got != want {
				t.Errorf("settle %v frame %d: sleeps sum to %v, want %v", settle, i, got, want)
			}
		}
	}
}

func TestPlayStopReleasesEverything(t *testing.T) {
	tl := compile(t,
		midi.Event{Kind: midi.NoteOn, Key: 1, Velocity: 127},
		midi.Event{Kind: midi.Sustain, Engaged: true},
		midi.Event{Kind: midi.NoteOn, Key: 2, Velocity: 1, Delta: 480},
		midi.Event{Kind: midi.NoteOff, Key: 1, Delta: 480},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &recorder{}
	p := newTestPlayer(r)
	calls := 0
	p.sleep = func(ctx context.Context, d time.Duration) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return r.sleep(ctx, d)
	}

	err := p.Play(ctx, tl)
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("Play err = %v, want ErrStopped", err)
	}

	checkTrace(t, r.trace, []string{
		"reset",
		"sleep 3s",
		"commit 1=4096 sustain",
		"sleep 350ms",
		"sleep 150ms",
		"commit silent",
		"reset",
	})
}

func TestPlayRejectsDegenerateClock(t *testing.T) {
	tests := []struct {
		name   string
		tl     *timeline.Timeline
		settle float64
	}{
		{"nil timeline", nil, DefaultSettle},
		{"zero tempo", &timeline.Timeline{Frames: []timeline.Frame{{}}, TicksPerBeat: 480}, DefaultSettle},
		{"zero ticks per beat", &timeline.Timeline{Frames: []timeline.Frame{{}}, Tempo: 500000}, DefaultSettle},
		{"negative ticks per beat", &timeline.Timeline{Frames: []timeline.Frame{{}}, TicksPerBeat: -1, Tempo: 500000}, DefaultSettle},
		{"settle above one", &timeline.Timeline{Frames: []timeline.Frame{{}}, TicksPerBeat: 480, Tempo: 500000}, 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			p := newTestPlayer(r)
			p.Settle = tt.settle
			if err := p.Play(context.Background(), tt.tl); !errors.Is(err, ErrConfig) {
				t.Fatalf("err = %v, want ErrConfig", err)
			}
			if len(r.trace) != 0 {
				t.Errorf("actuator touched before config check: %v", r.trace)
			}
		})
	}
}

func TestPlayActuatorFailureResets(t *testing.T) {
	tl := compile(t,
		midi.Event{Kind: midi.NoteOn, Key: 1, Velocity: 90},
		midi.Event{Kind: midi.NoteOff, Key: 1, Delta: 480},
	)

	r := &recorder{failCommit: 2}
	err := newTestPlayer(r).Play(context.Background(), tl)
	if !errors.Is(err, ErrActuator) || !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want ErrActuator wrapping the sink error", err)
	}

	checkTrace(t, r.trace, []string{
		"reset",
		"sleep 3s",
		"commit 1=3495",
		"sleep 350ms",
		"reset",
	})
}

func TestControllerOneSessionAtATime(t *testing.T) {
	tl := compile(t,
		midi.Event{Kind: midi.NoteOn, Key: 1, Velocity: 90},
		midi.Event{Kind: midi.NoteOff, Key: 1, Delta: 480},
	)

	r := &recorder{}
	p := newTestPlayer(r)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}
	c := NewController(p)

	if err := c.Start(context.Background(), "a.mid", tl); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Start(context.Background(), "b.mid", tl); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start err = %v, want ErrBusy", err)
	}
	if !c.Playing() || c.Status().Song != "a.mid" {
		t.Errorf("status = %+v", c.Status())
	}

	c.Stop()
	if err := c.Wait(); !Stopped(err) {
		t.Fatalf("Wait err = %v, want ErrStopped", err)
	}
	if c.Playing() {
		t.Error("still playing after Wait")
	}
	if got := r.trace[len(r.trace)-2:]; got[0] != "commit silent" || got[1] != "reset" {
		t.Errorf("trace tail = %v, want close-out then reset", got)
	}

	// The instrument is free again.
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	if err := c.Play(context.Background(), "b.mid", tl); err != nil {
		t.Fatalf("Play after stop: %v", err)
	}
	if st := c.Status(); st.Playing || st.Progress != 100 || st.Song != "b.mid" {
		t.Errorf("final status = %+v", st)
	}
}
