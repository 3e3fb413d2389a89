package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"player-piano/calibration"
	"player-piano/debug"
	"player-piano/midi"
	"player-piano/timeline"
)

var (
	// ErrConfig means the clock or scheduling parameters are unusable.
	ErrConfig = errors.New("player: invalid configuration")
	// ErrActuator wraps any failure reported by the sink.
	ErrActuator = errors.New("player: actuator write failed")
	// ErrStopped is returned when playback was cancelled.
	ErrStopped = errors.New("player: playback stopped")
	// ErrBusy is returned when the instrument already has a session.
	ErrBusy = errors.New("player: instrument busy")
)

const (
	// DefaultSettle is the share of each hold spent before anticipatory changes.
	DefaultSettle = 0.7
	// DefaultLeadIn is the pause before the first frame.
	DefaultLeadIn = 3 * time.Second
)

// Sink is the physical instrument. SetDrive and SetSustain stage values;
// Commit applies everything staged as one update.
type Sink interface {
	SetDrive(key, value int) error
	SetSustain(engaged bool) error
	Commit() error
	ResetAll() error
}

// Progress is reported after each frame is struck.
type Progress struct {
	Index   int
	Total   int
	Frame   timeline.Frame
	Elapsed time.Duration
}

// Player walks a timeline in real time against a Sink.
type Player struct {
	sink   Sink
	mapper *calibration.Mapper

	LeadIn  time.Duration
	Settle  float64
	OnFrame func(Progress)

	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a player with the default lead-in and settle fraction.
func New(sink Sink, mapper *calibration.Mapper) *Player {
	return &Player{
		sink:   sink,
		mapper: mapper,
		LeadIn: DefaultLeadIn,
		Settle: DefaultSettle,
		sleep:  sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Play strikes every frame of tl. Each frame is held for settle*hold, then
// keys the next frame releases are lifted (and the pedal engaged if the next
// frame wants it) before the rest of the hold elapses. The instrument is
// always left silent: on completion, on cancellation (ErrStopped) and, best
// effort, on sink failure (ErrActuator).
func (p *Player) Play(ctx context.Context, tl *timeline.Timeline) error {
	if tl == nil {
		return fmt.Errorf("%w: no timeline", ErrConfig)
	}
	if tl.TicksPerBeat <= 0 || tl.Tempo == 0 {
		return fmt.Errorf("%w: ticks per beat %d, tempo %d", ErrConfig, tl.TicksPerBeat, tl.Tempo)
	}
	if p.Settle < 0 || p.Settle > 1 {
		return fmt.Errorf("%w: settle fraction %v", ErrConfig, p.Settle)
	}

	log := debug.Logger()
	if err := p.sink.ResetAll(); err != nil {
		return p.fail("reset", err)
	}

	log.Info("count-in", "lead_in", p.LeadIn, "frames", len(tl.Frames), "duration", tl.Duration())
	if err := p.sleep(ctx, p.LeadIn); err != nil {
		return p.stop()
	}

	start := time.Now()
	frames := tl.Frames
	for i := 0; i+1 < len(frames); i++ {
		if ctx.Err() != nil {
			return p.stop()
		}

		a, b := &frames[i], &frames[i+1]
		if err := p.strike(a); err != nil {
			return p.fail("strike", err)
		}
		if p.OnFrame != nil {
			p.OnFrame(Progress{Index: i, Total: len(frames), Frame: *a, Elapsed: time.Since(start)})
		}

		hold := tl.Hold(i)
		settle := time.Duration(math.Round(float64(hold) * p.Settle))
		debug.LogEvery(64, "player", "frame %d/%d hold %v", i, len(frames), hold)

		if err := p.sleep(ctx, settle); err != nil {
			return p.stop()
		}
		if err := p.anticipate(a, b); err != nil {
			return p.fail("anticipate", err)
		}
		if err := p.sleep(ctx, hold-settle); err != nil {
			return p.stop()
		}
	}

	if err := p.closeOut(); err != nil {
		return p.fail("close-out", err)
	}
	if p.OnFrame != nil && len(frames) > 0 {
		p.OnFrame(Progress{Index: len(frames) - 1, Total: len(frames), Elapsed: time.Since(start)})
	}
	if err := p.sink.ResetAll(); err != nil {
		return p.fail("reset", err)
	}

	log.Info("playback finished", "elapsed", time.Since(start).Round(time.Millisecond), "expected", tl.Duration())
	return nil
}

// strike applies the full mapped state of f.
func (p *Player) strike(f *timeline.Frame) error {
	for key, vel := range f.Drive {
		if err := p.sink.SetDrive(key, p.mapper.Drive(vel, key)); err != nil {
			return err
		}
	}
	if err := p.sink.SetSustain(f.Sustain); err != nil {
		return err
	}
	return p.sink.Commit()
}

// anticipate makes the changes of b that the mechanism is slow to perform.
func (p *Player) anticipate(a, b *timeline.Frame) error {
	changed := false
	if !a.Sustain && b.Sustain {
		if err := p.sink.SetSustain(true); err != nil {
			return err
		}
		changed = true
	}
	for key := 0; key < midi.NumKeys; key++ {
		if a.Drive[key] != 0 && b.Drive[key] == 0 {
			if err := p.sink.SetDrive(key, 0); err != nil {
				return err
			}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return p.sink.Commit()
}

func (p *Player) closeOut() error {
	for key := 0; key < midi.NumKeys; key++ {
		if err := p.sink.SetDrive(key, 0); err != nil {
			return err
		}
	}
	if err := p.sink.SetSustain(false); err != nil {
		return err
	}
	return p.sink.Commit()
}

func (p *Player) stop() error {
	debug.Logger().Warn("playback stopped, releasing all keys")
	if err := p.closeOut(); err != nil {
		return p.fail("close-out", err)
	}
	if err := p.sink.ResetAll(); err != nil {
		return p.fail("reset", err)
	}
	return ErrStopped
}

// fail resets the instrument once, ignoring the result, and wraps err.
func (p *Player) fail(op string, err error) error {
	_ = p.sink.ResetAll()
	return fmt.Errorf("%w: %s: %w", ErrActuator, op, err)
}
