// Package timeline compiles a decoded event stream into actuation frames.
//
// A Frame is the state of every key and the sustain pedal at one instant.
// Events that share a tick collapse into a single frame, so a chord is one
// frame rather than one frame per note.
package timeline

import (
	"errors"
	"fmt"
	"time"

	"player-piano/debug"
	"player-piano/midi"
)

var (
	// ErrNoTempo means neither the stream nor the caller supplied a tempo.
	ErrNoTempo = errors.New("timeline: no tempo in source and no override given")
	// ErrConfig covers a degenerate clock (non-positive ticks per beat).
	ErrConfig = errors.New("timeline: invalid clock")
)

// Frame is one simultaneous snapshot of the instrument.
type Frame struct {
	Drive     [midi.NumKeys]uint8 // raw velocity, 0 = released
	Sustain   bool
	HoldTicks uint32 // ticks until the next frame takes effect
}

// Silent reports whether every key is released and the pedal is up.
func (f *Frame) Silent() bool {
	if f.Sustain {
		return false
	}
	for _, v := range f.Drive {
		if v != 0 {
			return false
		}
	}
	return true
}

// Pressed returns the number of keys held down in f.
func (f *Frame) Pressed() int {
	n := 0
	for _, v := range f.Drive {
		if v != 0 {
			n++
		}
	}
	return n
}

// Timeline is a compiled song with the clock it was compiled against.
type Timeline struct {
	Frames       []Frame
	TicksPerBeat int
	Tempo        uint32 // microseconds per beat
	Dropped      int    // note events for keys the piano does not have
}

// TicksToDuration converts ticks to wall-clock time.
func TicksToDuration(ticks uint32, ticksPerBeat int, tempo uint32) time.Duration {
	if ticksPerBeat <= 0 {
		return 0
	}
	ns := uint64(ticks) * uint64(tempo) * uint64(time.Microsecond) / uint64(ticksPerBeat)
	return time.Duration(ns)
}

// Hold returns how long frame i is held.
func (t *Timeline) Hold(i int) time.Duration {
	return TicksToDuration(t.Frames[i].HoldTicks, t.TicksPerBeat, t.Tempo)
}

// Duration is the total playing time, excluding any lead-in.
func (t *Timeline) Duration() time.Duration {
	var total uint64
	for i := range t.Frames {
		total += uint64(t.Frames[i].HoldTicks)
	}
	ns := total * uint64(t.Tempo) * uint64(time.Microsecond)
	if t.TicksPerBeat > 0 {
		ns /= uint64(t.TicksPerBeat)
	}
	return time.Duration(ns)
}

// Compile builds the frame sequence for events.
//
// The clock is fixed before any note is looked at: tempoOverride wins when
// nonzero, otherwise the first TempoSet in the stream is used. Later
// TempoSet events are ignored.
func Compile(events []midi.Event, ticksPerBeat int, tempoOverride uint32) (*Timeline, error) {
	if ticksPerBeat <= 0 {
		return nil, fmt.Errorf("%w: ticks per beat %d", ErrConfig, ticksPerBeat)
	}

	tempo := tempoOverride
	if tempo == 0 {
		for _, e := range events {
			if e.Kind == midi.TempoSet && e.Tempo > 0 {
				tempo = e.Tempo
				break
			}
		}
	}
	if tempo == 0 {
		return nil, ErrNoTempo
	}

	tl := &Timeline{
		Frames:       make([]Frame, 1, len(events)/2+2),
		TicksPerBeat: ticksPerBeat,
		Tempo:        tempo,
	}

	// Ticks from events that changed nothing, owed to the next real change.
	var pending uint32

	for _, e := range events {
		delta := pending + e.Delta

		switch e.Kind {
		case midi.NoteOn, midi.NoteOff:
			if !midi.ValidKey(e.Key) {
				tl.Dropped++
				pending = delta
				continue
			}
		case midi.Sustain:
		default:
			pending = delta
			continue
		}
		pending = 0

		if delta > 0 {
			last := &tl.Frames[len(tl.Frames)-1]
			last.HoldTicks = delta
			tl.Frames = append(tl.Frames, Frame{Drive: last.Drive, Sustain: last.Sustain})
		}
		apply(&tl.Frames[len(tl.Frames)-1], e)
	}

	last := &tl.Frames[len(tl.Frames)-1]
	last.HoldTicks += pending
	if !last.Silent() {
		tl.Frames = append(tl.Frames, Frame{})
	}

	if tl.Dropped > 0 {
		debug.Log("timeline", "dropped %d note events outside the keyboard", tl.Dropped)
	}
	debug.Log("timeline", "compiled %d events into %d frames at %dus/beat", len(events), len(tl.Frames), tempo)
	return tl, nil
}

func apply(f *Frame, e midi.Event) {
	switch e.Kind {
	case midi.NoteOn:
		f.Drive[e.Key] = e.Velocity
	case midi.NoteOff:
		f.Drive[e.Key] = 0
	case midi.Sustain:
		f.Sustain = e.Engaged
	}
}
