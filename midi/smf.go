package midi

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"

	"player-piano/debug"
)

// SustainController is the damper pedal control change number.
const SustainController = 64

// ErrTimeFormat is returned for SMF files that use SMPTE timing.
var ErrTimeFormat = errors.New("midi: only metric (ticks per quarter note) time format is supported")

// Song is a decoded standard MIDI file flattened into one event stream.
type Song struct {
	Name         string
	TicksPerBeat int
	Events       []Event
}

// ReadFile decodes the SMF at path.
func ReadFile(path string, keyOffset int) (*Song, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	song, err := Read(f, keyOffset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	song.Name = path
	return song, nil
}

// Read decodes an SMF from r. All tracks are merged into a single stream
// ordered by absolute tick; messages the piano has no use for are dropped
// and their deltas folded into the next event.
func Read(r io.Reader, keyOffset int) (*Song, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("decode smf: %w", err)
	}

	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrTimeFormat
	}

	type placed struct {
		abs uint64
		msg smf.Message
	}

	var all []placed
	var end uint64
	for _, tr := range s.Tracks {
		var abs uint64
		for _, ev := range tr {
			abs += uint64(ev.Delta)
			all = append(all, placed{abs: abs, msg: ev.Message})
		}
		if abs > end {
			end = abs
		}
	}

	// Stable so that same-tick messages keep track order.
	sort.SliceStable(all, func(i, j int) bool { return all[i].abs < all[j].abs })

	song := &Song{TicksPerBeat: int(ticks.Ticks4th())}
	var last uint64
	for _, p := range all {
		ev, ok := convert(p.msg, keyOffset)
		if !ok {
			continue
		}
		ev.Delta = uint32(p.abs - last)
		last = p.abs
		song.Events = append(song.Events, ev)
	}
	song.Events = append(song.Events, Event{Kind: EndOfTrack, Delta: uint32(end - last)})

	debug.Log("midi", "decoded %d tracks, %d events, %d ticks/beat", len(s.Tracks), len(song.Events), song.TicksPerBeat)
	return song, nil
}

func convert(msg smf.Message, keyOffset int) (Event, bool) {
	var ch, key, vel, ctl, val uint8
	var bpm float64

	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Kind: NoteOn, Key: KeyFromNote(key, keyOffset), Velocity: vel}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Kind: NoteOff, Key: KeyFromNote(key, keyOffset)}, true
	case msg.GetControlChange(&ch, &ctl, &val):
		if ctl != SustainController {
			return Event{}, false
		}
		return Event{Kind: Sustain, Engaged: val >= 64}, true
	case msg.GetMetaTempo(&bpm):
		if bpm <= 0 {
			return Event{}, false
		}
		return Event{Kind: TempoSet, Tempo: uint32(math.Round(60_000_000 / bpm))}, true
	}
	return Event{}, false
}
