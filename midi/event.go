package midi

import "fmt"

// NumKeys is the number of keys on the instrument.
const NumKeys = 88

// DefaultKeyOffset maps MIDI note 21 (A0) to key 0.
const DefaultKeyOffset = 21

// Kind identifies what an Event does
type Kind uint8

const (
	NoteOn Kind = iota + 1
	NoteOff
	Sustain
	TempoSet
	EndOfTrack
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	case Sustain:
		return "sustain"
	case TempoSet:
		return "tempo"
	case EndOfTrack:
		return "end"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is one decoded timeline event. Delta is the number of ticks since
// the previous event in the stream.
type Event struct {
	Kind     Kind
	Key      int    // key index, may be outside [0, NumKeys) for notes the piano lacks
	Velocity uint8  // NoteOn only
	Engaged  bool   // Sustain only
	Tempo    uint32 // TempoSet only, microseconds per beat
	Delta    uint32
}

// KeyFromNote converts an absolute MIDI note number to a key index.
func KeyFromNote(note uint8, offset int) int {
	return int(note) - offset
}

// ValidKey reports whether key addresses a physical key.
func ValidKey(key int) bool {
	return key >= 0 && key < NumKeys
}

func (e Event) String() string {
	switch e.Kind {
	case NoteOn:
		return fmt.Sprintf("+%d %s key=%d vel=%d", e.Delta, e.Kind, e.Key, e.Velocity)
	case NoteOff:
		return fmt.Sprintf("+%d %s key=%d", e.Delta, e.Kind, e.Key)
	case Sustain:
		return fmt.Sprintf("+%d %s engaged=%t", e.Delta, e.Kind, e.Engaged)
	case TempoSet:
		return fmt.Sprintf("+%d %s %dus/beat", e.Delta, e.Kind, e.Tempo)
	}
	return fmt.Sprintf("+%d %s", e.Delta, e.Kind)
}
