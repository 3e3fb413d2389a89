package actuator

import (
	gomidi "gitlab.com/gomidi/midi/v2"

	"player-piano/debug"
	"player-piano/midi"
)

// MIDI mirrors committed state to a MIDI output so a performance can be
// checked on a synth before the real instrument is connected.
type MIDI struct {
	Buffer
	send      func(gomidi.Message) error
	channel   uint8
	keyOffset int

	sounding [midi.NumKeys]uint8
	pedal    bool
}

// NewMIDI sends on channel (0-15) via send.
func NewMIDI(send func(gomidi.Message) error, channel uint8, keyOffset, driveMax int) *MIDI {
	return &MIDI{
		Buffer:    Buffer{DriveMax: driveMax},
		send:      send,
		channel:   channel,
		keyOffset: keyOffset,
	}
}

// OpenMIDI finds the output port matching name.
func OpenMIDI(name string, channel uint8, keyOffset, driveMax int) (*MIDI, error) {
	out, send, err := midi.OpenOut(name)
	if err != nil {
		return nil, err
	}
	debug.Logger().Info("mirroring to MIDI output", "port", out.String(), "channel", channel+1)
	return NewMIDI(send, channel, keyOffset, driveMax), nil
}

// Commit sends only what changed since the previous commit.
func (m *MIDI) Commit() error {
	for k, drive := range m.Drive {
		vel := m.velocity(drive)
		if vel == m.sounding[k] {
			continue
		}
		note := uint8(k + m.keyOffset)
		var msg gomidi.Message
		if vel == 0 {
			msg = gomidi.NoteOff(m.channel, note)
		} else {
			if m.sounding[k] != 0 {
				if err := m.send(gomidi.NoteOff(m.channel, note)); err != nil {
					return err
				}
			}
			msg = gomidi.NoteOn(m.channel, note, vel)
		}
		if err := m.send(msg); err != nil {
			return err
		}
		m.sounding[k] = vel
	}

	if m.Sustain != m.pedal {
		var val uint8
		if m.Sustain {
			val = 127
		}
		if err := m.send(gomidi.ControlChange(m.channel, midi.SustainController, val)); err != nil {
			return err
		}
		m.pedal = m.Sustain
	}
	return nil
}

// ResetAll silences every sounding note and lifts the pedal.
func (m *MIDI) ResetAll() error {
	m.Clear()
	return m.Commit()
}

// velocity maps a drive value back onto 1..127.
func (m *MIDI) velocity(drive uint16) uint8 {
	if drive == 0 || m.DriveMax <= 0 {
		return 0
	}
	v := int(drive) * 127 / m.DriveMax
	if v < 1 {
		v = 1
	}
	if v > 127 {
		v = 127
	}
	return uint8(v)
}
