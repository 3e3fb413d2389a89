// Package actuator implements player.Sink for the hardware the piano can be
// wired to: the driver board over a serial link, a MIDI port for monitoring,
// and a dry-run logger.
package actuator

import (
	"fmt"

	"player-piano/midi"
)

// Buffer stages one drive value per key plus the sustain state until the
// owning sink commits them.
type Buffer struct {
	Drive    [midi.NumKeys]uint16
	Sustain  bool
	DriveMax int
}

// SetDrive stages value for key.
func (b *Buffer) SetDrive(key, value int) error {
	if !midi.ValidKey(key) {
		return fmt.Errorf("actuator: key %d out of range", key)
	}
	if value < 0 || value > b.DriveMax {
		return fmt.Errorf("actuator: drive %d for key %d outside [0, %d]", value, key, b.DriveMax)
	}
	b.Drive[key] = uint16(value)
	return nil
}

// SetSustain stages the pedal state.
func (b *Buffer) SetSustain(engaged bool) error {
	b.Sustain = engaged
	return nil
}

// Clear zeroes every staged value.
func (b *Buffer) Clear() {
	b.Drive = [midi.NumKeys]uint16{}
	b.Sustain = false
}

// Pressed lists the keys with a nonzero staged drive.
func (b *Buffer) Pressed() []int {
	var keys []int
	for k, v := range b.Drive {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	return keys
}
