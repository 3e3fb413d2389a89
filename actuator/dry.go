package actuator

import "player-piano/debug"

// Dry logs commits instead of moving anything.
type Dry struct {
	Buffer
	Commits int
}

// NewDry returns a dry-run sink.
func NewDry(driveMax int) *Dry {
	return &Dry{Buffer: Buffer{DriveMax: driveMax}}
}

func (d *Dry) Commit() error {
	d.Commits++
	debug.Logger().Debug("commit", "n", d.Commits, "keys", d.Pressed(), "sustain", d.Sustain)
	return nil
}

func (d *Dry) ResetAll() error {
	d.Clear()
	debug.Logger().Debug("reset")
	return nil
}
