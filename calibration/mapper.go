package calibration

import "math"

const (
	velMin = 1
	velMax = 127
)

// Mapper converts MIDI velocities to drive values for a calibrated piano.
type Mapper struct {
	Table    Table
	DriveMax int
}

// NewMapper returns a mapper with the default drive ceiling.
func NewMapper(t Table) *Mapper {
	return &Mapper{Table: t, DriveMax: DriveMax}
}

// Drive maps velocity for key. Velocity 0 means released and maps to 0.
func (m *Mapper) Drive(velocity uint8, key int) int {
	return MapDrive(velocity, key, m.Table, m.DriveMax)
}

// MapDrive scales velocity 1..127 linearly onto [table[key], driveMax],
// rounding half away from zero. Velocities above 127 are clamped.
func MapDrive(velocity uint8, key int, table Table, driveMax int) int {
	if velocity == 0 {
		return 0
	}
	if velocity > velMax {
		velocity = velMax
	}

	min := table[key]
	drive := float64(int(velocity)-velMin)*float64(driveMax-min)/float64(velMax-velMin) + float64(min)
	return int(math.Round(drive))
}
