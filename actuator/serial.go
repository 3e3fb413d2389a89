package actuator

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"

	"player-piano/debug"
	"player-piano/midi"
)

const (
	frameSync = 0xA5
	// FrameSize is sync + 88 big-endian drive words + sustain + checksum.
	FrameSize = 1 + 2*midi.NumKeys + 1 + 1
)

// Serial drives the PWM board through a microcontroller on a serial link.
// Every commit sends one complete frame so the board latches all channels
// at once.
type Serial struct {
	Buffer
	port io.WriteCloser
	name string
}

// OpenSerial opens portName at baud.
func OpenSerial(portName string, baud, driveMax int) (*Serial, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	debug.Logger().Info("driver board connected", "port", portName, "baud", baud)
	return NewSerial(port, portName, driveMax), nil
}

// NewSerial wraps an already open port.
func NewSerial(port io.WriteCloser, name string, driveMax int) *Serial {
	return &Serial{
		Buffer: Buffer{DriveMax: driveMax},
		port:   port,
		name:   name,
	}
}

// SerialPorts lists the serial ports present on the system.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

// Commit sends the staged state.
func (s *Serial) Commit() error {
	frame := EncodeFrame(&s.Buffer)
	if _, err := s.port.Write(frame); err != nil {
		return fmt.Errorf("%s: %w", s.name, err)
	}
	debug.LogEvery(100, "serial", "sent frame, %d keys down", len(s.Pressed()))
	return nil
}

// ResetAll zeroes every channel and lifts the pedal immediately.
func (s *Serial) ResetAll() error {
	s.Clear()
	return s.Commit()
}

// Close releases the port.
func (s *Serial) Close() error {
	return s.port.Close()
}

// EncodeFrame renders b in the board's wire format.
func EncodeFrame(b *Buffer) []byte {
	frame := make([]byte, FrameSize)
	frame[0] = frameSync
	for k, v := range b.Drive {
		binary.BigEndian.PutUint16(frame[1+2*k:], v)
	}
	if b.Sustain {
		frame[FrameSize-2] = 1
	}
	var sum byte
	for _, c := range frame[1 : FrameSize-1] {
		sum ^= c
	}
	frame[FrameSize-1] = sum
	return frame
}
