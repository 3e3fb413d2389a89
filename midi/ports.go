package midi

import (
	"errors"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrPortTimeout is returned when the MIDI backend does not answer a port
// query (CoreMIDI is known to hang).
var ErrPortTimeout = errors.New("midi: port query timed out")

const portQueryTimeout = 3 * time.Second

// OutPorts lists the MIDI output ports, giving up after a few seconds.
func OutPorts() ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, nil
	case <-time.After(portQueryTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrPortTimeout
	}
}

// OpenOut finds an output port whose name contains name (case-insensitive)
// and returns a sender for it.
func OpenOut(name string) (drivers.Out, func(gomidi.Message) error, error) {
	outs, err := OutPorts()
	if err != nil {
		return nil, nil, err
	}

	want := strings.ToLower(name)
	for _, out := range outs {
		if !strings.Contains(strings.ToLower(out.String()), want) {
			continue
		}
		send, err := gomidi.SendTo(out)
		if err != nil {
			return nil, nil, err
		}
		return out, send, nil
	}
	return nil, nil, errors.New("midi: no output port matching " + name)
}
