package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"player-piano/actuator"
	"player-piano/calibration"
	"player-piano/config"
	"player-piano/midi"
	"player-piano/piano"
	"player-piano/player"
)

const pulseLength = 150 * time.Millisecond

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "pulse":
		err = pulse(os.Args[2:])
	case "sweep":
		err = sweep(os.Args[2:])
	case "reset":
		err = reset()
	case "poll":
		pollPorts()
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Actuator Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List serial and MIDI output ports")
	fmt.Println("  pulse <key> [vel]    - Strike one key (0-87) briefly")
	fmt.Println("  sweep [vel]          - Strike every key from bottom to top")
	fmt.Println("  reset                - Release every key and the pedal")
	fmt.Println("  poll                 - Poll for port changes")
	fmt.Println("")
	fmt.Println("The sink and calibration come from the normal config file.")
}

func listPorts() error {
	fmt.Println("=== Serial Ports ===")
	serials, err := actuator.SerialPorts()
	if err != nil {
		fmt.Printf("  (%v)\n", err)
	}
	for i, p := range serials {
		fmt.Printf("  %d: %s\n", i, p)
	}

	fmt.Println("\n=== MIDI Output Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")
	outs, err := midi.OutPorts()
	if err != nil {
		return err
	}
	for i, p := range outs {
		fmt.Printf("  %d: %s\n", i, p.String())
	}
	return nil
}

func open() (*config.Config, player.Sink, calibration.Table, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, nil, calibration.Table{}, err
	}
	in, err := piano.Open(cfg)
	if err != nil {
		return nil, nil, calibration.Table{}, err
	}
	return cfg, in.Sink(), in.Calibration(), nil
}

func parseVelocity(args []string) (uint8, error) {
	if len(args) == 0 {
		return 100, nil
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 1 || v > 127 {
		return 0, fmt.Errorf("velocity %q must be 1-127", args[0])
	}
	return uint8(v), nil
}

func strike(sink player.Sink, m *calibration.Mapper, key int, vel uint8) error {
	drive := m.Drive(vel, key)
	fmt.Printf("key %2d  velocity %3d  drive %4d\n", key, vel, drive)
	if err := sink.SetDrive(key, drive); err != nil {
		return err
	}
	if err := sink.Commit(); err != nil {
		return err
	}
	time.Sleep(pulseLength)
	if err := sink.SetDrive(key, 0); err != nil {
		return err
	}
	return sink.Commit()
}

func pulse(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("pulse needs a key")
	}
	key, err := strconv.Atoi(args[0])
	if err != nil || !midi.ValidKey(key) {
		return fmt.Errorf("key %q must be 0-%d", args[0], midi.NumKeys-1)
	}
	vel, err := parseVelocity(args[1:])
	if err != nil {
		return err
	}

	cfg, sink, table, err := open()
	if err != nil {
		return err
	}
	defer closeSink(sink)

	m := calibration.NewMapper(table)
	m.DriveMax = cfg.DriveMax
	return strike(sink, m, key, vel)
}

func sweep(args []string) error {
	vel, err := parseVelocity(args)
	if err != nil {
		return err
	}

	cfg, sink, table, err := open()
	if err != nil {
		return err
	}
	defer closeSink(sink)

	m := calibration.NewMapper(table)
	m.DriveMax = cfg.DriveMax
	for key := 0; key < midi.NumKeys; key++ {
		if err := strike(sink, m, key, vel); err != nil {
			return err
		}
		time.Sleep(pulseLength)
	}
	fmt.Println("Done!")
	return nil
}

func reset() error {
	_, sink, _, err := open()
	if err != nil {
		return err
	}
	defer closeSink(sink)
	if err := sink.ResetAll(); err != nil {
		return err
	}
	fmt.Println("All keys released")
	return nil
}

func closeSink(s player.Sink) {
	s.ResetAll()
	if c, ok := s.(interface{ Close() error }); ok {
		c.Close()
	}
}

func pollPorts() {
	fmt.Println("Polling for port changes every 2 seconds...")
	fmt.Println("Plug/unplug the actuator board to test. Ctrl+C to exit.")

	last := ""
	for {
		var names []string
		if serials, err := actuator.SerialPorts(); err == nil {
			names = append(names, serials...)
		}
		if outs, err := midi.OutPorts(); err == nil {
			for _, p := range outs {
				names = append(names, "midi:"+p.String())
			}
		}

		current := strings.Join(names, ", ")
		if current != last {
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05"), current)
			last = current
		}
		time.Sleep(2 * time.Second)
	}
}
