package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"player-piano/config"
	"player-piano/debug"
	"player-piano/piano"
	"player-piano/player"
	"player-piano/server"
	"player-piano/theme"
	"player-piano/tui"
)

func main() {
	if err := run(); err != nil {
		if player.Stopped(err) {
			fmt.Println("stopped")
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/player-piano/config.yaml)")
		song       = flag.String("song", "", "MIDI file to play, a name inside song_dir or a path")
		tempo      = flag.Uint("tempo", 0, "tempo override in microseconds per beat")
		leadIn     = flag.Float64("lead-in", -1, "seconds to wait before the first note")
		sink       = flag.String("sink", "", "actuator sink: dry, serial or midi")
		port       = flag.String("port", "", "serial device or MIDI output port for the sink")
		useTUI     = flag.Bool("tui", false, "show the playback view")
		serve      = flag.Bool("serve", false, "run the HTTP control server instead of playing once")
		debugLog   = flag.String("debug", "", "write debug log to this file")
		list       = flag.Bool("list", false, "list songs in song_dir and exit")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *song == "" && flag.NArg() > 0 {
		*song = flag.Arg(0)
	}
	if *song != "" {
		cfg.Session.SongSource = *song
	}
	if *leadIn >= 0 {
		cfg.Session.LeadInSeconds = *leadIn
	}
	if *sink != "" {
		cfg.Sink.Kind = config.SinkKind(*sink)
	}
	if *port != "" {
		switch cfg.Sink.Kind {
		case config.SinkSerial:
			cfg.Sink.SerialPort = *port
		case config.SinkMIDI:
			cfg.Sink.MIDIPort = *port
		}
	}

	if *debugLog != "" || cfg.Debug {
		if err := debug.Enable(*debugLog); err != nil {
			return err
		}
		defer debug.Disable()
	}

	if *list {
		songs, err := cfg.Songs()
		if err != nil {
			return err
		}
		for _, s := range songs {
			fmt.Println(s)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	in, err := piano.Open(cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	if *serve {
		return server.New(ctx, cfg, in).Run(ctx)
	}

	if cfg.Session.SongSource == "" {
		return errors.New("no song given, use -song or pass a file")
	}
	override := uint32(*tempo)

	if !*useTUI {
		return in.Play(ctx, cfg.Session.SongSource, override)
	}

	// The view owns the terminal.
	if *debugLog == "" {
		debug.SetOutput(io.Discard)
	}

	play := func() error {
		return in.Start(ctx, cfg.Session.SongSource, override)
	}
	if err := play(); err != nil {
		return err
	}

	th := theme.New(theme.LoadOrDefault(cfg.Palette))
	p := tea.NewProgram(tui.NewModel(in.Controller(), th, play), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	in.Controller().Stop()
	if err := in.Controller().Wait(); err != nil && !player.Stopped(err) {
		return err
	}
	return nil
}
