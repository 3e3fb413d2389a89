// Package piano wires configuration, calibration, the actuator sink and the
// player into one instrument that songs can be loaded onto.
package piano

import (
	"context"
	"fmt"
	"io"
	"time"

	"player-piano/actuator"
	"player-piano/calibration"
	"player-piano/config"
	"player-piano/debug"
	"player-piano/midi"
	"player-piano/player"
	"player-piano/timeline"
)

// Instrument is one physical piano. It owns the sink from Open until Close.
type Instrument struct {
	cfg        *config.Config
	sink       player.Sink
	table      calibration.Table
	controller *player.Controller
}

// Open validates cfg, loads (or generates) the calibration and connects
// the configured sink. The sink is reset before Open returns.
func Open(cfg *config.Config) (*Instrument, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := calibration.NewStore(cfg.Calibration.Path)
	store.DriveMax = cfg.DriveMax
	table, generated, err := store.LoadOrGenerate(cfg.Calibration.DefaultMinimum)
	if err != nil {
		return nil, fmt.Errorf("load calibration: %w", err)
	}
	if generated {
		debug.Logger().Info("wrote default calibration, edit it to tune each key", "path", store.Path)
	}

	sink, err := openSink(cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg, sink, table)
}

// New builds an instrument around an already connected sink.
func New(cfg *config.Config, sink player.Sink, table calibration.Table) (*Instrument, error) {
	if err := sink.ResetAll(); err != nil {
		closeSink(sink)
		return nil, fmt.Errorf("%w: initial reset: %w", player.ErrActuator, err)
	}

	mapper := calibration.NewMapper(table)
	mapper.DriveMax = cfg.DriveMax

	p := player.New(sink, mapper)
	p.LeadIn = cfg.Session.LeadIn()
	p.Settle = cfg.Session.SettleFraction

	return &Instrument{
		cfg:        cfg,
		sink:       sink,
		table:      table,
		controller: player.NewController(p),
	}, nil
}

func openSink(cfg *config.Config) (player.Sink, error) {
	switch cfg.Sink.Kind {
	case config.SinkSerial:
		return actuator.OpenSerial(cfg.Sink.SerialPort, cfg.Sink.Baud, cfg.DriveMax)
	case config.SinkMIDI:
		ch := max(cfg.Sink.MIDIChannel, 1) - 1
		return actuator.OpenMIDI(cfg.Sink.MIDIPort, uint8(ch), cfg.KeyOffset, cfg.DriveMax)
	default:
		return actuator.NewDry(cfg.DriveMax), nil
	}
}

// Controller gives access to the session guard.
func (in *Instrument) Controller() *player.Controller {
	return in.controller
}

// Sink returns the connected actuator sink.
func (in *Instrument) Sink() player.Sink {
	return in.sink
}

// Calibration returns the table in use.
func (in *Instrument) Calibration() calibration.Table {
	return in.table
}

// Load decodes and compiles song. tempoOverride replaces the song's tempo
// when nonzero; otherwise the session's configured override applies.
func (in *Instrument) Load(song string, tempoOverride uint32) (*timeline.Timeline, error) {
	path, err := in.cfg.ResolveSong(song)
	if err != nil {
		return nil, err
	}
	decoded, err := midi.ReadFile(path, in.cfg.KeyOffset)
	if err != nil {
		return nil, err
	}

	if tempoOverride == 0 {
		tempoOverride = in.cfg.Session.TempoOverride
	}
	tl, err := timeline.Compile(decoded.Events, decoded.TicksPerBeat, tempoOverride)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	debug.Logger().Info("loaded song",
		"song", path,
		"frames", len(tl.Frames),
		"tick", timeline.TicksToDuration(1, tl.TicksPerBeat, tl.Tempo),
		"duration", tl.Duration().Round(time.Millisecond),
		"dropped", tl.Dropped)
	return tl, nil
}

// Play loads song and plays it to completion.
func (in *Instrument) Play(ctx context.Context, song string, tempoOverride uint32) error {
	tl, err := in.Load(song, tempoOverride)
	if err != nil {
		return err
	}
	return in.controller.Play(ctx, song, tl)
}

// Start loads song and plays it in the background.
func (in *Instrument) Start(ctx context.Context, song string, tempoOverride uint32) error {
	if in.controller.Playing() {
		return player.ErrBusy
	}
	tl, err := in.Load(song, tempoOverride)
	if err != nil {
		return err
	}
	return in.controller.Start(ctx, song, tl)
}

// Close stops any session, resets the instrument and releases the sink.
func (in *Instrument) Close() error {
	in.controller.Stop()
	in.controller.Wait()

	err := in.sink.ResetAll()
	closeSink(in.sink)
	if err != nil {
		return fmt.Errorf("%w: final reset: %w", player.ErrActuator, err)
	}
	return nil
}

func closeSink(s player.Sink) {
	if c, ok := s.(io.Closer); ok {
		c.Close()
	}
}
