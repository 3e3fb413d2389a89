package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"player-piano/calibration"
	"player-piano/midi"
	"player-piano/player"
)

// ErrInvalid marks a configuration that must be fixed before playing.
var ErrInvalid = errors.New("config: invalid")

// SinkKind selects where actuator commands go
type SinkKind string

const (
	SinkDry    SinkKind = "dry"
	SinkSerial SinkKind = "serial"
	SinkMIDI   SinkKind = "midi"
)

// SinkConfig describes the actuator connection
type SinkConfig struct {
	Kind        SinkKind `yaml:"kind"`
	SerialPort  string   `yaml:"serial_port,omitempty"`
	Baud        int      `yaml:"baud,omitempty"`
	MIDIPort    string   `yaml:"midi_port,omitempty"`
	MIDIChannel int      `yaml:"midi_channel,omitempty"` // 1-16
}

// CalibrationConfig locates the per-key calibration
type CalibrationConfig struct {
	Path           string `yaml:"path"`
	DefaultMinimum int    `yaml:"default_minimum"`
}

// Session holds the per-song playback parameters
type Session struct {
	SongSource     string  `yaml:"song,omitempty"`
	TempoOverride  uint32  `yaml:"tempo_override"` // us per beat, 0 = use the song's
	LeadInSeconds  float64 `yaml:"lead_in_seconds"`
	SettleFraction float64 `yaml:"settle_fraction"`
}

// ServerConfig configures the HTTP control surface
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the main configuration structure
type Config struct {
	SongDir     string            `yaml:"song_dir"`
	KeyOffset   int               `yaml:"key_offset"`
	DriveMax    int               `yaml:"drive_max"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Session     Session           `yaml:"session"`
	Sink        SinkConfig        `yaml:"sink"`
	Server      ServerConfig      `yaml:"server"`
	Palette     string            `yaml:"palette,omitempty"` // GIMP .gpl file for the TUI
	Debug       bool              `yaml:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	return &Config{
		SongDir:   "midifiles",
		KeyOffset: midi.DefaultKeyOffset,
		DriveMax:  calibration.DriveMax,
		Calibration: CalibrationConfig{
			Path:           filepath.Join(dir, "key_calibrations.txt"),
			DefaultMinimum: calibration.DefaultMinimum,
		},
		Session: Session{
			LeadInSeconds:  player.DefaultLeadIn.Seconds(),
			SettleFraction: player.DefaultSettle,
		},
		Sink: SinkConfig{
			Kind: SinkDry,
			Baud: 115200,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "player-piano"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path (the default path when empty), or returns
// defaults if it does not exist. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = p
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return cfg, nil
}

// Save writes the config to path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks everything except the song itself.
func (c *Config) Validate() error {
	var problems []string
	if c.DriveMax <= 0 {
		problems = append(problems, fmt.Sprintf("drive_max %d must be positive", c.DriveMax))
	}
	if c.Calibration.DefaultMinimum < 0 || c.Calibration.DefaultMinimum >= c.DriveMax {
		problems = append(problems, fmt.Sprintf("calibration.default_minimum %d outside [0, drive_max)", c.Calibration.DefaultMinimum))
	}
	if c.Calibration.Path == "" {
		problems = append(problems, "calibration.path is empty")
	}
	if c.KeyOffset < 0 || c.KeyOffset+midi.NumKeys > 128 {
		problems = append(problems, fmt.Sprintf("key_offset %d leaves keys outside the MIDI range", c.KeyOffset))
	}
	if c.Session.LeadInSeconds < 0 {
		problems = append(problems, "session.lead_in_seconds is negative")
	}
	if c.Session.SettleFraction < 0 || c.Session.SettleFraction > 1 {
		problems = append(problems, fmt.Sprintf("session.settle_fraction %v outside [0, 1]", c.Session.SettleFraction))
	}

	switch c.Sink.Kind {
	case SinkDry:
	case SinkSerial:
		if c.Sink.SerialPort == "" {
			problems = append(problems, "sink.serial_port is required for the serial sink")
		}
		if c.Sink.Baud <= 0 {
			problems = append(problems, "sink.baud must be positive")
		}
	case SinkMIDI:
		if c.Sink.MIDIPort == "" {
			problems = append(problems, "sink.midi_port is required for the midi sink")
		}
		if c.Sink.MIDIChannel < 0 || c.Sink.MIDIChannel > 16 {
			problems = append(problems, "sink.midi_channel must be 1-16")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown sink.kind %q", c.Sink.Kind))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// LeadIn returns the count-in as a duration.
func (s Session) LeadIn() time.Duration {
	return time.Duration(s.LeadInSeconds * float64(time.Second))
}

// ResolveSong turns a bare song name into a path inside SongDir.
func (c *Config) ResolveSong(song string) (string, error) {
	if song == "" {
		return "", fmt.Errorf("%w: no song given", ErrInvalid)
	}
	if strings.ContainsRune(song, os.PathSeparator) || filepath.IsAbs(song) {
		return song, nil
	}
	if _, err := os.Stat(song); err == nil {
		return song, nil
	}
	return filepath.Join(c.SongDir, song), nil
}

// Songs lists the MIDI files in SongDir.
func (c *Config) Songs() ([]string, error) {
	entries, err := os.ReadDir(c.SongDir)
	if err != nil {
		return nil, err
	}
	var songs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".mid", ".midi":
			songs = append(songs, e.Name())
		}
	}
	return songs, nil
}
