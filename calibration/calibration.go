// Package calibration holds the per-key minimum drive table and the
// velocity to drive mapping built on it.
package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"player-piano/debug"
	"player-piano/midi"
)

const (
	// DefaultMinimum is the drive assumed for every key of an uncalibrated piano.
	DefaultMinimum = 2048
	// DriveMax is the PWM ceiling of the 12-bit driver boards.
	DriveMax = 4096
)

var (
	// ErrNotFound means no calibration has been persisted yet.
	ErrNotFound = errors.New("calibration: not found")
	// ErrCorrupt means the persisted calibration must be deleted or regenerated.
	ErrCorrupt = errors.New("calibration: corrupt")
)

// Table is the minimum drive per key index.
type Table [midi.NumKeys]int

// GenerateDefault returns a table with every key at minimum.
func GenerateDefault(minimum int) Table {
	var t Table
	for k := range t {
		t[k] = minimum
	}
	return t
}

// Store persists a Table as "key,minimum" lines.
type Store struct {
	Path     string
	DriveMax int
}

// NewStore returns a store at path validating against DriveMax.
func NewStore(path string) *Store {
	return &Store{Path: path, DriveMax: DriveMax}
}

// Load reads the table. A missing file is ErrNotFound; anything that does
// not describe exactly one valid minimum for each of the 88 keys is ErrCorrupt.
func (s *Store) Load() (Table, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Table{}, ErrNotFound
		}
		return Table{}, err
	}
	defer f.Close()

	t, err := Parse(f, s.driveMax())
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", s.Path, err)
	}
	return t, nil
}

// Save writes t, replacing any existing file.
func (s *Store) Save(t Table) error {
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	var b strings.Builder
	for k, min := range t {
		fmt.Fprintf(&b, "%d,%d\n", k, min)
	}
	return os.WriteFile(s.Path, []byte(b.String()), 0644)
}

// LoadOrGenerate loads the table, generating and persisting a default one
// when none exists. Corrupt tables are never repaired.
func (s *Store) LoadOrGenerate(minimum int) (Table, bool, error) {
	t, err := s.Load()
	if !errors.Is(err, ErrNotFound) {
		return t, false, err
	}

	debug.Logger().Warn("no calibration found, generating default", "path", s.Path, "minimum", minimum)
	if err := s.Save(GenerateDefault(minimum)); err != nil {
		return Table{}, false, fmt.Errorf("persist default calibration: %w", err)
	}

	t, err = s.Load()
	return t, true, err
}

func (s *Store) driveMax() int {
	if s.DriveMax <= 0 {
		return DriveMax
	}
	return s.DriveMax
}

// Parse reads a calibration table from r.
func Parse(r io.Reader, driveMax int) (Table, error) {
	var t Table
	var seen [midi.NumKeys]bool
	count := 0

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		keyText, minText, ok := strings.Cut(text, ",")
		if !ok {
			return Table{}, fmt.Errorf("%w: line %d: want key,minimum", ErrCorrupt, line)
		}
		key, err := strconv.Atoi(strings.TrimSpace(keyText))
		if err != nil || !midi.ValidKey(key) {
			return Table{}, fmt.Errorf("%w: line %d: bad key %q", ErrCorrupt, line, keyText)
		}
		min, err := strconv.Atoi(strings.TrimSpace(minText))
		if err != nil || min < 0 || min >= driveMax {
			return Table{}, fmt.Errorf("%w: line %d: bad minimum %q", ErrCorrupt, line, minText)
		}
		if seen[key] {
			return Table{}, fmt.Errorf("%w: line %d: duplicate key %d", ErrCorrupt, line, key)
		}

		seen[key] = true
		t[key] = min
		count++
	}
	if err := scanner.Err(); err != nil {
		return Table{}, err
	}

	if count != midi.NumKeys {
		return Table{}, fmt.Errorf("%w: %d of %d keys present", ErrCorrupt, count, midi.NumKeys)
	}
	return t, nil
}
