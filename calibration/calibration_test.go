package calibration

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestMapDriveEndpointsAndMonotonic(t *testing.T) {
	tables := []Table{
		GenerateDefault(DefaultMinimum),
		GenerateDefault(0),
		GenerateDefault(DriveMax - 1),
	}
	uneven := GenerateDefault(DefaultMinimum)
	for k := range uneven {
		uneven[k] = 800 + k*37
	}
	tables = append(tables, uneven)

	for ti, table := range tables {
		for key := range table {
			if got := MapDrive(0, key, table, DriveMax); got != 0 {
				t.Fatalf("table %d key %d: MapDrive(0) = %d, want 0", ti, key, got)
			}
			if got := MapDrive(1, key, table, DriveMax); got != table[key] {
				t.Fatalf("table %d key %d: MapDrive(1) = %d, want %d", ti, key, got, table[key])
			}
			if got := MapDrive(127, key, table, DriveMax); got != DriveMax {
				t.Fatalf("table %d key %d: MapDrive(127) = %d, want %d", ti, key, got, DriveMax)
			}
			prev := MapDrive(1, key, table, DriveMax)
			for v := 2; v <= 127; v++ {
				cur := MapDrive(uint8(v), key, table, DriveMax)
				if cur < prev {
					t.Fatalf("table %d key %d: MapDrive(%d) = %d < MapDrive(%d) = %d", ti, key, v, cur, v-1, prev)
				}
				prev = cur
			}
		}
	}
}

func TestMapDriveValues(t *testing.T) {
	half := GenerateDefault(DriveMax - 63)

	tests := []struct {
		name     string
		velocity uint8
		table    Table
		want     int
	}{
		{"forte key 39", 100, GenerateDefault(2048), 3657},
		{"midpoint", 64, GenerateDefault(2048), 3072},
		{"half rounds away from zero", 2, half, DriveMax - 62},
		{"clamped above 127", 200, GenerateDefault(2048), DriveMax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewMapper(tt.table).Drive(tt.velocity, 39); got != tt.want {
				t.Errorf("Drive(%d) = %d, want %d", tt.velocity, got, tt.want)
			}
		})
	}
}

func TestLoadOrGenerate(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "cal", "key_calibrations.txt"))

	if _, err := store.Load(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty dir: err = %v, want ErrNotFound", err)
	}

	table, generated, err := store.LoadOrGenerate(1500)
	if err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}
	if !generated {
		t.Error("generated = false, want true")
	}
	for k, min := range table {
		if min != 1500 {
			t.Fatalf("key %d = %d, want 1500", k, min)
		}
	}

	data, err := os.ReadFile(store.Path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 88 || lines[0] != "0,1500" || lines[87] != "87,1500" {
		t.Errorf("persisted %d lines, first %q last %q", len(lines), lines[0], lines[len(lines)-1])
	}

	_, generated, err = store.LoadOrGenerate(900)
	if err != nil || generated {
		t.Errorf("second LoadOrGenerate: generated=%t err=%v, want reuse", generated, err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	valid := func() []string {
		var lines []string
		for k := 0; k < 88; k++ {
			lines = append(lines, strconv.Itoa(k)+",2048")
		}
		return lines
	}

	tests := []struct {
		name    string
		edit    func([]string) []string
		wantErr error
	}{
		{"valid with blank lines", func(l []string) []string { return append(l, "", "  ") }, nil},
		{"no comma", func(l []string) []string { l[3] = "3 2048"; return l }, ErrCorrupt},
		{"non-integer drive", func(l []string) []string { l[3] = "3,abc"; return l }, ErrCorrupt},
		{"key out of range", func(l []string) []string { l[3] = "88,2048"; return l }, ErrCorrupt},
		{"drive at ceiling", func(l []string) []string { l[3] = "3,4096"; return l }, ErrCorrupt},
		{"duplicate key", func(l []string) []string { l[3] = "2,2048"; return l }, ErrCorrupt},
		{"missing key", func(l []string) []string { return l[:87] }, ErrCorrupt},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(filepath.Join(t.TempDir(), "cal.txt"))
			body := strings.Join(tt.edit(valid()), "\n") + "\n"
			if err := os.WriteFile(store.Path, []byte(body), 0644); err != nil {
				t.Fatal(err)
			}

			_, err := store.Load()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load err = %v, want %v", err, tt.wantErr)
			}

			_, generated, err := store.LoadOrGenerate(DefaultMinimum)
			if generated {
				t.Error("corrupt table was regenerated")
			}
			if tt.wantErr != nil && !errors.Is(err, ErrCorrupt) {
				t.Errorf("LoadOrGenerate err = %v, want ErrCorrupt", err)
			}
		})
	}
}
