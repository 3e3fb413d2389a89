package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.gpl")
	body := "GIMP Palette\nName: mono\nColumns: 2\n# comment\n0 0 0 black\n255 255 255 white\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadGPL(path)
	if err != nil {
		t.Fatalf("LoadGPL: %v", err)
	}
	if p.Name != "mono" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if got := p.Lookup(0.5); got != (RGB{127, 127, 127}) {
		t.Errorf("Lookup(0.5) = %v", got)
	}
	if got := p.Lookup(-1); got != (RGB{0, 0, 0}) {
		t.Errorf("Lookup(-1) = %v", got)
	}
	if got := p.Lookup(2); got != (RGB{255, 255, 255}) {
		t.Errorf("Lookup(2) = %v", got)
	}
}

func TestLoadOrDefault(t *testing.T) {
	if p := LoadOrDefault(""); p.Name != "plasma" {
		t.Errorf("empty path gave %q", p.Name)
	}
	if p := LoadOrDefault(filepath.Join(t.TempDir(), "missing.gpl")); p.Name != "plasma" {
		t.Errorf("missing file gave %q", p.Name)
	}
}

func TestParseGPLSkipsBadRows(t *testing.T) {
	body := "GIMP Palette\n300 0 0 too bright\n10 20 30\n1 2\n40 50 60 ok\n"
	p, err := ParseGPL(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Colors) != 2 || p.Colors[0] != (RGB{10, 20, 30}) {
		t.Errorf("colors = %v", p.Colors)
	}

	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n1 2 3\n")); err == nil {
		t.Error("single color palette accepted")
	}
}
