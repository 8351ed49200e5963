package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCitiesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cities.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing cities file: %v", err)
	}
	return path
}

const sampleCities = `{
	"cities": [
		{"name": "Colombo", "country": "LK", "lat": 6.9271, "lon": 79.8612},
		{"name": "London", "country": "GB", "lat": 51.5074, "lon": -0.1278},
		{"name": "Tokyo", "country": "JP", "lat": 35.6762, "lon": 139.6503}
	]
}`

func TestLoadPreservesOrder(t *testing.T) {
	cat, err := Load(writeCitiesFile(t, sampleCities), 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Len() != 3 {
		t.Fatalf("expected 3 cities, got %d", cat.Len())
	}

	want := []string{"Colombo", "London", "Tokyo"}
	for i, loc := range cat.List() {
		if loc.Name != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], loc.Name)
		}
	}
}

func TestLoadTruncatesToLimit(t *testing.T) {
	cat, err := Load(writeCitiesFile(t, sampleCities), 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("expected 2 cities after limit, got %d", cat.Len())
	}
	if _, ok := cat.Lookup("Tokyo"); ok {
		t.Error("city past the limit should not be loaded")
	}
}

func TestLookupCaseInsensitive(t *testing.T) {
	cat, err := Load(writeCitiesFile(t, sampleCities), 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, name := range []string{"london", "LONDON", "London", "LoNdOn"} {
		loc, ok := cat.Lookup(name)
		if !ok {
			t.Errorf("Lookup(%q) missed", name)
			continue
		}
		if loc.Name != "London" || loc.Country != "GB" {
			t.Errorf("Lookup(%q) = %+v", name, loc)
		}
	}

	if _, ok := cat.Lookup("Atlantis"); ok {
		t.Error("unknown city should miss")
	}
}

func TestLoadMalformedFailsOpen(t *testing.T) {
	cat, err := Load(writeCitiesFile(t, `{"cities": [`), 0)
	if err != nil {
		t.Fatalf("malformed file should not be an error, got %v", err)
	}
	if cat.Len() != 0 {
		t.Errorf("malformed file should yield an empty catalog, got %d entries", cat.Len())
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json"), 0); err == nil {
		t.Error("unreadable file should be an error")
	}
}
