// Package catalog loads and caches the bounded set of monitored cities.
package catalog

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/wxagent/weather-agent/internal/weather"
)

// Catalog holds the static list of monitored locations, loaded once per
// process. Never mutated by jobs.
type Catalog struct {
	locations []weather.Location
	byKey     map[string]weather.Location
}

type citiesFile struct {
	Cities []weather.Location `json:"cities"`
}

// Load reads the cities file, truncated to limit entries (0 = unlimited).
// An unreadable file is a startup configuration error and is returned to the
// caller. A readable but malformed file fails open to an empty catalog:
// logged, never raised, so the rest of the pipeline keeps running.
func Load(path string, limit int) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cities file %s: %w", path, err)
	}

	var parsed citiesFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		log.Printf("catalog: malformed cities file %s: %v; continuing with empty catalog", path, err)
		return New(nil), nil
	}

	cities := parsed.Cities
	if limit > 0 && len(cities) > limit {
		cities = cities[:limit]
	}

	return New(cities), nil
}

// New builds a catalog from an in-memory list, preserving order.
func New(locations []weather.Location) *Catalog {
	byKey := make(map[string]weather.Location, len(locations))
	for _, loc := range locations {
		byKey[loc.Key()] = loc
	}
	return &Catalog{locations: locations, byKey: byKey}
}

// List returns the monitored locations in catalog order.
func (c *Catalog) List() []weather.Location {
	return c.locations
}

// Lookup finds a location by name, case-insensitive exact match.
func (c *Catalog) Lookup(name string) (weather.Location, bool) {
	loc, ok := c.byKey[strings.ToLower(name)]
	return loc, ok
}

// Len returns the number of monitored locations.
func (c *Catalog) Len() int {
	return len(c.locations)
}
