// Package store persists weather observations in SQLite, keyed uniquely by
// (city, timestamp). Two write modes exist on purpose: the live fetch path
// overwrites, the backfill path only fills gaps.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wxagent/weather-agent/internal/weather"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when no observation exists for a city.
var ErrNotFound = errors.New("no weather data for city")

// Store owns a SQLite connection pool. Construct once at process start with
// Open and close on every exit path.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies pending
// migrations. Pass ":memory:" for an in-memory database (used by tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Single connection avoids "database is locked" between the scheduled
	// job and on-demand queries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies embedded SQL migration files that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

const observationColumns = `city, city_key, country_code, latitude, longitude,
	temperature, feels_like, temp_min, temp_max, pressure, humidity,
	wind_speed, wind_deg, clouds, visibility, condition, description,
	timestamp, sunrise, sunset, source, created_at`

func observationArgs(obs weather.Observation) []any {
	return []any{
		obs.City, obs.Key(), obs.CountryCode, obs.Latitude, obs.Longitude,
		nullFloat(obs.Temperature), nullFloat(obs.FeelsLike), nullFloat(obs.TempMin), nullFloat(obs.TempMax),
		nullInt(obs.Pressure), nullInt(obs.Humidity),
		nullFloat(obs.WindSpeed), nullInt(obs.WindDeg), nullInt(obs.Clouds), nullInt(obs.Visibility),
		string(obs.Condition), obs.Description,
		obs.Timestamp.UTC().Format(time.RFC3339),
		nullTime(obs.Sunrise), nullTime(obs.Sunset),
		string(obs.Source), obs.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// UpsertOverwrite inserts an observation, or replaces every field when the
// (city, timestamp) key already exists. The live fetch path only; live data
// is authoritative and always wins.
func (s *Store) UpsertOverwrite(ctx context.Context, obs weather.Observation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (`+observationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (city_key, timestamp) DO UPDATE SET
			city = excluded.city,
			country_code = excluded.country_code,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			temperature = excluded.temperature,
			feels_like = excluded.feels_like,
			temp_min = excluded.temp_min,
			temp_max = excluded.temp_max,
			pressure = excluded.pressure,
			humidity = excluded.humidity,
			wind_speed = excluded.wind_speed,
			wind_deg = excluded.wind_deg,
			clouds = excluded.clouds,
			visibility = excluded.visibility,
			condition = excluded.condition,
			description = excluded.description,
			sunrise = excluded.sunrise,
			sunset = excluded.sunset,
			source = excluded.source,
			created_at = excluded.created_at`,
		observationArgs(obs)...)
	if err != nil {
		return fmt.Errorf("upserting observation for %s: %w", obs.City, err)
	}
	return nil
}

// InsertIfAbsent inserts a batch in one transaction, silently skipping rows
// whose (city, timestamp) key already exists. A failure mid-batch rolls back
// the whole batch. Returns the number of rows actually inserted.
func (s *Store) InsertIfAbsent(ctx context.Context, batch []weather.Observation) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning batch insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (`+observationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (city_key, timestamp) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("preparing batch insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, obs := range batch {
		res, err := stmt.ExecContext(ctx, observationArgs(obs)...)
		if err != nil {
			return 0, fmt.Errorf("inserting observation for %s at %s: %w", obs.City, obs.Timestamp, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing batch insert: %w", err)
	}
	return inserted, nil
}

// Latest returns the most recent observation for a city (case-insensitive),
// or ErrNotFound.
func (s *Store) Latest(ctx context.Context, city string) (weather.Observation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations
		WHERE city_key = ?
		ORDER BY timestamp DESC
		LIMIT 1`,
		strings.ToLower(city))

	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Observation{}, ErrNotFound
	}
	if err != nil {
		return weather.Observation{}, fmt.Errorf("querying latest for %s: %w", city, err)
	}
	return obs, nil
}

// Range returns observations for a city since the given time, newest first.
// An empty result is an empty slice, not an error.
func (s *Store) Range(ctx context.Context, city string, since time.Time) ([]weather.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+observationColumns+`
		FROM observations
		WHERE city_key = ? AND timestamp >= ?
		ORDER BY timestamp DESC`,
		strings.ToLower(city), since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying range for %s: %w", city, err)
	}
	defer rows.Close()

	var out []weather.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning range row for %s: %w", city, err)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// IsEmpty reports whether the store holds zero observations. Gates the
// one-shot historical backfill.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM observations").Scan(&count); err != nil {
		return false, fmt.Errorf("counting observations: %w", err)
	}
	return count == 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObservation(row scanner) (weather.Observation, error) {
	var (
		obs        weather.Observation
		cityKey    string
		temp       sql.NullFloat64
		feels      sql.NullFloat64
		tmin       sql.NullFloat64
		tmax       sql.NullFloat64
		pressure   sql.NullInt64
		humidity   sql.NullInt64
		wind       sql.NullFloat64
		windDeg    sql.NullInt64
		clouds     sql.NullInt64
		visibility sql.NullInt64
		condition  string
		timestamp  string
		sunrise    sql.NullString
		sunset     sql.NullString
		source     string
		createdAt  string
	)

	err := row.Scan(
		&obs.City, &cityKey, &obs.CountryCode, &obs.Latitude, &obs.Longitude,
		&temp, &feels, &tmin, &tmax, &pressure, &humidity,
		&wind, &windDeg, &clouds, &visibility,
		&condition, &obs.Description,
		&timestamp, &sunrise, &sunset, &source, &createdAt,
	)
	if err != nil {
		return weather.Observation{}, err
	}

	obs.Temperature = floatPtr(temp)
	obs.FeelsLike = floatPtr(feels)
	obs.TempMin = floatPtr(tmin)
	obs.TempMax = floatPtr(tmax)
	obs.Pressure = intPtr(pressure)
	obs.Humidity = intPtr(humidity)
	obs.WindSpeed = floatPtr(wind)
	obs.WindDeg = intPtr(windDeg)
	obs.Clouds = intPtr(clouds)
	obs.Visibility = intPtr(visibility)
	obs.Condition = weather.Condition(condition)
	obs.Source = weather.Source(source)

	if obs.Timestamp, err = time.Parse(time.RFC3339, timestamp); err != nil {
		return weather.Observation{}, fmt.Errorf("parsing timestamp %q: %w", timestamp, err)
	}
	if obs.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return weather.Observation{}, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if sunrise.Valid {
		if ts, err := time.Parse(time.RFC3339, sunrise.String); err == nil {
			obs.Sunrise = &ts
		}
	}
	if sunset.Valid {
		if ts, err := time.Parse(time.RFC3339, sunset.String); err == nil {
			obs.Sunset = &ts
		}
	}

	return obs, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
