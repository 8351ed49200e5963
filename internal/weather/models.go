package weather

import (
	"strings"
	"time"
)

// Condition is the normalized high-level weather category. Live readings use
// the provider's own category where it matches; archive readings are mapped
// from WMO codes.
type Condition string

const (
	ConditionClear        Condition = "Clear"
	ConditionClouds       Condition = "Clouds"
	ConditionFog          Condition = "Fog"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionRain         Condition = "Rain"
	ConditionSnow         Condition = "Snow"
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionUnknown      Condition = "Unknown"
)

// ConditionFromMain maps an OpenWeatherMap "weather.main" string onto the
// closed category set. Unmapped categories become Unknown; the raw
// description is kept on the Observation either way.
func ConditionFromMain(main string) Condition {
	switch main {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionClouds
	case "Drizzle":
		return ConditionDrizzle
	case "Rain":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm":
		return ConditionThunderstorm
	case "Fog", "Mist", "Haze":
		return ConditionFog
	default:
		return ConditionUnknown
	}
}

// Source records which ingestion path produced an observation.
type Source string

const (
	SourceLive     Source = "live"
	SourceBackfill Source = "backfill"
)

// Location is an immutable catalog entry for a monitored place.
type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Key returns the canonical lookup key for this location.
// City names are unique case-insensitively.
func (l Location) Key() string {
	return strings.ToLower(l.Name)
}

// Observation is one weather measurement for one city at one timestamp.
// (City lower-cased, Timestamp) is the sole identity across the store; every
// measurement field is optional and nil when the provider omitted it.
type Observation struct {
	City        string  `json:"city"`
	CountryCode string  `json:"countryCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`

	Temperature *float64 `json:"temperature"`
	FeelsLike   *float64 `json:"feelsLike"`
	TempMin     *float64 `json:"tempMin"`
	TempMax     *float64 `json:"tempMax"`
	Pressure    *int     `json:"pressure"`
	Humidity    *int     `json:"humidity"`
	WindSpeed   *float64 `json:"windSpeed"`
	WindDeg     *int     `json:"windDeg"`
	Clouds      *int     `json:"clouds"`
	Visibility  *int     `json:"visibility"`

	Condition   Condition `json:"condition"`
	Description string    `json:"description"`

	Timestamp time.Time  `json:"timestamp"` // always UTC
	Sunrise   *time.Time `json:"sunrise,omitempty"`
	Sunset    *time.Time `json:"sunset,omitempty"`

	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Key returns the canonical city key of the observation.
func (o Observation) Key() string {
	return strings.ToLower(o.City)
}
