package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wxagent/weather-agent/internal/weather"
)

// Archive readings carry less detail than live ones: feels-like and min/max
// are set equal to the hourly temperature, wind direction is not in the basic
// archive, and visibility is defaulted. Deliberate fidelity loss.
const archiveDefaultVisibility = 10000

// OpenMeteoArchiveProvider is the historical-range provider: one network call
// per location covering the whole inclusive date range, returning one reading
// per hour as parallel arrays.
type OpenMeteoArchiveProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoArchiveProvider(client *http.Client) *OpenMeteoArchiveProvider {
	return &OpenMeteoArchiveProvider{
		name:    "openmeteo-archive",
		baseURL: "https://archive-api.open-meteo.com/v1/archive",
		client:  client,
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoArchiveProvider) Name() string {
	return p.name
}

type openMeteoHourly struct {
	Time             []string   `json:"time"`
	Temperature2m    []*float64 `json:"temperature_2m"`
	RelativeHumidity []*float64 `json:"relative_humidity_2m"`
	PressureMsl      []*float64 `json:"pressure_msl"`
	WindSpeed10m     []*float64 `json:"wind_speed_10m"`
	WeatherCode      []*int     `json:"weather_code"`
	CloudCover       []*float64 `json:"cloud_cover"`
}

func (p *OpenMeteoArchiveProvider) FetchRange(ctx context.Context, loc weather.Location, start, end time.Time) ([]weather.Observation, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", loc.Lat))
		values.Set("longitude", fmt.Sprintf("%f", loc.Lon))
		values.Set("start_date", start.UTC().Format("2006-01-02"))
		values.Set("end_date", end.UTC().Format("2006-01-02"))
		values.Set("hourly", "temperature_2m,relative_humidity_2m,pressure_msl,wind_speed_10m,weather_code,cloud_cover")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly *openMeteoHourly `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}
	if payload.Hourly == nil || len(payload.Hourly.Time) == 0 {
		return nil, fmt.Errorf("%w: missing hourly time array", weather.ErrMalformedResponse)
	}

	return normalizeArchive(loc, payload.Hourly)
}

// normalizeArchive turns the parallel arrays into one Observation per entry of
// the time array. A sibling array shorter than the time array yields nil
// fields for the missing indexes rather than dropping or failing records.
func normalizeArchive(loc weather.Location, hourly *openMeteoHourly) ([]weather.Observation, error) {
	now := time.Now().UTC()
	out := make([]weather.Observation, 0, len(hourly.Time))

	for i, raw := range hourly.Time {
		ts, err := parseArchiveTime(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timestamp %q", weather.ErrMalformedResponse, raw)
		}

		temp := floatAt(hourly.Temperature2m, i)
		visibility := archiveDefaultVisibility
		windDeg := 0

		obs := weather.Observation{
			City:        loc.Name,
			CountryCode: loc.Country,
			Latitude:    loc.Lat,
			Longitude:   loc.Lon,
			Temperature: temp,
			FeelsLike:   temp,
			TempMin:     temp,
			TempMax:     temp,
			Pressure:    intAt(hourly.PressureMsl, i),
			Humidity:    intAt(hourly.RelativeHumidity, i),
			WindSpeed:   floatAt(hourly.WindSpeed10m, i),
			WindDeg:     &windDeg,
			Clouds:      intAt(hourly.CloudCover, i),
			Visibility:  &visibility,
			Timestamp:   ts,
			Source:      weather.SourceBackfill,
			CreatedAt:   now,
		}

		if code := codeAt(hourly.WeatherCode, i); code != nil {
			obs.Condition, obs.Description = MapWMOCode(*code)
		} else {
			obs.Condition, obs.Description = weather.ConditionUnknown, "unknown"
		}

		out = append(out, obs)
	}

	return out, nil
}

// MapWMOCode maps an Open-Meteo WMO weather code to a condition category and
// description. The table is total: every integer maps to something.
func MapWMOCode(code int) (weather.Condition, string) {
	switch {
	case code == 0:
		return weather.ConditionClear, "clear sky"
	case code >= 1 && code <= 3:
		return weather.ConditionClouds, "partly cloudy"
	case code == 45 || code == 48:
		return weather.ConditionFog, "fog"
	case code == 51 || code == 53 || code == 55:
		return weather.ConditionDrizzle, "drizzle"
	case code == 61 || code == 63 || code == 65:
		return weather.ConditionRain, "rain"
	case code == 71 || code == 73 || code == 75:
		return weather.ConditionSnow, "snow"
	case code >= 95:
		return weather.ConditionThunderstorm, "thunderstorm"
	default:
		return weather.ConditionUnknown, "unknown"
	}
}

// parseArchiveTime accepts the "2006-01-02T15:04" shape Open-Meteo emits for
// timezone=UTC, plus full RFC3339 for safety.
func parseArchiveTime(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02T15:04", strings.TrimSuffix(raw, "Z"))
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func floatAt(arr []*float64, i int) *float64 {
	if i >= len(arr) {
		return nil
	}
	return arr[i]
}

func intAt(arr []*float64, i int) *int {
	if i >= len(arr) || arr[i] == nil {
		return nil
	}
	v := int(*arr[i])
	return &v
}

func codeAt(arr []*int, i int) *int {
	if i >= len(arr) {
		return nil
	}
	return arr[i]
}
