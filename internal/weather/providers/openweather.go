package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"github.com/wxagent/weather-agent/internal/weather"
)

// OpenWeatherProvider is the live provider: one network call per location per
// invocation against the OpenWeatherMap current-weather endpoint.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: "https://api.openweathermap.org/data/2.5/weather",
		client:  client,
		circuit: newBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// openWeatherPayload mirrors the subset of the OWM response the pipeline
// consumes. Pointer fields distinguish "absent" from zero.
type openWeatherPayload struct {
	Coord *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Main struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		TempMin   *float64 `json:"temp_min"`
		TempMax   *float64 `json:"temp_max"`
		Pressure  *int     `json:"pressure"`
		Humidity  *int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
		Deg   *int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All *int `json:"all"`
	} `json:"clouds"`
	Visibility *int `json:"visibility"`
	Weather    []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Dt int64 `json:"dt"`
}

func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("openweather api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", fmt.Sprintf("%f", loc.Lat))
		values.Set("lon", fmt.Sprintf("%f", loc.Lon))
		values.Set("appid", p.apiKey)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}
	defer resp.Body.Close()

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Observation{}, fmt.Errorf("%w: %v", weather.ErrMalformedResponse, err)
	}

	// A response without coordinates is not attributable to a place.
	if payload.Coord == nil {
		return weather.Observation{}, fmt.Errorf("%w: missing coord", weather.ErrMalformedResponse)
	}

	ts := time.Unix(payload.Dt, 0).UTC()
	if payload.Dt == 0 {
		ts = time.Now().UTC()
	}

	obs := weather.Observation{
		// Keep the clean catalog name, not whatever the provider echoes back.
		City:        loc.Name,
		CountryCode: payload.Sys.Country,
		Latitude:    payload.Coord.Lat,
		Longitude:   payload.Coord.Lon,
		Temperature: payload.Main.Temp,
		FeelsLike:   payload.Main.FeelsLike,
		TempMin:     payload.Main.TempMin,
		TempMax:     payload.Main.TempMax,
		Pressure:    payload.Main.Pressure,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
		WindDeg:     payload.Wind.Deg,
		Clouds:      payload.Clouds.All,
		Visibility:  payload.Visibility,
		Timestamp:   ts,
		Source:      weather.SourceLive,
		CreatedAt:   time.Now().UTC(),
	}

	if obs.CountryCode == "" {
		obs.CountryCode = loc.Country
	}
	if len(payload.Weather) > 0 {
		obs.Condition = weather.ConditionFromMain(payload.Weather[0].Main)
		obs.Description = payload.Weather[0].Description
	} else {
		obs.Condition = weather.ConditionUnknown
	}
	if payload.Sys.Sunrise > 0 {
		sr := time.Unix(payload.Sys.Sunrise, 0).UTC()
		obs.Sunrise = &sr
	}
	if payload.Sys.Sunset > 0 {
		ss := time.Unix(payload.Sys.Sunset, 0).UTC()
		obs.Sunset = &ss
	}

	return obs, nil
}
