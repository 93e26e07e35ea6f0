package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/LuminLynx/misty/pkg/logger"
)

// Field lists requested from the forecast provider. Fixed so responses are
// structurally predictable.
const (
	currentFields = "temperature_2m,relative_humidity_2m,apparent_temperature,precipitation,weather_code,cloud_cover,pressure_msl,surface_pressure,wind_speed_10m,wind_direction_10m"
	dailyFields   = "weather_code,temperature_2m_max,temperature_2m_min,sunrise,sunset,uv_index_max,precipitation_probability_max"
)

// forecastResponse models the provider document explicitly. Anything the
// pipeline needs is a declared field; structural gaps surface as parse
// errors at this boundary instead of propagating zero values downstream.
type forecastResponse struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	UTCOffsetSeconds int     `json:"utc_offset_seconds"`
	Current          *struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		FeelsLike     float64 `json:"apparent_temperature"`
		WeatherCode   int     `json:"weather_code"`
		CloudCover    float64 `json:"cloud_cover"`
		PressureMSL   float64 `json:"pressure_msl"`
		SurfacePress  float64 `json:"surface_pressure"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
	} `json:"current"`
	Daily *struct {
		Time          []string  `json:"time"`
		WeatherCode   []int     `json:"weather_code"`
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		Sunrise       []string  `json:"sunrise"`
		Sunset        []string  `json:"sunset"`
		UVIndexMax    []float64 `json:"uv_index_max"`
		PrecipProbMax []float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// Client fetches forecasts from the provider and transforms them into the
// canonical WeatherData shape.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger

	// Injectable for deterministic tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new forecast provider client.
func NewClient(config Config, log *logger.Logger) *Client {
	limit := rate.Limit(config.RateLimitPerSecond)
	if config.RateLimitPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  log.Named("weather-client"),
		now:     time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchForecast fetches and transforms the forecast for a coordinate pair.
// The returned data is canonical metric.
func (c *Client) FetchForecast(ctx context.Context, loc Location) (*WeatherData, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', -1, 64))
	q.Set("current", currentFields)
	q.Set("daily", dailyFields)
	q.Set("timezone", "auto")
	q.Set("forecast_days", strconv.Itoa(c.config.ForecastDays))

	var resp forecastResponse
	if err := c.fetchWithRetry(ctx, c.config.ForecastBaseURL+"?"+q.Encode(), loc.Key(), &resp); err != nil {
		return nil, err
	}

	return c.transform(loc, &resp)
}

// fetchWithRetry performs the HTTP request with bounded retry and
// exponential backoff. Network errors, non-2xx statuses, and decode
// failures are classified identically and retried.
func (c *Client) fetchWithRetry(ctx context.Context, requestURL, key string, target any) error {
	maxAttempts := c.config.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	initialBackoff := time.Duration(c.config.InitialBackoffMs) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// Wait initial * 2^(attempt-1): 2s then 4s with a 1s initial.
			backoff := initialBackoff * time.Duration(1<<uint(attempt-1))
			c.logger.Info("Retrying forecast fetch",
				logger.String("key", key),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff))
			if err := c.sleep(ctx, backoff); err != nil {
				return NetworkError(err)
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return NetworkError(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return NetworkError(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = NetworkError(err)
			c.logger.Warn("Forecast request failed, may retry",
				logger.String("key", key),
				logger.Error(err),
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", maxAttempts))
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			lastErr = NetworkError(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
			c.logger.Warn("Forecast provider returned non-2xx status, may retry",
				logger.String("key", key),
				logger.Int("status_code", resp.StatusCode),
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", maxAttempts))
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		resp.Body.Close()
		if err != nil {
			lastErr = NetworkError(fmt.Errorf("decoding forecast response: %w", err))
			c.logger.Warn("Failed to decode forecast response, may retry",
				logger.String("key", key),
				logger.Error(err),
				logger.Int("attempt", attempt),
				logger.Int("max_attempts", maxAttempts))
			continue
		}

		if attempt > 1 {
			c.logger.Info("Forecast fetched after retries",
				logger.String("key", key),
				logger.Int("attempts_needed", attempt))
		}
		return nil
	}

	c.logger.Error("All forecast fetch attempts failed",
		logger.String("key", key),
		logger.Error(lastErr),
		logger.Int("max_attempts", maxAttempts))
	return lastErr
}

// transform converts a raw provider document into canonical WeatherData.
func (c *Client) transform(loc Location, resp *forecastResponse) (*WeatherData, error) {
	if resp.Current == nil {
		return nil, ParseError("response missing current block")
	}
	d := resp.Daily
	if d == nil || len(d.Time) == 0 {
		return nil, ParseError("response missing daily block")
	}
	if len(d.Sunrise) == 0 || len(d.Sunset) == 0 ||
		len(d.TempMax) < len(d.Time) || len(d.TempMin) < len(d.Time) ||
		len(d.WeatherCode) < len(d.Time) {
		return nil, ParseError("daily arrays incomplete")
	}

	zone := time.FixedZone("provider-local", resp.UTCOffsetSeconds)
	now := c.now().In(zone)

	sunrise, ok := ParseISOTime(d.Sunrise[0], zone, c.now)
	if !ok {
		c.logger.Warn("Unparseable sunrise, substituting current time",
			logger.String("value", d.Sunrise[0]))
	}
	sunset, ok := ParseISOTime(d.Sunset[0], zone, c.now)
	if !ok {
		c.logger.Warn("Unparseable sunset, substituting current time",
			logger.String("value", d.Sunset[0]))
	}

	// Daytime when the current local hour falls within [sunrise, sunset).
	hour := now.Hour()
	isDay := hour >= sunrise.In(zone).Hour() && hour < sunset.In(zone).Hour()

	pressure := resp.Current.PressureMSL
	if pressure == 0 {
		pressure = resp.Current.SurfacePress
	}

	uvToday := 0.0
	if len(d.UVIndexMax) > 0 {
		uvToday = d.UVIndexMax[0]
	}

	current := CurrentWeather{
		Temp:       resp.Current.Temperature,
		FeelsLike:  resp.Current.FeelsLike,
		Humidity:   resp.Current.Humidity,
		Pressure:   pressure,
		Visibility: 10000, // provider does not report visibility in this field set
		WindSpeed:  resp.Current.WindSpeed,
		WindDeg:    resp.Current.WindDirection,
		Clouds:     resp.Current.CloudCover,
		UVIndex:    uvToday,
		Sunrise:    sunrise.Unix(),
		Sunset:     sunset.Unix(),
		Condition:  MapConditionCode(resp.Current.WeatherCode, isDay),
		ObservedAt: c.now().Unix(),
	}

	daily := make([]DailyForecast, 0, len(d.Time))
	for i := range d.Time {
		date, ok := ParseISOTime(d.Time[i], zone, c.now)
		if !ok {
			c.logger.Warn("Unparseable daily date, substituting current time",
				logger.String("value", d.Time[i]))
		}
		pop := 0.0
		if i < len(d.PrecipProbMax) {
			pop = d.PrecipProbMax[i] / 100.0
		}
		uvi := 0.0
		if i < len(d.UVIndexMax) {
			uvi = d.UVIndexMax[i]
		}
		daily = append(daily, DailyForecast{
			Date:     date.Unix(),
			TempMin:  d.TempMin[i],
			TempMax:  d.TempMax[i],
			TempMean: (d.TempMax[i] + d.TempMin[i]) / 2,
			// Forecast days carry no per-day sunrise/sunset in this
			// model, so they are always mapped as daytime.
			Condition:    MapConditionCode(d.WeatherCode[i], true),
			PrecipChance: pop,
			UVIndex:      uvi,
		})
	}

	return &WeatherData{
		Location: loc,
		Current:  current,
		Daily:    daily,
		Units:    "metric",
	}, nil
}
