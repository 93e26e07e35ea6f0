package airquality

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/LuminLynx/misty/pkg/logger"
)

// Config contains air-quality client configuration.
type Config struct {
	BaseURL               string
	RequestTimeoutSeconds int
}

// DefaultConfig returns the default air-quality configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:               "https://air-quality-api.open-meteo.com/v1/air-quality",
		RequestTimeoutSeconds: 10,
	}
}

// Client fetches the current US AQI for a coordinate pair.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a new air-quality client.
func NewClient(config Config, log *logger.Logger) *Client {
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.RequestTimeoutSeconds) * time.Second,
		},
		logger: log.Named("airquality-client"),
	}
}

// CurrentAQI returns the current US AQI. The second return is false when
// the provider has no value for the location.
func (c *Client) CurrentAQI(ctx context.Context, lat, lon float64) (int, bool, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", "us_aqi")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("air-quality request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("air-quality provider returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Current struct {
			USAQI *float64 `json:"us_aqi"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, false, fmt.Errorf("decoding air-quality response: %w", err)
	}

	if parsed.Current.USAQI == nil {
		return 0, false, nil
	}
	return int(*parsed.Current.USAQI), true, nil
}
