package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yanqian/cityweather/internal/domain/weather"
	apperrors "github.com/yanqian/cityweather/pkg/errors"
)

const (
	defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	maxBodyBytes   = 1 << 20
	units          = "metric"
)

// Client fetches current conditions from an OpenWeatherMap-compatible API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds an API client. The key is required.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, errors.New("weather api key is required")
	}
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = defaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("invalid weather base url %q", raw)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		apiKey:     key,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "openweather.client"),
	}, nil
}

// FetchCurrent returns the current conditions at lat/lon in metric units.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (weather.WeatherSnapshot, error) {
	endpoint := *c.baseURL
	params := endpoint.Query()
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("units", units)
	// logged form never carries the key
	logged := endpoint
	logged.RawQuery = params.Encode()
	params.Set("appid", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		c.logger.Warn("weather request build failed", "endpoint", logged.String(), "kind", weather.CodeInvalidRequest, "error", err)
		return weather.WeatherSnapshot{}, apperrors.Wrap(weather.CodeInvalidRequest, "build weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return weather.WeatherSnapshot{}, ctx.Err()
		}
		c.logger.Warn("weather request failed", "endpoint", logged.String(), "kind", weather.CodeUnexpectedStatus, "error", redact(err, c.apiKey))
		return weather.WeatherSnapshot{}, apperrors.Wrap(weather.CodeUnexpectedStatus, "weather request failed", redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.logger.Warn("weather unexpected status", "endpoint", logged.String(), "kind", weather.CodeUnexpectedStatus, "status", resp.StatusCode, "body", string(payload))
		return weather.WeatherSnapshot{}, apperrors.Wrap(weather.CodeUnexpectedStatus, fmt.Sprintf("weather returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return weather.WeatherSnapshot{}, ctx.Err()
		}
		return weather.WeatherSnapshot{}, apperrors.Wrap(weather.CodeMalformedResponse, "read weather response", err)
	}

	var raw currentResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		c.logger.Warn("weather decode failed", "endpoint", logged.String(), "kind", weather.CodeMalformedResponse, "error", err)
		return weather.WeatherSnapshot{}, apperrors.Wrap(weather.CodeMalformedResponse, "decode weather response", err)
	}

	snapshot, err := normalize(raw)
	if err != nil {
		c.logger.Warn("weather payload incomplete", "endpoint", logged.String(), "kind", weather.CodeMalformedResponse, "error", err)
		return weather.WeatherSnapshot{}, apperrors.Wrap(weather.CodeMalformedResponse, "weather response incomplete", err)
	}
	return snapshot, nil
}

type currentResponse struct {
	Main    *mainBlock  `json:"main"`
	Weather []condition `json:"weather"`
	Wind    *windBlock  `json:"wind"`
}

type mainBlock struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
	TempMin  float64 `json:"temp_min"`
	TempMax  float64 `json:"temp_max"`
}

type condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type windBlock struct {
	Speed float64 `json:"speed"`
}

// normalize takes the first condition entry as authoritative.
func normalize(raw currentResponse) (weather.WeatherSnapshot, error) {
	if raw.Main == nil {
		return weather.WeatherSnapshot{}, errors.New("main block missing")
	}
	if len(raw.Weather) == 0 {
		return weather.WeatherSnapshot{}, errors.New("condition list empty")
	}
	if raw.Wind == nil {
		return weather.WeatherSnapshot{}, errors.New("wind block missing")
	}
	cond := raw.Weather[0]
	return weather.WeatherSnapshot{
		ConditionCode:        cond.ID,
		ConditionLabel:       cond.Main,
		ConditionDescription: cond.Description,
		Temperature:          raw.Main.Temp,
		TemperatureMin:       raw.Main.TempMin,
		TemperatureMax:       raw.Main.TempMax,
		WindSpeed:            raw.Wind.Speed,
		Humidity:             raw.Main.Humidity,
	}, nil
}

// redact strips the api key from transport errors, which embed the full
// URL with the key query-escaped.
func redact(err error, key string) error {
	if err == nil || key == "" {
		return err
	}
	msg := err.Error()
	redacted := msg
	for _, form := range []string{key, url.QueryEscape(key)} {
		redacted = strings.ReplaceAll(redacted, form, "REDACTED")
	}
	if redacted == msg {
		return err
	}
	return errors.New(redacted)
}

var _ weather.Provider = (*Client)(nil)
