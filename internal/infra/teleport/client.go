package teleport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/cityweather/internal/domain/weather"
	apperrors "github.com/yanqian/cityweather/pkg/errors"
)

const (
	defaultBaseURL = "https://api.teleport.org/api/cities/"
	maxBodyBytes   = 1 << 20
)

// Client talks to a Teleport-style city directory.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
	newID      func() string
}

// NewClient builds a directory client; an empty baseURL selects the public API.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = defaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() {
		return nil, fmt.Errorf("invalid city directory base url %q", raw)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "teleport.client"),
		newID:      uuid.NewString,
	}, nil
}

// Search lists cities whose name matches query. An empty query returns the
// directory's default listing.
func (c *Client) Search(ctx context.Context, query string) (weather.CitySearchResult, error) {
	endpoint := *c.baseURL
	params := endpoint.Query()
	params.Set("search", query)
	endpoint.RawQuery = params.Encode()

	var raw searchResponse
	if err := c.getJSON(ctx, "city search", endpoint.String(), &raw); err != nil {
		return weather.CitySearchResult{}, err
	}
	if raw.Embedded == nil || raw.Embedded.Results == nil {
		c.logger.Warn("city search payload missing results", "endpoint", endpoint.String(), "kind", weather.CodeMalformedResponse)
		return weather.CitySearchResult{}, apperrors.Wrap(weather.CodeMalformedResponse, "city search response missing results", nil)
	}

	entries := *raw.Embedded.Results
	candidates := make([]weather.CityCandidate, 0, len(entries))
	for i, entry := range entries {
		href := strings.TrimSpace(entry.Links.Item.Href)
		if href == "" {
			c.logger.Warn("city search entry missing link", "endpoint", endpoint.String(), "index", i, "kind", weather.CodeMalformedResponse)
			return weather.CitySearchResult{}, apperrors.Wrap(weather.CodeMalformedResponse, fmt.Sprintf("city search entry %d missing detail link", i), nil)
		}
		candidates = append(candidates, weather.CityCandidate{
			ID:         c.newID(),
			FullName:   entry.MatchingFullName,
			DetailLink: href,
		})
	}
	return weather.CitySearchResult{Query: query, Candidates: candidates}, nil
}

// FetchDetail dereferences a detail link returned by Search. Links must be
// absolute and point at the configured directory host.
func (c *Client) FetchDetail(ctx context.Context, link string) (weather.CityDetail, error) {
	endpoint, err := c.resolveLink(link)
	if err != nil {
		c.logger.Warn("rejected city detail link", "endpoint", link, "kind", weather.CodeInvalidRequest, "error", err)
		return weather.CityDetail{}, apperrors.Wrap(weather.CodeInvalidRequest, "invalid city detail link", err)
	}

	var raw detailResponse
	if err := c.getJSON(ctx, "city detail", endpoint, &raw); err != nil {
		return weather.CityDetail{}, err
	}
	// A detail without a usable latlon is a valid payload; the caller decides.
	var detail weather.CityDetail
	if loc := raw.Location; loc != nil {
		detail.Geohash = loc.Geohash
		if ll := loc.LatLon; ll != nil && ll.Latitude != nil && ll.Longitude != nil {
			detail.Location = &weather.Coordinates{Latitude: *ll.Latitude, Longitude: *ll.Longitude}
		}
	}
	return detail, nil
}

func (c *Client) resolveLink(link string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", err
	}
	if !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("link %q is not an absolute http url", link)
	}
	if !strings.EqualFold(parsed.Host, c.baseURL.Host) {
		return "", fmt.Errorf("link host %q does not match directory host %q", parsed.Host, c.baseURL.Host)
	}
	return parsed.String(), nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn(op+" request build failed", "endpoint", endpoint, "kind", weather.CodeInvalidRequest, "error", err)
		return apperrors.Wrap(weather.CodeInvalidRequest, "build "+op+" request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn(op+" request failed", "endpoint", endpoint, "kind", weather.CodeUnexpectedStatus, "error", err)
		return apperrors.Wrap(weather.CodeUnexpectedStatus, op+" request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		c.logger.Warn(op+" unexpected status", "endpoint", endpoint, "kind", weather.CodeUnexpectedStatus, "status", resp.StatusCode, "body", string(payload))
		return apperrors.Wrap(weather.CodeUnexpectedStatus, fmt.Sprintf("%s returned status %d", op, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Wrap(weather.CodeMalformedResponse, "read "+op+" response", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		c.logger.Warn(op+" decode failed", "endpoint", endpoint, "kind", weather.CodeMalformedResponse, "error", err)
		return apperrors.Wrap(weather.CodeMalformedResponse, "decode "+op+" response", err)
	}
	return nil
}

type searchResponse struct {
	Embedded *struct {
		Results *[]searchEntry `json:"city:search-results"`
	} `json:"_embedded"`
}

type searchEntry struct {
	Links struct {
		Item struct {
			Href string `json:"href"`
		} `json:"city:item"`
	} `json:"_links"`
	MatchingFullName string `json:"matching_full_name"`
}

type detailResponse struct {
	Location *struct {
		Geohash string `json:"geohash"`
		LatLon  *struct {
			Latitude  *float64 `json:"latitude"`
			Longitude *float64 `json:"longitude"`
		} `json:"latlon"`
	} `json:"location"`
}

var _ weather.CityDirectory = (*Client)(nil)
