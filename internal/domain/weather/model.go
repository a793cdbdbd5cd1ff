package weather

import (
	"strings"
	"time"
)

// CityCandidate is one entry of a city search response.
type CityCandidate struct {
	// ID is generated per fetch and is not stable across searches.
	ID         string
	FullName   string
	DetailLink string
}

// DisplayName renders "City, Country" from a "City, Region, Country" name.
func (c CityCandidate) DisplayName() string {
	parts := splitFullName(c.FullName)
	if len(parts) < 2 {
		return c.FullName
	}
	return parts[0] + ", " + parts[len(parts)-1]
}

// CityName returns the leading component of the full name.
func (c CityCandidate) CityName() string {
	return cityName(c.FullName)
}

// CitySearchResult is replaced wholesale on every search.
type CitySearchResult struct {
	Query      string
	Candidates []CityCandidate
}

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// CityDetail is the resolved detail resource of a candidate.
type CityDetail struct {
	Geohash  string
	Location *Coordinates
}

// WeatherSnapshot holds current conditions in metric units.
type WeatherSnapshot struct {
	ConditionCode        int     `json:"conditionCode"`
	ConditionLabel       string  `json:"conditionLabel"`
	ConditionDescription string  `json:"conditionDescription"`
	Temperature          float64 `json:"temperature"`
	TemperatureMin       float64 `json:"temperatureMin"`
	TemperatureMax       float64 `json:"temperatureMax"`
	WindSpeed            float64 `json:"windSpeed"`
	Humidity             float64 `json:"humidity"`
}

// ResolvedView is the artifact handed to the presentation layer.
type ResolvedView struct {
	CityFullName string          `json:"cityFullName"`
	CityName     string          `json:"cityName"`
	Category     Category        `json:"category"`
	Symbol       string          `json:"symbol"`
	Snapshot     WeatherSnapshot `json:"snapshot"`
}

// FailureKind classifies why a fetch did not produce a result.
type FailureKind string

const (
	FailureInvalidRequest    FailureKind = "invalid_request"
	FailureUnexpectedStatus  FailureKind = "unexpected_status"
	FailureMalformedResponse FailureKind = "malformed_response"
	FailureMissingLocation   FailureKind = "missing_location"
)

// Error codes carried by apperrors.AppError values produced in this domain.
const (
	CodeInvalidRequest    = string(FailureInvalidRequest)
	CodeUnexpectedStatus  = string(FailureUnexpectedStatus)
	CodeMalformedResponse = string(FailureMalformedResponse)
	CodeMissingLocation   = string(FailureMissingLocation)
	CodeInvalidInput      = "invalid_input"
	CodeStaleResult       = "stale_result"
)

// FailureRecord is a diagnostic entry describing a failed resolution.
type FailureRecord struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionId,omitempty"`
	City      string      `json:"city"`
	Stage     State       `json:"stage"`
	Kind      FailureKind `json:"kind"`
	Endpoint  string      `json:"endpoint"`
	Detail    string      `json:"detail"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Config holds runtime knobs for the weather domain.
type Config struct {
	// SequenceTTL bounds how long a session's generation counters live.
	SequenceTTL time.Duration
	// FailureLimit caps RecentFailures responses.
	FailureLimit int
}

func splitFullName(fullName string) []string {
	raw := strings.Split(fullName, ", ")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func cityName(fullName string) string {
	parts := splitFullName(fullName)
	if len(parts) == 0 {
		return fullName
	}
	return parts[0]
}
