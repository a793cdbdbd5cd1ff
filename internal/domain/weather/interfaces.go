package weather

import (
	"context"
	"time"
)

// CityDirectory resolves search text into candidates and candidates into coordinates.
type CityDirectory interface {
	Search(ctx context.Context, query string) (CitySearchResult, error)
	FetchDetail(ctx context.Context, link string) (CityDetail, error)
}

// Provider returns current conditions for a coordinate.
type Provider interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (WeatherSnapshot, error)
}

// Clock supplies the caller's local hour for day/night decisions.
type Clock interface {
	Hour() int
}

// SequenceStore issues monotonically increasing generation tokens per session slot.
type SequenceStore interface {
	Next(ctx context.Context, session, slot string, ttl time.Duration) (uint64, error)
	Current(ctx context.Context, session, slot string) (uint64, error)
}

// FailureJournal keeps recent resolution failures for diagnosis.
type FailureJournal interface {
	RecordFailure(ctx context.Context, record FailureRecord) error
	RecentFailures(ctx context.Context, limit int) ([]FailureRecord, error)
}
