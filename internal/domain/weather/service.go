package weather

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/cityweather/pkg/errors"
	"github.com/yanqian/cityweather/pkg/util"
)

const (
	slotSearch    = "search"
	slotSelection = "selection"

	defaultSequenceTTL  = 30 * time.Minute
	defaultFailureLimit = 50
)

// Service exposes city search and weather resolution to transports.
type Service interface {
	SearchCities(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Resolve(ctx context.Context, req ResolveRequest) (ResolveResponse, error)
	RecentFailures(ctx context.Context, limit int) ([]FailureRecord, error)
}

// SearchRequest is a change of the user's search text.
type SearchRequest struct {
	SessionID string
	Text      string
}

// CityView is a candidate as serialized to presentation.
type CityView struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	DisplayName string `json:"displayName"`
	DetailLink  string `json:"detailLink"`
}

// SearchResponse carries the replacement city list.
type SearchResponse struct {
	Query      string     `json:"query"`
	Generation uint64     `json:"generation,omitempty"`
	Cities     []CityView `json:"cities"`
}

// ResolveRequest is a city selection.
type ResolveRequest struct {
	SessionID  string `json:"-"`
	FullName   string `json:"fullName"`
	DetailLink string `json:"detailLink"`
}

// ResolveResponse is returned once the pipeline reaches ready.
type ResolveResponse struct {
	State      State         `json:"state"`
	Generation uint64        `json:"generation,omitempty"`
	View       *ResolvedView `json:"view"`
}

type service struct {
	cfg       Config
	directory CityDirectory
	provider  Provider
	clock     Clock
	sequences SequenceStore
	journal   FailureJournal
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// NewService wires up the weather lookup domain.
func NewService(cfg Config, directory CityDirectory, provider Provider, clock Clock, sequences SequenceStore, journal FailureJournal, logger *slog.Logger) Service {
	if cfg.SequenceTTL <= 0 {
		cfg.SequenceTTL = defaultSequenceTTL
	}
	if cfg.FailureLimit <= 0 {
		cfg.FailureLimit = defaultFailureLimit
	}
	return &service{
		cfg:       cfg,
		directory: directory,
		provider:  provider,
		clock:     clock,
		sequences: sequences,
		journal:   journal,
		logger:    logger.With("component", "weather.service"),
		now:       util.NowUTC,
		newID:     func() string { return uuid.NewString() },
	}
}

func (s *service) SearchCities(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	session := strings.TrimSpace(req.SessionID)
	gen, err := s.issue(ctx, session, slotSearch)
	if err != nil {
		return SearchResponse{}, err
	}

	pipeline := s.newPipeline(session)
	result, err := pipeline.Search(ctx, req.Text)
	if err != nil {
		if ctx.Err() != nil {
			return SearchResponse{}, ctx.Err()
		}
		return SearchResponse{}, apperrors.Wrap(string(classify(err)), "city search unavailable", err)
	}
	if err := s.ensureLatest(ctx, session, slotSearch, gen); err != nil {
		return SearchResponse{}, err
	}

	cities := make([]CityView, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		cities = append(cities, CityView{
			ID:          c.ID,
			FullName:    c.FullName,
			DisplayName: c.DisplayName(),
			DetailLink:  c.DetailLink,
		})
	}
	s.logger.Info("city search completed", "query", result.Query, "results", len(cities), "generation", gen)
	return SearchResponse{Query: result.Query, Generation: gen, Cities: cities}, nil
}

func (s *service) Resolve(ctx context.Context, req ResolveRequest) (ResolveResponse, error) {
	link := strings.TrimSpace(req.DetailLink)
	if link == "" {
		return ResolveResponse{}, apperrors.Wrap(CodeInvalidInput, "detailLink cannot be empty", nil)
	}
	session := strings.TrimSpace(req.SessionID)
	gen, err := s.issue(ctx, session, slotSelection)
	if err != nil {
		return ResolveResponse{}, err
	}

	candidate := CityCandidate{FullName: strings.TrimSpace(req.FullName), DetailLink: link}
	out := s.newPipeline(session).Resolve(ctx, candidate)

	switch out.State {
	case StateCancelled:
		return ResolveResponse{}, out.Err
	case StateFailed:
		s.recordFailure(ctx, session, candidate, out)
		if err := s.ensureLatest(ctx, session, slotSelection, gen); err != nil {
			return ResolveResponse{}, err
		}
		return ResolveResponse{}, apperrors.Wrap(string(out.Failure), failureMessage(out.Failure), out.Err)
	}

	if err := s.ensureLatest(ctx, session, slotSelection, gen); err != nil {
		return ResolveResponse{}, err
	}
	return ResolveResponse{State: out.State, Generation: gen, View: out.View}, nil
}

func (s *service) RecentFailures(ctx context.Context, limit int) ([]FailureRecord, error) {
	if limit <= 0 || limit > s.cfg.FailureLimit {
		limit = s.cfg.FailureLimit
	}
	if s.journal == nil {
		return []FailureRecord{}, nil
	}
	records, err := s.journal.RecentFailures(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap("journal_error", "failed to read failure journal", err)
	}
	return records, nil
}

func (s *service) newPipeline(session string) *Pipeline {
	logger := s.logger
	if session != "" {
		logger = logger.With("session", session)
	}
	return NewPipeline(s.directory, s.provider, s.clock, logger, func(from, to State) {
		logger.Debug("pipeline transition", "from", from, "to", to)
	})
}

// issue returns 0 for anonymous callers, which are never considered stale.
func (s *service) issue(ctx context.Context, session, slot string) (uint64, error) {
	if session == "" || s.sequences == nil {
		return 0, nil
	}
	gen, err := s.sequences.Next(ctx, session, slot, s.cfg.SequenceTTL)
	if err != nil {
		return 0, apperrors.Wrap("sequence_error", "failed to issue generation", err)
	}
	return gen, nil
}

func (s *service) ensureLatest(ctx context.Context, session, slot string, gen uint64) error {
	if gen == 0 {
		return nil
	}
	current, err := s.sequences.Current(ctx, session, slot)
	if err != nil {
		return apperrors.Wrap("sequence_error", "failed to read generation", err)
	}
	if current != gen {
		s.logger.Debug("discarding stale result", "session", session, "slot", slot, "generation", gen, "latest", current)
		return apperrors.Wrap(CodeStaleResult, "a newer request superseded this one", nil)
	}
	return nil
}

func (s *service) recordFailure(ctx context.Context, session string, candidate CityCandidate, out Outcome) {
	if s.journal == nil {
		return
	}
	detail := ""
	if out.Err != nil {
		detail = out.Err.Error()
	}
	record := FailureRecord{
		ID:        s.newID(),
		SessionID: session,
		City:      candidate.FullName,
		Stage:     out.Stage,
		Kind:      out.Failure,
		Endpoint:  out.Endpoint,
		Detail:    detail,
		CreatedAt: s.now(),
	}
	if err := s.journal.RecordFailure(ctx, record); err != nil {
		s.logger.Error("failed to journal resolution failure", "kind", out.Failure, "error", err)
	}
}

// failureMessage is the neutral text shown to users; upstream details stay in logs.
func failureMessage(kind FailureKind) string {
	switch kind {
	case FailureMissingLocation:
		return "location unavailable for this city"
	case FailureInvalidRequest:
		return "city link is not usable"
	default:
		return "weather unavailable"
	}
}
