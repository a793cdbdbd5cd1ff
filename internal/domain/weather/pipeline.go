package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/yanqian/cityweather/pkg/errors"
)

// State is a step of the resolution state machine.
type State string

const (
	StateIdle            State = "idle"
	StateSearchingCities State = "searching_cities"
	StateCitySelected    State = "city_selected"
	StateFetchingDetail  State = "fetching_detail"
	StateFetchingWeather State = "fetching_weather"
	StateReady           State = "ready"
	StateFailed          State = "failed"
	// StateCancelled is reached when the caller abandons the operation.
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed || s == StateCancelled
}

// StateObserver is notified of every transition, in order.
type StateObserver func(from, to State)

// Outcome is the terminal result of a pipeline run.
type Outcome struct {
	State State
	// Stage is the state in which the run failed or was cancelled.
	Stage    State
	Failure  FailureKind
	Endpoint string
	View     *ResolvedView
	Err      error
}

// Pipeline runs one city selection from detail lookup to a ResolvedView.
// An instance is single use; a new user action needs a new Pipeline.
type Pipeline struct {
	directory CityDirectory
	provider  Provider
	clock     Clock
	logger    *slog.Logger
	observer  StateObserver

	mu      sync.Mutex
	state   State
	outcome *Outcome
}

// NewPipeline wires a pipeline; observer may be nil.
func NewPipeline(directory CityDirectory, provider Provider, clock Clock, logger *slog.Logger, observer StateObserver) *Pipeline {
	return &Pipeline{
		directory: directory,
		provider:  provider,
		clock:     clock,
		logger:    logger.With("component", "weather.pipeline"),
		observer:  observer,
		state:     StateIdle,
	}
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Search lists city candidates for the gated search text. On success the
// pipeline returns to idle, waiting for a selection.
func (p *Pipeline) Search(ctx context.Context, text string) (CitySearchResult, error) {
	if !p.advance(StateIdle, StateSearchingCities) {
		return CitySearchResult{}, apperrors.Wrap(CodeInvalidInput, "pipeline is busy", nil)
	}
	query := DecideSearchText(text)
	result, err := p.directory.Search(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			p.finish(Outcome{State: StateCancelled, Stage: StateSearchingCities, Err: ctx.Err()})
			return CitySearchResult{}, ctx.Err()
		}
		kind := classify(err)
		p.logger.Warn("city search failed", "query", query, "kind", kind, "error", err)
		p.finish(Outcome{State: StateFailed, Stage: StateSearchingCities, Failure: kind, Err: err})
		return CitySearchResult{}, err
	}
	p.advance(StateSearchingCities, StateIdle)
	return result, nil
}

// Resolve runs the selection: detail fetch, then weather fetch.
// Calling Resolve again returns the first outcome.
func (p *Pipeline) Resolve(ctx context.Context, candidate CityCandidate) Outcome {
	p.mu.Lock()
	if p.outcome != nil {
		out := *p.outcome
		p.mu.Unlock()
		return out
	}
	p.mu.Unlock()

	if !p.advance(StateIdle, StateCitySelected) {
		current := p.State()
		return Outcome{
			State:   StateFailed,
			Stage:   current,
			Failure: FailureInvalidRequest,
			Err:     apperrors.Wrap(CodeInvalidRequest, fmt.Sprintf("pipeline cannot resolve from state %s", current), nil),
		}
	}

	p.advance(StateCitySelected, StateFetchingDetail)
	detail, err := p.directory.FetchDetail(ctx, candidate.DetailLink)
	if err != nil {
		return p.fail(ctx, StateFetchingDetail, candidate.DetailLink, err)
	}
	if ctx.Err() != nil {
		return p.cancel(StateFetchingDetail, candidate.DetailLink, ctx.Err())
	}
	if detail.Location == nil {
		p.logger.Warn("city detail has no coordinates", "endpoint", candidate.DetailLink, "kind", FailureMissingLocation)
		return p.finish(Outcome{
			State:    StateFailed,
			Stage:    StateFetchingDetail,
			Failure:  FailureMissingLocation,
			Endpoint: candidate.DetailLink,
			Err:      apperrors.Wrap(CodeMissingLocation, "city detail carried no coordinates", nil),
		})
	}

	loc := *detail.Location
	p.advance(StateFetchingDetail, StateFetchingWeather)
	endpoint := fmt.Sprintf("weather(lat=%.4f,lon=%.4f)", loc.Latitude, loc.Longitude)
	snapshot, err := p.provider.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return p.fail(ctx, StateFetchingWeather, endpoint, err)
	}
	if ctx.Err() != nil {
		return p.cancel(StateFetchingWeather, endpoint, ctx.Err())
	}

	category := MapCondition(snapshot.ConditionCode, p.clock.Hour())
	view := &ResolvedView{
		CityFullName: candidate.FullName,
		CityName:     candidate.CityName(),
		Category:     category,
		Symbol:       category.Symbol(),
		Snapshot:     snapshot,
	}
	p.logger.Info("city weather resolved", "city", candidate.FullName, "code", snapshot.ConditionCode, "category", category)
	return p.finish(Outcome{State: StateReady, View: view})
}

func (p *Pipeline) fail(ctx context.Context, stage State, endpoint string, err error) Outcome {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return p.cancel(stage, endpoint, err)
	}
	kind := classify(err)
	p.logger.Warn("city weather fetch failed", "stage", stage, "endpoint", endpoint, "kind", kind, "error", err)
	return p.finish(Outcome{State: StateFailed, Stage: stage, Failure: kind, Endpoint: endpoint, Err: err})
}

func (p *Pipeline) cancel(stage State, endpoint string, err error) Outcome {
	p.logger.Debug("city weather resolution abandoned", "stage", stage, "endpoint", endpoint)
	return p.finish(Outcome{State: StateCancelled, Stage: stage, Endpoint: endpoint, Err: err})
}

func (p *Pipeline) advance(from, to State) bool {
	p.mu.Lock()
	if p.state != from {
		p.mu.Unlock()
		return false
	}
	p.state = to
	p.mu.Unlock()
	p.notify(from, to)
	return true
}

func (p *Pipeline) finish(out Outcome) Outcome {
	p.mu.Lock()
	from := p.state
	p.state = out.State
	stored := out
	p.outcome = &stored
	p.mu.Unlock()
	p.notify(from, out.State)
	return out
}

func (p *Pipeline) notify(from, to State) {
	if p.observer != nil && from != to {
		p.observer(from, to)
	}
}

// classify maps an error onto the failure taxonomy. Errors that carry no
// domain code came from the transport and are treated as a bad status.
func classify(err error) FailureKind {
	switch apperrors.CodeOf(err) {
	case CodeInvalidRequest:
		return FailureInvalidRequest
	case CodeMalformedResponse:
		return FailureMalformedResponse
	case CodeMissingLocation:
		return FailureMissingLocation
	default:
		return FailureUnexpectedStatus
	}
}
