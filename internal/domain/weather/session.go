package weather

import (
	"context"
	"log/slog"
	"sync"
)

// SessionView is what an in-process presentation renders.
type SessionView struct {
	Cities CitySearchResult
	// SearchFailure is set when the latest search failed; Cities is then empty.
	SearchFailure FailureKind
	State         State
	View       *ResolvedView
	Failure    FailureKind
	Generation uint64
}

// Session drives lookups for a single in-process user. Every action runs on
// its own goroutine. A result is applied only while its generation is the
// latest issued for its slot, so a slow search never overwrites a newer one.
type Session struct {
	directory CityDirectory
	provider  Provider
	clock     Clock
	logger    *slog.Logger
	onChange  func(SessionView)

	mu           sync.Mutex
	searchGen    uint64
	selectGen    uint64
	cancelSearch context.CancelFunc
	cancelSelect context.CancelFunc
	view         SessionView
	closed       bool
	wg           sync.WaitGroup
}

// NewSession creates an idle session. onChange, when set, is called after
// every applied update with a copy of the view.
func NewSession(directory CityDirectory, provider Provider, clock Clock, logger *slog.Logger, onChange func(SessionView)) *Session {
	return &Session{
		directory: directory,
		provider:  provider,
		clock:     clock,
		logger:    logger.With("component", "weather.session"),
		onChange:  onChange,
		view:      SessionView{State: StateIdle},
	}
}

// Load runs the initial, unfiltered city listing.
func (s *Session) Load(ctx context.Context) {
	s.ChangeSearch(ctx, "")
}

// ChangeSearch starts a search for text and supersedes any search in flight.
// It is ignored once Close has begun.
func (s *Session) ChangeSearch(ctx context.Context, text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("search ignored on closed session")
		return
	}
	if s.cancelSearch != nil {
		s.cancelSearch()
	}
	s.searchGen++
	gen := s.searchGen
	opCtx, cancel := context.WithCancel(ctx)
	s.cancelSearch = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		result, err := NewPipeline(s.directory, s.provider, s.clock, s.logger, nil).Search(opCtx, text)
		if err != nil {
			if opCtx.Err() != nil {
				return
			}
			kind := classify(err)
			s.apply(slotSearch, gen, func(v *SessionView) {
				v.Cities = CitySearchResult{Query: DecideSearchText(text), Candidates: []CityCandidate{}}
				v.SearchFailure = kind
			})
			return
		}
		s.apply(slotSearch, gen, func(v *SessionView) {
			v.Cities = result
			v.SearchFailure = ""
		})
	}()
}

// Select starts resolving candidate and supersedes any selection in flight.
// It is ignored once Close has begun.
func (s *Session) Select(ctx context.Context, candidate CityCandidate) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("selection ignored on closed session")
		return
	}
	if s.cancelSelect != nil {
		s.cancelSelect()
	}
	s.selectGen++
	gen := s.selectGen
	opCtx, cancel := context.WithCancel(ctx)
	s.cancelSelect = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		observer := func(_, to State) {
			if to.Terminal() {
				return
			}
			s.apply(slotSelection, gen, func(v *SessionView) {
				v.State = to
				v.View = nil
				v.Failure = ""
			})
		}
		out := NewPipeline(s.directory, s.provider, s.clock, s.logger, observer).Resolve(opCtx, candidate)
		s.apply(slotSelection, gen, func(v *SessionView) {
			v.State = out.State
			v.View = out.View
			v.Failure = out.Failure
			v.Generation = gen
		})
	}()
}

// Current returns a copy of the view.
func (s *Session) Current() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Wait blocks until every started action has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close cancels actions in flight and waits for them. Later actions are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancelSearch != nil {
		s.cancelSearch()
	}
	if s.cancelSelect != nil {
		s.cancelSelect()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Session) apply(slot string, gen uint64, update func(v *SessionView)) {
	s.mu.Lock()
	latest := s.searchGen
	if slot == slotSelection {
		latest = s.selectGen
	}
	if gen != latest {
		s.mu.Unlock()
		s.logger.Debug("discarding stale result", "slot", slot, "generation", gen, "latest", latest)
		return
	}
	update(&s.view)
	snapshot := s.view
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(snapshot)
	}
}
