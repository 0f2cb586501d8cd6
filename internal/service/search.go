package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/punchamoorthee/coinwallet/internal/domain"
)

// MinQueryLength is the shortest query sent to the directory.
const MinQueryLength = 3

// RecipientSearch turns partial input into candidates. Only the most recently
// started call may change the visible list; slower earlier responses are dropped.
type RecipientSearch struct {
	ledger  Ledger
	session domain.Session
	logger  *slog.Logger

	mu         sync.Mutex
	gen        uint64
	closed     bool
	candidates []domain.SearchCandidate
}

func NewRecipientSearch(l Ledger, s domain.Session, logger *slog.Logger) *RecipientSearch {
	return &RecipientSearch{ledger: l, session: s, logger: logger}
}

// Search looks up query and commits the result unless a newer call started
// meanwhile, in which case it returns domain.ErrSuperseded and leaves the
// visible list alone. Lookup failures read as no candidates.
func (s *RecipientSearch) Search(ctx context.Context, query string) ([]domain.SearchCandidate, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domain.ErrSuperseded
	}
	s.gen++
	gen := s.gen
	if utf8.RuneCountInString(query) < MinQueryLength {
		s.candidates = nil
		s.mu.Unlock()
		return []domain.SearchCandidate{}, nil
	}
	s.mu.Unlock()

	found, err := s.ledger.SearchUsers(ctx, s.session, query)
	if err != nil {
		s.logger.DebugContext(ctx, "recipient search failed", "error", err)
		found = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		searchStale.Inc()
		return nil, domain.ErrSuperseded
	}
	s.candidates = found
	return s.candidatesLocked(), nil
}

// Candidates returns the visible list.
func (s *RecipientSearch) Candidates() []domain.SearchCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidatesLocked()
}

func (s *RecipientSearch) candidatesLocked() []domain.SearchCandidate {
	if len(s.candidates) == 0 {
		return []domain.SearchCandidate{}
	}
	return slices.Clone(s.candidates)
}

// Close drops any in-flight lookup.
func (s *RecipientSearch) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.gen++
	s.candidates = nil
}
