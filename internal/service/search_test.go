package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/coinwallet/internal/domain"
)

func TestSearch_ShortQueryNeverCallsLedger(t *testing.T) {
	l := newStubLedger()
	w := newTestWallet(l, nil)

	for _, q := range []string{"", "b", "be", "ñá"} {
		got, err := w.Search.Search(context.Background(), q)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NotNil(t, got)
	}
	assert.Zero(t, l.searchCalls.Load())
}

func TestSearch_CommitsResult(t *testing.T) {
	w := newTestWallet(newStubLedger(), nil)

	got, err := w.Search.Search(context.Background(), "beto")
	require.NoError(t, err)
	assert.Equal(t, []domain.SearchCandidate{{DisplayName: "beto", Handle: "beto"}}, got)
	assert.Equal(t, got, w.Search.Candidates())
}

func TestSearch_FailureYieldsEmptyList(t *testing.T) {
	l := newStubLedger()
	w := newTestWallet(l, nil)
	_, err := w.Search.Search(context.Background(), "beto")
	require.NoError(t, err)

	l.search = func(context.Context, string) ([]domain.SearchCandidate, error) {
		return nil, errors.New("boom")
	}
	got, err := w.Search.Search(context.Background(), "beat")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, w.Search.Candidates())
}

func TestSearch_StaleResponseDiscarded(t *testing.T) {
	ctx := context.Background()
	l := newStubLedger()
	slow := make(chan struct{})
	entered := make(chan struct{})
	l.search = func(_ context.Context, q string) ([]domain.SearchCandidate, error) {
		if q == "bet" {
			close(entered)
			<-slow
		}
		return []domain.SearchCandidate{{DisplayName: q, Handle: q}}, nil
	}
	w := newTestWallet(l, nil)

	older := make(chan error, 1)
	go func() {
		_, err := w.Search.Search(ctx, "bet")
		older <- err
	}()
	<-entered

	_, err := w.Search.Search(ctx, "beto")
	require.NoError(t, err)
	close(slow)

	assert.ErrorIs(t, <-older, domain.ErrSuperseded)
	assert.Equal(t, []domain.SearchCandidate{{DisplayName: "beto", Handle: "beto"}}, w.Search.Candidates())
}

func TestSearch_BackspaceBelowMinimumDiscardsPending(t *testing.T) {
	ctx := context.Background()
	l := newStubLedger()
	slow := make(chan struct{})
	entered := make(chan struct{})
	l.search = func(_ context.Context, q string) ([]domain.SearchCandidate, error) {
		close(entered)
		<-slow
		return []domain.SearchCandidate{{DisplayName: q, Handle: q}}, nil
	}
	w := newTestWallet(l, nil)

	older := make(chan error, 1)
	go func() {
		_, err := w.Search.Search(ctx, "bet")
		older <- err
	}()
	<-entered

	_, err := w.Search.Search(ctx, "be")
	require.NoError(t, err)
	close(slow)

	assert.ErrorIs(t, <-older, domain.ErrSuperseded)
	assert.Empty(t, w.Search.Candidates())
}

func TestSearch_ClosedDropsInFlight(t *testing.T) {
	l := newStubLedger()
	w := newTestWallet(l, nil)
	w.Search.Close()

	_, err := w.Search.Search(context.Background(), "beto")
	assert.ErrorIs(t, err, domain.ErrSuperseded)
	assert.Zero(t, l.searchCalls.Load())
}
