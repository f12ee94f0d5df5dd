package ledger

import (
	"context"
	"time"

	"gitlab.com/zlyzol/coinledger/internal/models"
	"gitlab.com/zlyzol/coinledger/internal/store/inmemorydb"
)

// recordingStore wraps the in-memory store and records calls so tests can
// assert on batching and on calls that must not happen.
type recordingStore struct {
	*inmemorydb.InMemoryDb
	insertErr error
	findErr   error
	inserts   []models.Trades
	findCalls int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{InMemoryDb: inmemorydb.NewClient()}
}

func (s *recordingStore) InsertTrades(ctx context.Context, trades models.Trades) error {
	s.inserts = append(s.inserts, trades)
	if s.insertErr != nil {
		return s.insertErr
	}
	return s.InMemoryDb.InsertTrades(ctx, trades)
}

func (s *recordingStore) FindTradesUpTo(ctx context.Context, cutoff time.Time) (models.Trades, error) {
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.InMemoryDb.FindTradesUpTo(ctx, cutoff)
}
