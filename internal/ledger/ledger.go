package ledger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitlab.com/zlyzol/coinledger/internal/models"
	"gitlab.com/zlyzol/coinledger/internal/store"
)

const (
	DefaultTradesLimit = 100
	MaxTradesLimit     = 1000
)

// Ledger ingests trade-history uploads and answers balance queries against
// the trade store it was built with.
type Ledger struct {
	logger     zerolog.Logger
	store      store.Store
	normalizer *Normalizer
}

func NewLedger(store store.Store) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("store can't be nil")
	}
	return &Ledger{
		logger:     log.With().Str("module", "ledger").Logger(),
		store:      store,
		normalizer: NewNormalizer(),
	}, nil
}

// Health returns health status of the ledger's store.
func (l *Ledger) Health(ctx context.Context) models.HealthStatus {
	if err := l.store.Ping(ctx); err != nil {
		l.logger.Warn().Err(err).Msg("store ping failed")
		return models.HealthStatus{Database: models.HealthUnreachable}
	}
	return models.HealthStatus{Database: models.HealthOK}
}

func (l *Ledger) Stats(ctx context.Context) (models.Stats, error) {
	stats, err := l.store.GetStats(ctx)
	if err != nil {
		return models.Stats{}, storeError(ctx, err)
	}
	return stats, nil
}

// Trades returns the most recent trades, newest first. limit is clamped to
// (0, MaxTradesLimit]; zero or less means DefaultTradesLimit.
func (l *Ledger) Trades(ctx context.Context, limit int) (models.Trades, error) {
	switch {
	case limit <= 0:
		limit = DefaultTradesLimit
	case limit > MaxTradesLimit:
		limit = MaxTradesLimit
	}
	trades, err := l.store.GetTrades(ctx, limit)
	if err != nil {
		return nil, storeError(ctx, err)
	}
	return trades, nil
}
