package store

import (
	"context"
	"time"

	"gitlab.com/zlyzol/coinledger/internal/models"
)

// Store represents methods required by the ledger to persist and load trades.
type Store interface {
	Ping(ctx context.Context) error

	// InsertTrades writes the whole batch in a single call.
	InsertTrades(ctx context.Context, trades models.Trades) error
	// FindTradesUpTo returns every trade with UTCTime <= cutoff. Callers must not
	// depend on the order of the result.
	FindTradesUpTo(ctx context.Context, cutoff time.Time) (models.Trades, error)

	GetTrades(ctx context.Context, limit int) (models.Trades, error)
	GetStats(ctx context.Context) (models.Stats, error)

	Close(ctx context.Context) error
}
