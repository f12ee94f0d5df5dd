package ledger

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"gitlab.com/zlyzol/coinledger/internal/models"
	"gitlab.com/zlyzol/coinledger/internal/timestamp"
	"gitlab.com/zlyzol/coinledger/internal/trace"
)

const (
	opBuy  = "buy"
	opSell = "sell"
)

// ComputeBalances folds trades into net positions per base coin. Buys add,
// sells subtract, any other operation is ignored and never creates an entry.
// The result does not depend on the order of trades.
func ComputeBalances(trades models.Trades) models.Balances {
	balances := make(models.Balances)
	for _, t := range trades {
		switch {
		case strings.EqualFold(t.Operation, opBuy):
			balances[t.BaseCoin] = balances[t.BaseCoin].Add(t.BuySellAmount)
		case strings.EqualFold(t.Operation, opSell):
			balances[t.BaseCoin] = balances[t.BaseCoin].Sub(t.BuySellAmount)
		}
	}
	return balances
}

// Balance parses a raw cutoff and returns balances as of that instant.
// An unparseable cutoff fails with ErrInvalidQuery before the store is touched.
func (l *Ledger) Balance(ctx context.Context, rawCutoff string) (models.Balances, error) {
	cutoff, err := timestamp.Parse(rawCutoff)
	if err != nil {
		return nil, classify(ErrInvalidQuery, err)
	}
	return l.BalanceAt(ctx, cutoff)
}

// BalanceAt replays every stored trade with UTCTime <= cutoff.
func (l *Ledger) BalanceAt(ctx context.Context, cutoff time.Time) (models.Balances, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.Balance")
	defer span.End()
	span.SetAttributes(attribute.String("cutoff", cutoff.Format(time.RFC3339Nano)))

	trades, err := l.store.FindTradesUpTo(ctx, cutoff)
	if err != nil {
		err = storeError(ctx, err)
		trace.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("trades", len(trades)))
	return ComputeBalances(trades), nil
}
