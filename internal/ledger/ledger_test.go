package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/zlyzol/coinledger/internal/models"
)

type unreachableStore struct {
	*recordingStore
}

func (unreachableStore) Ping(context.Context) error { return errors.New("no reachable servers") }

func TestNewLedgerRequiresStore(t *testing.T) {
	_, err := NewLedger(nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	l, _ := newTestLedger(t)
	assert.Equal(t, models.HealthOK, l.Health(context.Background()).Database)

	down, err := NewLedger(unreachableStore{newRecordingStore()})
	require.NoError(t, err)
	health := down.Health(context.Background())
	assert.Equal(t, models.HealthUnreachable, health.Database)
	assert.False(t, health.Healthy())
}

func TestTradesLimit(t *testing.T) {
	ctx := context.Background()
	l, st := newTestLedger(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := make(models.Trades, 0, MaxTradesLimit+5)
	for i := 0; i < MaxTradesLimit+5; i++ {
		batch = append(batch, tr("BTC", "buy", "1", base.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, st.InsertTrades(ctx, batch))

	trades, err := l.Trades(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, trades, DefaultTradesLimit)
	assert.True(t, batch[len(batch)-1].UTCTime.Equal(trades[0].UTCTime))

	trades, err = l.Trades(ctx, 5000)
	require.NoError(t, err)
	assert.Len(t, trades, MaxTradesLimit)

	trades, err = l.Trades(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, trades, 3)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	l, st := newTestLedger(t)
	require.NoError(t, st.InsertTrades(ctx, models.Trades{
		tr("BTC", "buy", "1", cutoff),
		tr("ETH", "buy", "1", cutoff),
	}))

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TradeCount)
	assert.Equal(t, int64(2), stats.AssetCount)
}
