package inmemorydb

import (
	"context"
	"sort"
	"sync"
	"time"

	"gitlab.com/zlyzol/coinledger/internal/models"
)

type InMemoryDb struct {
	mux    sync.RWMutex
	trades models.Trades
}

func NewClient() *InMemoryDb {
	return &InMemoryDb{
		trades: make(models.Trades, 0),
	}
}

func (m *InMemoryDb) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *InMemoryDb) InsertTrades(ctx context.Context, trades models.Trades) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.trades = append(m.trades, trades...)
	return nil
}

func (m *InMemoryDb) FindTradesUpTo(ctx context.Context, cutoff time.Time) (models.Trades, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	result := make(models.Trades, 0, len(m.trades))
	for _, trade := range m.trades {
		if !trade.UTCTime.After(cutoff) {
			result = append(result, trade)
		}
	}
	return result, nil
}

func (m *InMemoryDb) GetTrades(ctx context.Context, limit int) (models.Trades, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mux.RLock()
	result := make(models.Trades, len(m.trades))
	copy(result, m.trades)
	m.mux.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].UTCTime.After(result[j].UTCTime)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *InMemoryDb) GetStats(ctx context.Context) (models.Stats, error) {
	result := models.Stats{}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	m.mux.RLock()
	defer m.mux.RUnlock()
	assets := make(map[string]struct{})
	for i := range m.trades {
		t := m.trades[i].UTCTime
		if result.FirstTrade == nil || t.Before(*result.FirstTrade) {
			result.FirstTrade = &t
		}
		if result.LastTrade == nil || t.After(*result.LastTrade) {
			result.LastTrade = &t
		}
		assets[m.trades[i].BaseCoin] = struct{}{}
	}
	result.TradeCount = int64(len(m.trades))
	result.AssetCount = int64(len(assets))
	return result, nil
}

func (m *InMemoryDb) Close(ctx context.Context) error {
	return nil
}
