package sqlite

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"gitlab.com/zlyzol/coinledger/internal/models"
	"gitlab.com/zlyzol/coinledger/internal/timestamp"
)

const tradesColumns = `utc_time, operation, base_coin, quote_coin, buy_sell_amount, price`

const insertTradeQuery = `
	INSERT INTO trades (` + tradesColumns + `)
	VALUES (?, ?, ?, ?, ?, ?)`

// InsertTrades writes the batch inside one transaction; either every row is
// committed or none is.
func (s *SQLite) InsertTrades(ctx context.Context, trades models.Trades) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertTradeQuery)
	if err != nil {
		return errors.Wrap(err, "failed to prepare trade insert")
	}
	defer stmt.Close()

	for i, t := range trades {
		nanos, err := unixNano(t.UTCTime)
		if err != nil {
			return errors.Wrapf(err, "failed to insert trade %d", i)
		}
		_, err = stmt.ExecContext(ctx,
			nanos,
			t.Operation,
			t.BaseCoin,
			t.QuoteCoin,
			t.BuySellAmount.String(),
			t.Price.String(),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to insert trade %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	s.logger.Debug().Int("count", len(trades)).Msg("trades inserted")
	return nil
}

func (s *SQLite) FindTradesUpTo(ctx context.Context, cutoff time.Time) (models.Trades, error) {
	query := `SELECT ` + tradesColumns + ` FROM trades
		WHERE utc_time <= ?
		ORDER BY utc_time ASC`

	rows, err := s.db.QueryContext(ctx, query, cutoffNano(cutoff))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query trades up to cutoff")
	}
	return scanTrades(rows, 0)
}

func (s *SQLite) GetTrades(ctx context.Context, limit int) (models.Trades, error) {
	query := `SELECT ` + tradesColumns + ` FROM trades
		ORDER BY utc_time DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query latest trades")
	}
	return scanTrades(rows, limit)
}

// unixNano refuses times that do not fit in an int64 of nanoseconds.
func unixNano(t time.Time) (int64, error) {
	if t.Before(timestamp.MinTime) || t.After(timestamp.MaxTime) {
		return 0, errors.Wrapf(timestamp.ErrOutOfRange, "utc_time %s", t.UTC().Format(time.RFC3339))
	}
	return t.UnixNano(), nil
}

// cutoffNano clamps the cutoff so an out of range bound still compares correctly.
func cutoffNano(t time.Time) int64 {
	switch {
	case t.After(timestamp.MaxTime):
		return math.MaxInt64
	case t.Before(timestamp.MinTime):
		return math.MinInt64
	}
	return t.UnixNano()
}

func scanTrades(rows *sql.Rows, capacity int) (models.Trades, error) {
	defer rows.Close()

	trades := make(models.Trades, 0, capacity)
	for rows.Next() {
		var (
			nanos         int64
			amount, price string
			t             models.Trade
			err           error
		)
		if err = rows.Scan(&nanos, &t.Operation, &t.BaseCoin, &t.QuoteCoin, &amount, &price); err != nil {
			return nil, errors.Wrap(err, "failed to scan trade")
		}
		t.UTCTime = time.Unix(0, nanos).UTC()
		if t.BuySellAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, errors.Wrapf(err, "invalid buy_sell_amount %q", amount)
		}
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, errors.Wrapf(err, "invalid price %q", price)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating trades")
	}
	return trades, nil
}
