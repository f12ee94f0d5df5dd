package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"gitlab.com/zlyzol/coinledger/internal/models"
)

func (s *SQLite) GetStats(ctx context.Context) (models.Stats, error) {
	var (
		result      models.Stats
		first, last sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT base_coin), MIN(utc_time), MAX(utc_time)
		FROM trades`).
		Scan(&result.TradeCount, &result.AssetCount, &first, &last)
	if err != nil {
		return models.Stats{}, errors.Wrap(err, "failed to query trade stats")
	}
	if first.Valid {
		t := time.Unix(0, first.Int64).UTC()
		result.FirstTrade = &t
	}
	if last.Valid {
		t := time.Unix(0, last.Int64).UTC()
		result.LastTrade = &t
	}
	return result, nil
}
