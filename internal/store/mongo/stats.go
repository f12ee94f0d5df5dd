package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"gitlab.com/zlyzol/coinledger/internal/models"
)

type statsDocument struct {
	TradeCount int64     `bson:"tradeCount"`
	Assets     []string  `bson:"assets"`
	FirstTrade time.Time `bson:"firstTrade"`
	LastTrade  time.Time `bson:"lastTrade"`
}

func (m *Mongo) GetStats(ctx context.Context) (models.Stats, error) {
	pipe := []bson.M{
		{"$group": bson.M{
			"_id":        "",
			"tradeCount": bson.M{"$sum": 1},
			"assets":     bson.M{"$addToSet": "$base_coin"},
			"firstTrade": bson.M{"$min": "$utc_time"},
			"lastTrade":  bson.M{"$max": "$utc_time"},
		}},
	}
	result := models.Stats{}
	cur, err := m.collection().Aggregate(ctx, pipe)
	if err != nil {
		return result, errors.Wrap(err, "failed to aggregate trades in mongo")
	}
	defer cur.Close(ctx)
	if cur.Next(ctx) {
		var elem statsDocument
		if err := cur.Decode(&elem); err != nil {
			return result, errors.Wrap(err, "failed to decode trade stats from mongo")
		}
		first, last := elem.FirstTrade.UTC(), elem.LastTrade.UTC()
		result = models.Stats{
			TradeCount: elem.TradeCount,
			AssetCount: int64(len(elem.Assets)),
			FirstTrade: &first,
			LastTrade:  &last,
		}
	}
	if err := cur.Err(); err != nil {
		return result, errors.Wrap(err, "failed to aggregate trades in mongo")
	}
	return result, nil
}
