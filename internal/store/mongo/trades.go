package mongo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodb "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gitlab.com/zlyzol/coinledger/internal/models"
)

// tradeDocument is the persisted shape of models.Trade. Amounts are kept as
// Decimal128 so no precision is lost on the way through the database.
type tradeDocument struct {
	UTCTime       time.Time            `bson:"utc_time"`
	Operation     string               `bson:"operation"`
	BaseCoin      string               `bson:"base_coin"`
	QuoteCoin     string               `bson:"quote_coin"`
	BuySellAmount primitive.Decimal128 `bson:"buy_sell_amount"`
	Price         primitive.Decimal128 `bson:"price"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	dec, ok := primitive.ParseDecimal128FromBigInt(d.Coefficient(), int(d.Exponent()))
	if !ok {
		return primitive.Decimal128{}, errors.Errorf("%s does not fit in a decimal128", d)
	}
	return dec, nil
}

func fromDecimal128(d primitive.Decimal128) (decimal.Decimal, error) {
	coef, exp, err := d.BigInt()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromBigInt(coef, int32(exp)), nil
}

func toDocument(t models.Trade) (tradeDocument, error) {
	amount, err := toDecimal128(t.BuySellAmount)
	if err != nil {
		return tradeDocument{}, errors.Wrap(err, "buy_sell_amount")
	}
	price, err := toDecimal128(t.Price)
	if err != nil {
		return tradeDocument{}, errors.Wrap(err, "price")
	}
	return tradeDocument{
		UTCTime:       t.UTCTime.UTC(),
		Operation:     t.Operation,
		BaseCoin:      t.BaseCoin,
		QuoteCoin:     t.QuoteCoin,
		BuySellAmount: amount,
		Price:         price,
	}, nil
}

func (d tradeDocument) toTrade() (models.Trade, error) {
	amount, err := fromDecimal128(d.BuySellAmount)
	if err != nil {
		return models.Trade{}, errors.Wrap(err, "buy_sell_amount")
	}
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return models.Trade{}, errors.Wrap(err, "price")
	}
	return models.Trade{
		UTCTime:       d.UTCTime.UTC(),
		Operation:     d.Operation,
		BaseCoin:      d.BaseCoin,
		QuoteCoin:     d.QuoteCoin,
		BuySellAmount: amount,
		Price:         price,
	}, nil
}

// InsertTrades writes the batch with one ordered InsertMany. With transactions
// enabled the write runs inside a single session transaction so a failed batch
// leaves nothing behind; without them a failure can leave a prefix of the batch.
func (m *Mongo) InsertTrades(ctx context.Context, trades models.Trades) error {
	if len(trades) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(trades))
	for _, t := range trades {
		doc, err := toDocument(t)
		if err != nil {
			return errors.Wrap(err, "failed to encode trade")
		}
		docs = append(docs, doc)
	}

	if !m.cfg.Transactions {
		_, err := m.collection().InsertMany(ctx, docs)
		return errors.Wrap(err, "failed to insert trades into mongo")
	}

	session, err := m.db.StartSession()
	if err != nil {
		return errors.Wrap(err, "failed to start mongo session")
	}
	defer session.EndSession(context.Background())

	// One attempt only; a failed batch is aborted and reported, never retried.
	if err := session.StartTransaction(); err != nil {
		return errors.Wrap(err, "failed to start mongo transaction")
	}
	sc := mongodb.NewSessionContext(ctx, session)
	if _, err := m.collection().InsertMany(sc, docs); err != nil {
		if aerr := session.AbortTransaction(context.Background()); aerr != nil {
			m.logger.Warn().Err(aerr).Msg("failed to abort mongo transaction")
		}
		return errors.Wrap(err, "failed to insert trades into mongo")
	}
	return errors.Wrap(session.CommitTransaction(sc), "failed to commit trades to mongo")
}

func (m *Mongo) FindTradesUpTo(ctx context.Context, cutoff time.Time) (models.Trades, error) {
	filter := bson.D{{Key: "utc_time", Value: bson.D{{Key: "$lte", Value: cutoff.UTC()}}}}
	cur, err := m.collection().Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read trades from mongo")
	}
	return decodeTrades(ctx, cur, 0)
}

func (m *Mongo) GetTrades(ctx context.Context, limit int) (models.Trades, error) {
	findOptions := options.Find()
	findOptions.SetLimit(int64(limit))
	findOptions.SetSort(bson.D{{Key: "utc_time", Value: -1}})
	cur, err := m.collection().Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read trades from mongo")
	}
	return decodeTrades(ctx, cur, limit)
}

func decodeTrades(ctx context.Context, cur *mongodb.Cursor, capacity int) (models.Trades, error) {
	defer cur.Close(ctx)
	results := make(models.Trades, 0, capacity)
	for cur.Next(ctx) {
		var elem tradeDocument
		if err := cur.Decode(&elem); err != nil {
			return nil, errors.Wrap(err, "failed to decode trade from mongo")
		}
		trade, err := elem.toTrade()
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode trade from mongo")
		}
		results = append(results, trade)
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read trades from mongo")
	}
	return results, nil
}
