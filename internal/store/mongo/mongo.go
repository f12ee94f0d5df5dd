package mongo

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	mongodb "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gitlab.com/zlyzol/coinledger/internal/config"
)

type Mongo struct {
	logger zerolog.Logger
	cfg    config.MongoConfiguration
	db     *mongodb.Client
}

// NewClient connects to MongoDB, verifies the connection and makes sure the
// utc_time index exists.
func NewClient(ctx context.Context, cfg config.MongoConfiguration) (*Mongo, error) {
	logger := log.With().Str("module", "mongo").Logger()

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(connectionString(cfg)).SetRetryWrites(false)
	db, err := mongodb.Connect(ctx, clientOptions)
	if err != nil {
		logger.Err(err).Msg("Open")
		return nil, errors.Wrap(err, "failed to connect to mongodb")
	}
	if err = db.Ping(ctx, nil); err != nil {
		logger.Err(err).Msg("Ping")
		_ = db.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping mongodb")
	}
	m := newWithClient(db, cfg, logger)
	if err := m.ensureIndexes(ctx); err != nil {
		_ = db.Disconnect(context.Background())
		return nil, err
	}
	logger.Info().Str("database", cfg.Database).Str("collection", cfg.Collection).Msg("connected")
	return m, nil
}

func newWithClient(db *mongodb.Client, cfg config.MongoConfiguration, logger zerolog.Logger) *Mongo {
	return &Mongo{
		cfg:    cfg,
		db:     db,
		logger: logger,
	}
}

// connectionString prefers an explicit URI and otherwise builds one from host,
// port and optional credentials.
func connectionString(cfg config.MongoConfiguration) string {
	if cfg.URI != "" {
		return cfg.URI
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%v", cfg.Host, cfg.Port),
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}

func (m *Mongo) collection() *mongodb.Collection {
	return m.db.Database(m.cfg.Database).Collection(m.cfg.Collection)
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.collection().Indexes().CreateOne(ctx, mongodb.IndexModel{
		Keys: bson.D{{Key: "utc_time", Value: 1}},
	})
	return errors.Wrap(err, "failed to create utc_time index")
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.db.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.db.Disconnect(ctx)
}
