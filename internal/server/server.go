package server

import (
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/ziflex/lecho/v2"
	"golang.org/x/time/rate"

	"gitlab.com/zlyzol/coinledger/internal/config"
	"gitlab.com/zlyzol/coinledger/internal/ledger"
	"gitlab.com/zlyzol/coinledger/internal/store"
	"gitlab.com/zlyzol/coinledger/internal/store/inmemorydb"
	"gitlab.com/zlyzol/coinledger/internal/store/mongo"
	"gitlab.com/zlyzol/coinledger/internal/store/sqlite"
	"gitlab.com/zlyzol/coinledger/internal/trace"
	httpdelivery "gitlab.com/zlyzol/coinledger/openapi"
)

// Server
type Server struct {
	cfg        config.Configuration
	srv        *http.Server
	logger     zerolog.Logger
	echoEngine *echo.Echo
	store      store.Store
	logFile    io.Closer
}

func initLog(level string, pretty bool, file string) (zerolog.Logger, io.Closer, error) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Msgf("%s is not a valid log-level, falling back to 'info'", level)
		l = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	var closer io.Closer
	if file != "" {
		logFile, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Logger{}, nil, errors.Wrap(err, "failed to open log file")
		}
		out = io.MultiWriter(out, logFile)
		closer = logFile
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(l)
	log.Info().Msg("log started")

	return log.With().Str("service", "coinledger").Logger(), closer, nil
}

func openStore(ctx context.Context, cfg *config.Configuration) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		m, err := mongo.NewClient(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLite)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return inmemorydb.NewClient(), nil
	}
}

func NewServer(cfgFile string) (*Server, error) {
	// Load config
	cfg, err := config.LoadConfiguration(cfgFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ledger service config")
	}

	logger, logFile, err := initLog(cfg.LogLevel, cfg.Pretty, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	if err := trace.Init(cfg.Tracing, os.Stdout); err != nil {
		return nil, errors.Wrap(err, "failed to init tracing")
	}

	st, err := openStore(context.Background(), cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s store", cfg.Store.Driver)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Msg("store opened")

	l, err := ledger.NewLedger(st)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ledger instance")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%v", cfg.ListenPort),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		echoEngine: NewEngine(l, *cfg, logger.With().Str("module", "httpServer").Logger()),
		cfg:        *cfg,
		srv:        srv,
		logger:     logger,
		store:      st,
		logFile:    logFile,
	}, nil
}

// NewEngine wires the HTTP API for l.
func NewEngine(l *ledger.Ledger, cfg config.Configuration, logger zerolog.Logger) *echo.Echo {
	echoEngine := echo.New()
	echoEngine.HideBanner = true
	echoLogger := lecho.From(logger)
	echoEngine.Logger = echoLogger
	echoEngine.Use(middleware.Recover())

	// CORS default
	// Allows requests from any origin wth GET, HEAD, PUT, POST or DELETE method.
	echoEngine.Use(middleware.CORS())
	echoEngine.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	echoEngine.Use(lecho.Middleware(lecho.Config{Logger: echoLogger}))

	uploadMiddleware := []echo.MiddlewareFunc{
		middleware.BodyLimit(cfg.Upload.MaxSize),
		middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(cfg.Upload.RateLimit),
			Burst: uploadBurst(cfg.Upload.RateLimit),
		})),
	}

	// Initialise handlers
	h := httpdelivery.New(l, logger)

	// Register handlers
	httpdelivery.RegisterHandlers(echoEngine, h, uploadMiddleware...)
	return echoEngine
}

// uploadBurst lets at least one upload through even for sub-1/s rates.
func uploadBurst(perSecond float64) int {
	return max(1, int(math.Ceil(perSecond)))
}

func (s *Server) Start() error {
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", s.srv.Addr)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.logger.Info().Str("addr", s.srv.Addr).Msg("http server listening")
	// Serve HTTP
	go s.startServer(ln)
	return nil
}

func (s *Server) startServer(ln net.Listener) {
	s.srv.Handler = s.echoEngine
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		s.logger.Fatal().Err(err).Msg("http server failed")
	}
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	if cerr := s.store.Close(ctx); cerr != nil {
		s.logger.Error().Err(cerr).Msg("failed to close store")
	}
	if terr := trace.Shutdown(ctx); terr != nil {
		s.logger.Error().Err(terr).Msg("failed to flush traces")
	}
	if s.logFile != nil {
		s.logFile.Close()
	}
	return err
}

func (s *Server) Log() *zerolog.Logger {
	return &s.logger
}
