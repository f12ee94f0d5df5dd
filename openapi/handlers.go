package openapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"gitlab.com/zlyzol/coinledger/internal/ledger"
)

const (
	msgUploadStored     = "File processed and data saved."
	msgValidationFailed = "Validation errors occurred"
	msgMalformedCSV     = "Malformed CSV input"
	msgInvalidTimestamp = "Invalid timestamp"
	msgInternal         = "Internal server error"
)

// Handlers data structure is the api/interface into the ledger service
type Handlers struct {
	ledger *ledger.Ledger
	logger zerolog.Logger
}

// New creates a new service interface over the given ledger
func New(ledger *ledger.Ledger, logger zerolog.Logger) *Handlers {
	return &Handlers{
		ledger: ledger,
		logger: logger,
	}
}

// RegisterHandlers mounts the API under /v1. uploadMiddleware only wraps the
// upload route.
func RegisterHandlers(e *echo.Echo, h *Handlers, uploadMiddleware ...echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.GET("/swagger.json", h.GetSwagger)
	v1.GET("/health", h.GetHealth)
	v1.GET("/stats", h.GetStats)
	v1.GET("/trades", h.GetTrades)
	v1.GET("/balance", h.GetBalance)
	v1.POST("/balance", h.PostBalance)
	v1.POST("/upload", h.PostUpload, uploadMiddleware...)
}

// JSON swagger/openapi 3.0 specification endpoint// (GET /v1/swagger.json)
func (h *Handlers) GetSwagger(ctx echo.Context) error {
	swagger, err := GetSwagger()
	if err != nil {
		h.logger.Err(err).Msg("failure with GetSwagger")
		return echo.NewHTTPError(http.StatusInternalServerError, GeneralErrorResponse{Error: msgInternal})
	}
	return ctx.JSONPretty(http.StatusOK, swagger, "   ")
}

// (GET /v1/health)
func (h *Handlers) GetHealth(ctx echo.Context) error {
	health := h.ledger.Health(ctx.Request().Context())
	if !health.Healthy() {
		return ctx.JSON(http.StatusServiceUnavailable, health)
	}
	return ctx.JSON(http.StatusOK, health)
}

// (GET /v1/stats)
func (h *Handlers) GetStats(ctx echo.Context) error {
	stats, err := h.ledger.Stats(ctx.Request().Context())
	if err != nil {
		return h.failure(err, "GetStats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// (GET /v1/trades)
func (h *Handlers) GetTrades(ctx echo.Context) error {
	limit := 0
	if s := ctx.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, GeneralErrorResponse{Error: "Invalid limit"})
		}
		limit = n
	}
	trades, err := h.ledger.Trades(ctx.Request().Context(), limit)
	if err != nil {
		return h.failure(err, "GetTrades")
	}
	return ctx.JSON(http.StatusOK, trades)
}

// (GET /v1/balance?timestamp=)
func (h *Handlers) GetBalance(ctx echo.Context) error {
	return h.balance(ctx, ctx.QueryParam("timestamp"))
}

// (POST /v1/balance)
func (h *Handlers) PostBalance(ctx echo.Context) error {
	var req BalanceRequest
	if err := ctx.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, GeneralErrorResponse{Error: "Invalid request body"})
	}
	return h.balance(ctx, req.cutoff())
}

func (h *Handlers) balance(ctx echo.Context, cutoff string) error {
	balances, err := h.ledger.Balance(ctx.Request().Context(), cutoff)
	if err != nil {
		return h.failure(err, "Balance")
	}
	return ctx.JSON(http.StatusOK, balances)
}

// (POST /v1/upload)
func (h *Handlers) PostUpload(ctx echo.Context) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, GeneralErrorResponse{Error: "No file uploaded"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return h.failure(errors.Wrap(err, "failed to open upload"), "PostUpload")
	}
	defer file.Close()

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		return h.failure(errors.Wrap(err, "failed to sniff upload"), "PostUpload")
	}
	if !isText(mtype) {
		h.logger.Warn().Str("mime", mtype.String()).Str("file", fileHeader.Filename).Msg("upload rejected")
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, GeneralErrorResponse{Error: "Unsupported file type"})
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return h.failure(errors.Wrap(err, "failed to rewind upload"), "PostUpload")
	}

	result, err := h.ledger.Ingest(ctx.Request().Context(), file)
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			return ctx.JSON(http.StatusBadRequest, ValidationErrorResponse{
				Error:   msgValidationFailed,
				Details: verr.Failures,
			})
		}
		return h.failure(err, "PostUpload")
	}
	return ctx.JSON(http.StatusOK, UploadResponse{Message: msgUploadStored, Accepted: result.Accepted})
}

// failure maps ledger errors to responses without exposing store details.
func (h *Handlers) failure(err error, op string) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuery):
		return echo.NewHTTPError(http.StatusBadRequest, GeneralErrorResponse{Error: msgInvalidTimestamp})
	case errors.Is(err, ledger.ErrMalformedInput):
		h.logger.Warn().Err(err).Msgf("failure with %s", op)
		return echo.NewHTTPError(http.StatusBadRequest, GeneralErrorResponse{Error: msgMalformedCSV})
	default:
		h.logger.Err(err).Msgf("failure with %s", op)
		return echo.NewHTTPError(http.StatusInternalServerError, GeneralErrorResponse{Error: msgInternal})
	}
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/csv") || m.Is("text/plain") {
			return true
		}
	}
	return false
}
