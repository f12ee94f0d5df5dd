package openapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/zlyzol/coinledger/internal/ledger"
	"gitlab.com/zlyzol/coinledger/internal/models"
	"gitlab.com/zlyzol/coinledger/internal/store/inmemorydb"
)

const csvHeader = "UTC_Time,Operation,Market,Buy/Sell Amount,Price\n"

var errStoreDown = errors.New("connection refused by 10.0.0.7:27017")

// brokenStore fails every call after construction.
type brokenStore struct {
	*inmemorydb.InMemoryDb
}

func (brokenStore) Ping(context.Context) error { return errStoreDown }
func (brokenStore) InsertTrades(context.Context, models.Trades) error {
	return errStoreDown
}
func (brokenStore) FindTradesUpTo(context.Context, time.Time) (models.Trades, error) {
	return nil, errStoreDown
}
func (brokenStore) GetStats(context.Context) (models.Stats, error) {
	return models.Stats{}, errStoreDown
}

func newTestEngine(t *testing.T, broken bool) *echo.Echo {
	t.Helper()
	var (
		l   *ledger.Ledger
		err error
	)
	if broken {
		l, err = ledger.NewLedger(brokenStore{inmemorydb.NewClient()})
	} else {
		l, err = ledger.NewLedger(inmemorydb.NewClient())
	}
	require.NoError(t, err)
	e := echo.New()
	RegisterHandlers(e, New(l, zerolog.Nop()))
	return e
}

func uploadRequest(t *testing.T, name string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/upload", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPostUpload(t *testing.T) {
	e := newTestEngine(t, false)
	csv := csvHeader +
		"2024-01-01 10:00:00,Buy,BTC/USDT,2,30000\n" +
		"2024-01-02 10:00:00,Sell,BTC/USDT,0.5,31000\n"

	rec := serve(e, uploadRequest(t, "trades.csv", []byte(csv)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message":"File processed and data saved.","accepted":2}`, rec.Body.String())

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/v1/trades", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var trades []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	assert.Len(t, trades, 2)
}

func TestPostUploadValidationErrors(t *testing.T) {
	e := newTestEngine(t, false)
	csv := csvHeader +
		"2024-01-01 10:00:00,Buy,BTC/USDT,2,30000\n" +
		"yesterday,Buy,BTCUSDT,-1,abc\n"

	rec := serve(e, uploadRequest(t, "trades.csv", []byte(csv)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Validation errors occurred", resp.Error)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, 3, resp.Details[0].Line)
	assert.Equal(t, "BTCUSDT", resp.Details[0].Row.Market)
	assert.NotEmpty(t, resp.Details[0].Reasons)

	// the valid row must not have been stored
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.TradeCount)
}

func TestPostUploadMalformed(t *testing.T) {
	e := newTestEngine(t, false)
	csv := csvHeader + "2024-01-01 10:00:00,Buy,\"BTC/USDT,2,30000\n"

	rec := serve(e, uploadRequest(t, "trades.csv", []byte(csv)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Malformed CSV input"}`, rec.Body.String())
}

func TestPostUploadRejectsBinary(t *testing.T) {
	e := newTestEngine(t, false)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

	rec := serve(e, uploadRequest(t, "trades.csv", png))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestPostUploadMissingFile(t *testing.T) {
	e := newTestEngine(t, false)
	req := httptest.NewRequest(http.MethodPost, "/v1/upload", strings.NewReader(""))

	rec := serve(e, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"No file uploaded"}`, rec.Body.String())
}

func TestPostUploadStoreFailure(t *testing.T) {
	e := newTestEngine(t, true)
	csv := csvHeader + "2024-01-01 10:00:00,Buy,BTC/USDT,2,30000\n"

	rec := serve(e, uploadRequest(t, "trades.csv", []byte(csv)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestBalance(t *testing.T) {
	e := newTestEngine(t, false)
	csv := csvHeader +
		"2024-01-01 10:00:00,Buy,BTC/USDT,2,30000\n" +
		"2024-01-02 10:00:00,Sell,BTC/USDT,0.5,31000\n" +
		"2024-01-03 10:00:00,Buy,ETH/USDT,1,2000\n" +
		"2024-02-01 10:00:00,Buy,BTC/USDT,10,40000\n"
	rec := serve(e, uploadRequest(t, "trades.csv", []byte(csv)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/balance", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		return serve(e, req)
	}

	t.Run("string cutoff", func(t *testing.T) {
		rec := post(`{"timestamp":"2024-01-31T00:00:00Z"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"BTC":1.5,"ETH":1}`, rec.Body.String())
	})

	t.Run("epoch seconds cutoff", func(t *testing.T) {
		// 2024-01-02 10:00:00 UTC, inclusive
		rec := post(`{"timestamp":1704189600}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"BTC":1.5}`, rec.Body.String())
	})

	t.Run("query parameter", func(t *testing.T) {
		rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/balance?timestamp=2023-12-31", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{}`, rec.Body.String())
	})

	t.Run("invalid cutoff", func(t *testing.T) {
		rec := post(`{"timestamp":"not a date"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid timestamp"}`, rec.Body.String())
	})

	t.Run("missing cutoff", func(t *testing.T) {
		rec := post(`{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := post(`{"timestamp":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBalanceStoreFailure(t *testing.T) {
	e := newTestEngine(t, true)
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/v1/balance?timestamp=2024-01-01", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestGetHealth(t *testing.T) {
	rec := serve(newTestEngine(t, false), httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"database":"ok"}`, rec.Body.String())

	rec = serve(newTestEngine(t, true), httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"database":"unreachable"}`, rec.Body.String())
}

func TestGetTradesInvalidLimit(t *testing.T) {
	rec := serve(newTestEngine(t, false), httptest.NewRequest(http.MethodGet, "/v1/trades?limit=ten", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStatsStoreFailure(t *testing.T) {
	rec := serve(newTestEngine(t, true), httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetSwagger(t *testing.T) {
	swagger, err := GetSwagger()
	require.NoError(t, err)
	assert.NotNil(t, swagger.Paths.Find("/upload"))
	assert.NotNil(t, swagger.Paths.Find("/balance"))

	rec := serve(newTestEngine(t, false), httptest.NewRequest(http.MethodGet, "/v1/swagger.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"openapi"`)
}
