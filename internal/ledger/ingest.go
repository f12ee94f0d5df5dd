package ledger

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"github.com/gocarina/gocsv"

	"gitlab.com/zlyzol/coinledger/internal/models"
	"gitlab.com/zlyzol/coinledger/internal/trace"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IngestResult reports an accepted upload.
type IngestResult struct {
	Accepted int `json:"accepted"`
}

// Ingest decodes a CSV trade history, normalizes every row and stores the
// batch with a single InsertTrades call. Any invalid row rejects the whole
// upload with a *ValidationError and nothing is written.
func (l *Ledger) Ingest(ctx context.Context, in io.Reader) (IngestResult, error) {
	ctx, span := trace.StartSpan(ctx, "ledger.Ingest")
	defer span.End()

	records, err := decodeRecords(ctx, in)
	if err != nil {
		trace.RecordError(span, err)
		return IngestResult{}, err
	}

	trades, failures := l.NormalizeAll(records)
	if len(failures) > 0 {
		l.logger.Warn().Int("rows", len(records)).Int("failures", len(failures)).Msg("upload rejected")
		return IngestResult{}, &ValidationError{Failures: failures}
	}
	if len(trades) == 0 {
		return IngestResult{}, nil
	}

	if err := l.store.InsertTrades(ctx, trades); err != nil {
		err = storeError(ctx, err)
		trace.RecordError(span, err)
		return IngestResult{}, err
	}
	l.logger.Info().Int("accepted", len(trades)).Msg("upload stored")
	return IngestResult{Accepted: len(trades)}, nil
}

// NormalizeAll runs every record through the normalizer. Trades keep file
// order; failures are returned in file order too.
func (l *Ledger) NormalizeAll(records []Record) (models.Trades, []ValidationFailure) {
	trades := make(models.Trades, 0, len(records))
	var failures []ValidationFailure
	for i, rec := range records {
		// line 1 is the header
		trade, failure := l.normalizer.Normalize(i+2, rec)
		if failure != nil {
			failures = append(failures, *failure)
			continue
		}
		trades = append(trades, trade)
	}
	return trades, failures
}

func decodeRecords(ctx context.Context, in io.Reader) ([]Record, error) {
	br := bufio.NewReader(&contextReader{ctx: ctx, r: in})
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	var records []Record
	if err := gocsv.Unmarshal(br, &records); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classify(ErrMalformedInput, err)
	}
	return records, nil
}

// contextReader stops reading once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// storeError keeps cancellation visible to callers and tags everything else
// as a persistence failure.
func storeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return classify(ErrPersistence, err)
}
