// Package timestamp parses the time values found in trade-history exports and
// balance queries.
package timestamp

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Epoch values below this magnitude are seconds, anything larger milliseconds.
const epochMillisThreshold = 1e11

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02",
}

var (
	ErrEmpty      = errors.New("empty timestamp")
	ErrOutOfRange = errors.New("timestamp out of range")
)

// Stores keep times as Unix nanoseconds, so anything they cannot represent
// is rejected here.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

// Parse accepts ISO-8601 style dates and integer Unix epochs. Values without
// a zone are taken as UTC. The result is always in UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return inRange(fromEpoch(n))
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return inRange(t.UTC())
		}
	}
	return time.Time{}, errors.Errorf("unrecognised timestamp %q", s)
}

func inRange(t time.Time) (time.Time, error) {
	if t.Before(MinTime) || t.After(MaxTime) {
		return time.Time{}, errors.Wrapf(ErrOutOfRange, "%s", t.Format(time.RFC3339))
	}
	return t, nil
}

func fromEpoch(n int64) time.Time {
	if n > -epochMillisThreshold && n < epochMillisThreshold {
		return time.Unix(n, 0).UTC()
	}
	return time.UnixMilli(n).UTC()
}
