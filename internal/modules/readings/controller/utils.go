package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultLimit   = 100
	maxLimit       = 1000
	defaultSpan    = 24 * time.Hour
	maxSpan        = 31 * 24 * time.Hour
	maxReadingBody = 64 << 10
)

func parseLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid 'limit' (expected integer)")
	}
	if n <= 0 {
		return 0, errors.New("'limit' must be > 0")
	}
	if n > maxLimit {
		return 0, errors.New("'limit' must be <= 1000")
	}
	return n, nil
}

// parseRangeQuery reads RFC 3339 'from' and 'to'. Missing 'to' is now and
// missing 'from' is 24h before 'to'.
func parseRangeQuery(r *http.Request, now time.Time) (from, to time.Time, err error) {
	q := r.URL.Query()

	to = now
	if s := q.Get("to"); s != "" {
		to, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid 'to' (expected RFC3339)")
		}
	}
	from = to.Add(-defaultSpan)
	if s := q.Get("from"); s != "" {
		from, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, time.Time{}, errors.New("invalid 'from' (expected RFC3339)")
		}
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, errors.New("'from' must be <= 'to'")
	}
	if to.Sub(from) > maxSpan {
		return time.Time{}, time.Time{}, errors.New("'from'..'to' must not span more than 31 days")
	}
	return from.UTC(), to.UTC(), nil
}
