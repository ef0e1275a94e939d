package store

import (
	"fmt"
	"time"

	"github.com/Nozer-Taz/isco-bot/internal/domain"
)

func toUnix(t time.Time) int64 {
	return t.UTC().Unix()
}

func fromUnix(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

// naiveUTC drops the location after converting to UTC, matching
// TIMESTAMP WITHOUT TIME ZONE columns.
func naiveUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}

// fromNaive reads a TIMESTAMP WITHOUT TIME ZONE value as UTC.
func fromNaive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
