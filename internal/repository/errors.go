package repository

import (
	"errors"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrDuplicateToken reports a unique-key collision on a token string.
	ErrDuplicateToken = errors.New("duplicate token")
	// ErrTokenNotActive reports that a compare-and-set on a token found it
	// already revoked, expired or gone.
	ErrTokenNotActive = errors.New("token not active")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// QueryObserver receives query timings, typically the metrics service.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveDBQuery(string, time.Duration) {}

func observerOrNop(o QueryObserver) QueryObserver {
	if o == nil {
		return nopObserver{}
	}
	return o
}
