package storage

import (
	"context"
	"errors"
	"time"

	"prism.app/licensing/models"
)

// ErrNotFound is returned by Get when no record exists under the key.
var ErrNotFound = errors.New("license not found")

// EmailIndexPrefix namespaces the email index away from license records so
// prefix listings over license keys never pick up index entries.
const EmailIndexPrefix = "email:"

// CounterPrefix namespaces the ephemeral rate-limit counters.
const CounterPrefix = "ratelimit:"

// Store is the only component touching durable state. It offers per-key
// read-your-writes consistency and nothing stronger: no cross-key
// transactions and no atomic counters.
type Store interface {
	Get(ctx context.Context, key string) (*models.License, error)
	Put(ctx context.Context, key string, license *models.License) error

	AppendEmailIndex(ctx context.Context, email, key string) error
	GetEmailIndex(ctx context.Context, email string) ([]string, error)

	// ListByPrefix enumerates records in key order starting after cursor.
	// A page never contains duplicates; inserts concurrent with an
	// in-flight enumeration may or may not appear.
	ListByPrefix(ctx context.Context, prefix, cursor string, limit int) (items []*models.License, nextCursor string, complete bool, err error)

	// IncrCounter bumps an expiring counter and returns the new count. The
	// increment is a read-modify-write, not atomic: concurrent callers can
	// under-count within a window. Callers treat the result as best-effort.
	IncrCounter(ctx context.Context, key string, window time.Duration) (int, error)

	Close() error
}

func emailIndexKey(email string) string {
	return EmailIndexPrefix + email
}
