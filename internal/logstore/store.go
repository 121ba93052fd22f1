// Package logstore holds the audit-log persistence primitives: predicate
// queries ordered by recency, store-assigned record ids, and bounded
// atomic delete batches. Backends exist for gorm (sql), MongoDB and memory.
package logstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangang/auditdesk/backend/internal/config"
	"gorm.io/gorm"
)

// ErrUnknownDriver is returned by New for an unsupported audit store driver.
var ErrUnknownDriver = errors.New("unknown audit store driver")

// Record is one audit event as the store sees it.
type Record struct {
	ID               string
	Action           string
	TargetID         string
	PerformedBy      string
	PerformedByEmail string
	Timestamp        time.Time
	Details          string
	IP               string
}

// Position is the place of a record in the (timestamp desc, id desc) order.
type Position struct {
	Timestamp time.Time
	ID        string
}

// Position returns where r sits in the default order.
func (r Record) Position() Position {
	return Position{Timestamp: r.Timestamp, ID: r.ID}
}

// Query holds the predicates understood by every backend. Zero values mean
// "no predicate"; Limit 0 means unbounded.
type Query struct {
	Action      string
	PerformedBy string
	Since       *time.Time // timestamp >= Since
	Until       *time.Time // timestamp <= Until
	Before      *time.Time // timestamp < Before
	After       *Position  // start strictly after this position
	Limit       int
}

// Store is the audit log collection. Find returns records ordered by
// timestamp descending, ties broken by id descending.
type Store interface {
	Insert(ctx context.Context, rec *Record) error
	Find(ctx context.Context, q Query) ([]Record, error)
	Count(ctx context.Context, q Query) (int64, error)
	NewBatch() Batch
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Batch stages deletes that Commit applies atomically. Deleting an id that
// no longer exists is not an error.
type Batch interface {
	Delete(id string)
	Len() int
	Commit(ctx context.Context) error
}

// New builds the store selected by cfg. db is used by the sql driver.
func New(ctx context.Context, cfg *config.AuditStoreConfig, db *gorm.DB) (Store, error) {
	switch cfg.Driver {
	case "", "sql":
		if db == nil {
			return nil, fmt.Errorf("sql audit store requires a database connection")
		}
		return NewGormStore(db), nil
	case "mongo":
		return NewMongoStore(ctx, MongoOptions{
			URI:        cfg.MongoURI,
			Database:   cfg.Database,
			Collection: cfg.Collection,
			Timeout:    cfg.Timeout,
		})
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

// matches reports whether r satisfies every predicate of q except Limit.
func (q Query) matches(r Record) bool {
	if q.Action != "" && r.Action != q.Action {
		return false
	}
	if q.PerformedBy != "" && r.PerformedBy != q.PerformedBy {
		return false
	}
	if q.Since != nil && r.Timestamp.Before(*q.Since) {
		return false
	}
	if q.Until != nil && r.Timestamp.After(*q.Until) {
		return false
	}
	if q.Before != nil && !r.Timestamp.Before(*q.Before) {
		return false
	}
	if q.After != nil && !r.Position().after(*q.After) {
		return false
	}
	return true
}

// after reports whether p comes later than other in the descending order.
func (p Position) after(other Position) bool {
	if p.Timestamp.Equal(other.Timestamp) {
		return p.ID < other.ID
	}
	return p.Timestamp.Before(other.Timestamp)
}
