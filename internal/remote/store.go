// Package remote is the kiosk's view of the cloud document store that owns
// teachers, students, classes, rooms and kiosks, and that receives attendance.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// MaxBatch is the largest number of writes the remote store accepts in one
// atomic batch.
const MaxBatch = 400

// Collection names used by the kiosk
const (
	Teachers           = "teachers"
	Students           = "students"
	Classes            = "classes"
	Rooms              = "rooms"
	Kiosks             = "kiosks"
	AttendanceSessions = "attendance_sessions"
	Notifications      = "kiosk_notifications"
)

var (
	// ErrNotConfigured is returned by every operation of an unconfigured store
	ErrNotConfigured = errors.New("remote store not configured")
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d writes", MaxBatch)
)

// Doc is one remote document
type Doc struct {
	ID   string
	Data map[string]any
}

// Write is a single set operation inside a batch
type Write struct {
	Collection string
	ID         string
	Data       map[string]any
}

// Store is a collection based document store with last-write-wins documents
type Store interface {
	// Configured is false for the unavailable variant
	Configured() bool
	ListAll(ctx context.Context, collection string) ([]Doc, error)
	GetByField(ctx context.Context, collection, field string, value any) ([]Doc, error)
	// Set replaces the document
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Update merges fields into the document, creating it when absent
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// BatchSet commits up to MaxBatch writes atomically
	BatchSet(ctx context.Context, writes []Write) error
	Close() error
}

// Unavailable is the store used when no credentials are configured or the
// client could not be created.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Configured() bool { return false }

func (u Unavailable) err() error {
	if u.Reason == "" {
		return ErrNotConfigured
	}
	return fmt.Errorf("%w: %s", ErrNotConfigured, u.Reason)
}

func (u Unavailable) ListAll(context.Context, string) ([]Doc, error) { return nil, u.err() }

func (u Unavailable) GetByField(context.Context, string, string, any) ([]Doc, error) {
	return nil, u.err()
}

func (u Unavailable) Set(context.Context, string, string, map[string]any) error { return u.err() }

func (u Unavailable) Update(context.Context, string, string, map[string]any) error { return u.err() }

func (u Unavailable) BatchSet(context.Context, []Write) error { return u.err() }

func (u Unavailable) Close() error { return nil }

// Chunk splits writes into batches of at most size writes
func Chunk(writes []Write, size int) [][]Write {
	if size <= 0 || size > MaxBatch {
		size = MaxBatch
	}
	var chunks [][]Write
	for start := 0; start < len(writes); start += size {
		end := min(start+size, len(writes))
		chunks = append(chunks, writes[start:end])
	}
	return chunks
}
