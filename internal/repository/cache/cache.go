package cache

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/jktrn/MemoLanes/internal/tile"
)

var (
	// ErrMiss is returned by Get when no entry exists for the key.
	ErrMiss = errors.New("tile cache miss")

	// ErrEntryTooLarge is returned when a single tile exceeds the whole budget.
	ErrEntryTooLarge = errors.New("tile larger than cache budget")
)

// StoreError wraps an underlying persistence failure. Normal eviction never
// produces one.
type StoreError struct {
	Op  string
	Key tile.Key
	Err error
}

func (e *StoreError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("tile cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tile cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

type Entry struct {
	Key      tile.Key
	Data     []byte
	StoredAt time.Time
}

// EntryInfo is the metadata of a stored entry, without its payload.
type EntryInfo struct {
	Key      tile.Key
	Size     int64
	StoredAt time.Time
}

type Stats struct {
	Entries int   `json:"entries"`
	Bytes   int64 `json:"bytes"`
	Budget  int64 `json:"budget"`
}

// Store is the tile cache as seen by the resolver.
type Store interface {
	Has(ctx context.Context, key tile.Key) bool
	Get(ctx context.Context, key tile.Key) ([]byte, error)
	Put(ctx context.Context, key tile.Key, data []byte) error
	Delete(ctx context.Context, key tile.Key) error
	Keys(ctx context.Context) iter.Seq[tile.Key]
	Clear(ctx context.Context) error
	Stats() Stats
	Close() error
}

// TileCache is a persistence backend. Set must replace the entry for a key
// atomically: a concurrent Get sees either the old or the new payload.
type TileCache interface {
	Name() string
	Get(ctx context.Context, key tile.Key) ([]byte, bool, error)
	Set(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, key tile.Key) error
	Scan(ctx context.Context) ([]EntryInfo, error)
	Clear(ctx context.Context) error
	Close() error
}
