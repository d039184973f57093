package cache

import (
	"container/list"
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jktrn/MemoLanes/internal/tile"
	"github.com/jktrn/MemoLanes/pkg/logger"
	"github.com/jktrn/MemoLanes/pkg/metrics"
)

// BudgetStore bounds a TileCache by total payload bytes, evicting the
// oldest stored entries first.
type BudgetStore struct {
	backend TileCache
	budget  int64
	logger  logger.Logger
	now     func() time.Time

	// writeMu serializes mutations of the backend so that eviction decisions
	// and the index never disagree. Readers never take it.
	writeMu sync.Mutex

	mu    sync.RWMutex
	order *list.List // of *EntryInfo, oldest first
	items map[tile.Key]*list.Element
	bytes int64
}

var _ Store = (*BudgetStore)(nil)

// NewBudgetStore indexes what the backend already holds and trims it to
// budget. A budget of zero disables eviction.
func NewBudgetStore(ctx context.Context, backend TileCache, budget int64, l logger.Logger) (*BudgetStore, error) {
	s := &BudgetStore{
		backend: backend,
		budget:  budget,
		logger:  l,
		now:     time.Now,
		order:   list.New(),
		items:   make(map[tile.Key]*list.Element),
	}

	infos, err := backend.Scan(ctx)
	if err != nil {
		return nil, &StoreError{Op: "scan", Err: err}
	}
	slices.SortStableFunc(infos, func(a, b EntryInfo) int {
		return a.StoredAt.Compare(b.StoredAt)
	})
	for i := range infos {
		info := infos[i]
		s.items[info.Key] = s.order.PushBack(&info)
		s.bytes += info.Size
	}

	s.writeMu.Lock()
	err = s.evictLocked(ctx, 0, "")
	s.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	metrics.CacheBytes.Set(float64(s.bytes))

	l.Info("tile cache ready",
		"backend", backend.Name(),
		"entries", len(s.items),
		"size", humanize.IBytes(uint64(s.bytes)),
		"budget", budgetString(budget),
	)

	return s, nil
}

func (s *BudgetStore) Has(_ context.Context, key tile.Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.items[key]
	return ok
}

func (s *BudgetStore) Get(ctx context.Context, key tile.Key) ([]byte, error) {
	start := time.Now()
	data, exists, err := s.backend.Get(ctx, key)
	s.observe("get", start)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("get").Inc()
		return nil, &StoreError{Op: "get", Key: key, Err: err}
	}
	if !exists {
		return nil, ErrMiss
	}
	return data, nil
}

func (s *BudgetStore) Put(ctx context.Context, key tile.Key, data []byte) error {
	size := int64(len(data))
	if s.budget > 0 && size > s.budget {
		return &StoreError{Op: "put", Key: key, Err: ErrEntryTooLarge}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.evictLocked(ctx, size, key); err != nil {
		return err
	}

	entry := Entry{Key: key, Data: data, StoredAt: s.now()}

	start := time.Now()
	err := s.backend.Set(ctx, entry)
	s.observe("set", start)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("put").Inc()
		s.logger.Error("tile cache put failed", "key", key, "error", err)
		return &StoreError{Op: "put", Key: key, Err: err}
	}

	s.mu.Lock()
	if el, ok := s.items[key]; ok {
		s.bytes -= el.Value.(*EntryInfo).Size
		s.order.Remove(el)
	}
	s.items[key] = s.order.PushBack(&EntryInfo{Key: key, Size: size, StoredAt: entry.StoredAt})
	s.bytes += size
	total := s.bytes
	s.mu.Unlock()

	metrics.CacheStores.Inc()
	metrics.CacheBytes.Set(float64(total))
	s.logger.Debug("tile cached", "key", key, "size", size, "total", total)

	return nil
}

func (s *BudgetStore) Delete(ctx context.Context, key tile.Key) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.deleteLocked(ctx, key)
}

// Keys yields a snapshot of the keys taken when iteration starts, oldest
// first. Ranging again takes a fresh snapshot.
func (s *BudgetStore) Keys(_ context.Context) iter.Seq[tile.Key] {
	return func(yield func(tile.Key) bool) {
		s.mu.RLock()
		keys := make([]tile.Key, 0, len(s.items))
		for el := s.order.Front(); el != nil; el = el.Next() {
			keys = append(keys, el.Value.(*EntryInfo).Key)
		}
		s.mu.RUnlock()

		for _, k := range keys {
			if !yield(k) {
				return
			}
		}
	}
}

func (s *BudgetStore) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		metrics.CacheErrors.WithLabelValues("clear").Inc()
		return &StoreError{Op: "clear", Err: err}
	}

	s.mu.Lock()
	s.order.Init()
	clear(s.items)
	s.bytes = 0
	s.mu.Unlock()

	metrics.CacheBytes.Set(0)
	s.logger.Info("tile cache cleared", "backend", s.backend.Name())
	return nil
}

func (s *BudgetStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Entries: len(s.items),
		Bytes:   s.bytes,
		Budget:  s.budget,
	}
}

func (s *BudgetStore) Close() error {
	return s.backend.Close()
}

// evictLocked removes the oldest entries until incoming more bytes fit. The
// entry being replaced, if any, is not evicted; its bytes are released by
// the overwrite instead. Must be called with writeMu held.
func (s *BudgetStore) evictLocked(ctx context.Context, incoming int64, replacing tile.Key) error {
	if s.budget <= 0 {
		return nil
	}

	for {
		s.mu.RLock()
		needed := s.bytes + incoming
		if el, ok := s.items[replacing]; ok {
			needed -= el.Value.(*EntryInfo).Size
		}
		var victim tile.Key
		for el := s.order.Front(); el != nil; el = el.Next() {
			if k := el.Value.(*EntryInfo).Key; k != replacing {
				victim = k
				break
			}
		}
		s.mu.RUnlock()

		if needed <= s.budget || victim == "" {
			return nil
		}

		if err := s.deleteLocked(ctx, victim); err != nil {
			return err
		}
		metrics.CacheEvictions.Inc()
		s.logger.Debug("tile evicted", "key", victim, "needed", needed, "budget", s.budget)
	}
}

func (s *BudgetStore) deleteLocked(ctx context.Context, key tile.Key) error {
	start := time.Now()
	err := s.backend.Delete(ctx, key)
	s.observe("delete", start)
	if err != nil {
		metrics.CacheErrors.WithLabelValues("delete").Inc()
		return &StoreError{Op: "delete", Key: key, Err: err}
	}

	s.mu.Lock()
	if el, ok := s.items[key]; ok {
		s.bytes -= el.Value.(*EntryInfo).Size
		s.order.Remove(el)
		delete(s.items, key)
	}
	total := s.bytes
	s.mu.Unlock()

	metrics.CacheBytes.Set(float64(total))
	return nil
}

func (s *BudgetStore) observe(op string, start time.Time) {
	metrics.CacheOperationDuration.WithLabelValues(s.backend.Name(), op).Observe(time.Since(start).Seconds())
}

func budgetString(budget int64) string {
	if budget <= 0 {
		return "unbounded"
	}
	return humanize.IBytes(uint64(budget))
}

// IsStoreError reports whether err came from the persistence layer.
func IsStoreError(err error) bool {
	var serr *StoreError
	return errors.As(err, &serr)
}
