package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/jktrn/MemoLanes/internal/tile"
)

type MapCache struct {
	m *TypedSyncMap
}

type TypedSyncMap struct {
	m sync.Map
}

func (c *TypedSyncMap) Load(k tile.Key) (Entry, bool) {
	v, exists := c.m.Load(k)
	if !exists {
		return Entry{}, false
	}
	return v.(Entry), exists
}

func (c *TypedSyncMap) Store(k tile.Key, v Entry) {
	c.m.Store(k, v)
}

func (c *TypedSyncMap) Delete(k tile.Key) {
	c.m.Delete(k)
}

func (c *TypedSyncMap) Range(f func(k tile.Key, v Entry) bool) {
	c.m.Range(func(k, v any) bool {
		return f(k.(tile.Key), v.(Entry))
	})
}

func (c *TypedSyncMap) Clear() {
	c.m.Clear()
}

func NewMapCache() *MapCache {
	return &MapCache{
		m: &TypedSyncMap{},
	}
}

var _ TileCache = (*MapCache)(nil)

func (c *MapCache) Name() string {
	return "memory"
}

func (c *MapCache) Get(_ context.Context, k tile.Key) ([]byte, bool, error) {
	v, exists := c.m.Load(k)
	return v.Data, exists, nil
}

// Set keeps its own copy so a caller reusing its buffer cannot change a
// stored tile.
func (c *MapCache) Set(_ context.Context, e Entry) error {
	e.Data = slices.Clone(e.Data)
	c.m.Store(e.Key, e)
	return nil
}

func (c *MapCache) Delete(_ context.Context, k tile.Key) error {
	c.m.Delete(k)
	return nil
}

func (c *MapCache) Scan(_ context.Context) ([]EntryInfo, error) {
	var infos []EntryInfo
	c.m.Range(func(k tile.Key, v Entry) bool {
		infos = append(infos, EntryInfo{Key: k, Size: int64(len(v.Data)), StoredAt: v.StoredAt})
		return true
	})
	return infos, nil
}

func (c *MapCache) Clear(_ context.Context) error {
	c.m.Clear()
	return nil
}

func (c *MapCache) Close() error {
	return nil
}
