package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/outfitlab/outfit-gateway/internal/gateway"
	"github.com/outfitlab/outfit-gateway/internal/llm"
	"github.com/outfitlab/outfit-gateway/internal/location"
	"github.com/outfitlab/outfit-gateway/internal/wardrobe"
	"github.com/outfitlab/outfit-gateway/internal/weather"
)

// Memory is a concurrency-safe in-memory implementation of every store
// contract. It backs tests and keeps the core runnable without a
// database file.
type Memory struct {
	mu       sync.RWMutex
	configs  map[string]llm.Config
	fixes    map[int64]location.Fix
	samples  map[string]weather.Sample
	items    map[int64][]wardrobe.Item
	history  map[int64][]gateway.ChatRecord
	nextItem int64
	nextChat int64
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		configs: make(map[string]llm.Config),
		fixes:   make(map[int64]location.Fix),
		samples: make(map[string]weather.Sample),
		items:   make(map[int64][]wardrobe.Item),
		history: make(map[int64][]gateway.ChatRecord),
	}
}

// --- llm.ConfigStore ---

func (m *Memory) Get(ctx context.Context, id string, userID int64) (llm.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[id]
	if !ok || cfg.UserID != userID {
		return llm.Config{}, llm.ErrNoConfig
	}
	return cfg, nil
}

func (m *Memory) FirstActive(ctx context.Context, userID int64) (llm.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []llm.Config
	for _, cfg := range m.configs {
		if cfg.UserID == userID && cfg.Active {
			candidates = append(candidates, cfg)
		}
	}
	if len(candidates) == 0 {
		return llm.Config{}, llm.ErrNoConfig
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Default != candidates[j].Default {
			return candidates[i].Default
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], nil
}

func (m *Memory) ListActive(ctx context.Context, userID int64) ([]llm.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var configs []llm.Config
	for _, cfg := range m.configs {
		if cfg.UserID == userID && cfg.Active {
			configs = append(configs, cfg)
		}
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs, nil
}

func (m *Memory) Save(ctx context.Context, cfg *llm.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	m.configs[cfg.ID] = *cfg
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg, ok := m.configs[id]; ok && cfg.UserID == userID {
		delete(m.configs, id)
	}
	return nil
}

// --- location.FixStore ---

func (m *Memory) GetFix(ctx context.Context, userID int64) (location.Fix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fix, ok := m.fixes[userID]
	if !ok {
		return location.Fix{}, location.ErrNoFix
	}
	return fix, nil
}

func (m *Memory) UpsertFix(ctx context.Context, fix location.Fix) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fixes[fix.UserID] = fix
	return nil
}

// Fixes adapts Memory to location.FixStore.
func (m *Memory) Fixes() location.FixStore {
	return memFixStore{m}
}

type memFixStore struct{ m *Memory }

func (f memFixStore) Get(ctx context.Context, userID int64) (location.Fix, error) {
	return f.m.GetFix(ctx, userID)
}

func (f memFixStore) Upsert(ctx context.Context, fix location.Fix) error {
	return f.m.UpsertFix(ctx, fix)
}

// --- weather.SampleStore ---

func (m *Memory) Latest(ctx context.Context, city string) (weather.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sample, ok := m.samples[city]
	if !ok {
		return weather.Sample{}, weather.ErrNoSample
	}
	return sample, nil
}

func (m *Memory) Put(ctx context.Context, sample weather.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples[sample.City] = sample
	return nil
}

func (m *Memory) Evict(ctx context.Context, city string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.samples, city)
	return nil
}

func (m *Memory) PruneExpired(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pruned int
	for city, sample := range m.samples {
		if sample.Timestamp.Before(cutoff) {
			delete(m.samples, city)
			pruned++
		}
	}
	return pruned, nil
}

// --- gateway.WardrobeStore ---

func (m *Memory) ItemsByUser(ctx context.Context, userID int64) ([]wardrobe.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]wardrobe.Item, len(m.items[userID]))
	copy(items, m.items[userID])
	return items, nil
}

func (m *Memory) AddItem(ctx context.Context, item *wardrobe.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextItem++
	item.ID = m.nextItem
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	m.items[item.UserID] = append(m.items[item.UserID], *item)
	return nil
}

// --- gateway.HistoryStore ---

func (m *Memory) SaveChat(ctx context.Context, rec *gateway.ChatRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextChat++
	rec.ID = m.nextChat
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.MessageType == "" {
		rec.MessageType = "chat"
	}
	m.history[rec.UserID] = append(m.history[rec.UserID], *rec)
	return nil
}

func (m *Memory) RecentChats(ctx context.Context, userID int64, limit int) ([]gateway.ChatRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	records := m.history[userID]
	out := make([]gateway.ChatRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out, nil
}
