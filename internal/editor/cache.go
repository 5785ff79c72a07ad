package editor

import (
	"sync"
	"time"
)

// ResourceKind — вид кэшируемого ресурса редактора.
type ResourceKind string

const (
	// KindVersions — список версий схемы узла.
	KindVersions ResourceKind = "versions"
	// KindPresets — библиотека опубликованных пресетов (общая, nodeID=0).
	KindPresets ResourceKind = "presets"
	// KindDiff — дельта версии схемы.
	KindDiff ResourceKind = "diff"
)

// PresetCacheTTL — срок жизни общего списка пресетов: справочные данные,
// которые редактор никогда не мутирует.
const PresetCacheTTL = 5 * time.Minute

type cacheKey struct {
	nodeID int64
	kind   ResourceKind
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// Cache — явный кэш редактора, ключуемый парой (узел, вид ресурса).
// Инвалидация только ручная, после каждой мутации; запись с TTL истекает
// сама. Поздний ответ для уже не выбранного узла никогда не перетирает
// данные другого узла — ключ включает id узла.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

// NewCache создаёт пустой кэш.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[cacheKey]cacheEntry),
		now:     time.Now,
	}
}

// Get возвращает живую запись кэша, если она есть.
func (c *Cache) Get(nodeID int64, kind ResourceKind) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[cacheKey{nodeID: nodeID, kind: kind}]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		delete(c.entries, cacheKey{nodeID: nodeID, kind: kind})
		return nil, false
	}
	return entry.value, true
}

// Set сохраняет значение. ttl=0 означает запись без срока жизни — её снимет
// только явная инвалидация.
func (c *Cache) Set(nodeID int64, kind ResourceKind, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := cacheEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[cacheKey{nodeID: nodeID, kind: kind}] = entry
}

// Invalidate снимает все записи указанных видов для узла.
func (c *Cache) Invalidate(nodeID int64, kinds ...ResourceKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, kind := range kinds {
		delete(c.entries, cacheKey{nodeID: nodeID, kind: kind})
	}
}
