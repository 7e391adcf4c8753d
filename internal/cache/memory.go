package cache

import (
	"container/list"
	"sync"
	"time"
)

// Memory is the in-process tier: a byte-bounded LRU over raw PCM.
type Memory struct {
	mu       sync.Mutex
	capacity int64
	size     int64

	order *list.List // front is most recently used
	items map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

type memoryEntry struct {
	key   string
	data  []byte
	added time.Time
}

// NewMemory returns an empty memory tier bounded to capacity bytes.
func NewMemory(capacity int64) *Memory {
	return &Memory{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the cached value and marks it most recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		m.misses++
		return nil, false
	}
	m.order.MoveToFront(el)
	m.hits++
	return el.Value.(*memoryEntry).data, true
}

// Put stores a value, evicting from the cold end until it fits.
func (m *Memory) Put(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if int64(len(data)) > m.capacity {
		return ErrTooLarge
	}

	if el, ok := m.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		m.size += int64(len(data)) - int64(len(entry.data))
		entry.data = data
		entry.added = time.Now()
		m.order.MoveToFront(el)
	} else {
		el := m.order.PushFront(&memoryEntry{key: key, data: data, added: time.Now()})
		m.items[key] = el
		m.size += int64(len(data))
	}

	for m.size > m.capacity {
		m.evict()
	}
	return nil
}

// Remove drops a key if present.
func (m *Memory) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		m.drop(el)
	}
}

// Clear empties the tier. Counters keep their values.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order.Init()
	m.items = make(map[string]*list.Element)
	m.size = 0
}

// Size returns the stored bytes.
func (m *Memory) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Stats snapshots the tier.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Capacity:  m.capacity,
		Size:      m.size,
		Items:     len(m.items),
		Hits:      m.hits,
		Misses:    m.misses,
		Evictions: m.evictions,
	}
}

// prune removes entries older than maxAge and reports how many.
func (m *Memory) prune(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0

	for el := m.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryEntry).added.Before(cutoff) {
			m.drop(el)
			pruned++
		}
		el = prev
	}
	return pruned
}

func (m *Memory) evict() {
	if el := m.order.Back(); el != nil {
		m.drop(el)
		m.evictions++
	}
}

func (m *Memory) drop(el *list.Element) {
	m.order.Remove(el)
	entry := el.Value.(*memoryEntry)
	delete(m.items, entry.key)
	m.size -= int64(len(entry.data))
}
