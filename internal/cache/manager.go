package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager ties the two tiers together behind the lookup interface the
// synthesis engines consume. Cache trouble never fails a synthesis:
// Put logs and moves on, Get simply misses.
type Manager struct {
	mem  *Memory
	disk *Disk // nil when the disk tier is disabled
	log  *log.Logger

	mu         sync.Mutex
	promotions int64

	ttl    time.Duration
	ticker *time.Ticker
	stop   chan struct{}
	done   sync.WaitGroup
	once   sync.Once
}

// ManagerStats aggregates both tiers.
type ManagerStats struct {
	Memory     Stats
	Disk       Stats
	Promotions int64
}

// New builds a Manager from cfg. The disk tier is skipped when cfg has
// no directory or no disk budget.
func New(cfg Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.MemoryBytes <= 0 {
		cfg.MemoryBytes = DefaultConfig().MemoryBytes
	}

	m := &Manager{
		mem:  NewMemory(cfg.MemoryBytes),
		log:  logger.WithPrefix("cache"),
		ttl:  cfg.TTL,
		stop: make(chan struct{}),
	}

	if cfg.Dir != "" && cfg.DiskBytes > 0 {
		disk, err := NewDisk(cfg.Dir, cfg.DiskBytes, cfg.Level)
		if err != nil {
			return nil, err
		}
		m.disk = disk
		m.log.Debug("disk tier open", "dir", cfg.Dir, "entries", disk.Len())
	}

	if cfg.CleanupInterval > 0 && cfg.TTL > 0 {
		m.ticker = time.NewTicker(cfg.CleanupInterval)
		m.done.Add(1)
		go m.cleanupLoop()
	}
	return m, nil
}

// Get looks the key up in memory, then on disk. Disk hits are promoted
// back into memory.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.mem.Get(key); ok {
		return data, true
	}
	if m.disk == nil {
		return nil, false
	}

	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.mem.Put(key, data); err == nil {
		m.mu.Lock()
		m.promotions++
		m.mu.Unlock()
	}
	return data, true
}

// Put stores the value in both tiers.
func (m *Manager) Put(key string, data []byte) {
	if err := m.mem.Put(key, data); err != nil {
		m.log.Debug("memory tier rejected value", "bytes", len(data), "err", err)
	}
	if m.disk == nil {
		return
	}
	if err := m.disk.Put(key, data); err != nil {
		m.log.Warn("disk tier write failed", "bytes", len(data), "err", err)
	}
}

// Stats snapshots both tiers.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	promotions := m.promotions
	m.mu.Unlock()

	stats := ManagerStats{
		Memory:     m.mem.Stats(),
		Promotions: promotions,
	}
	if m.disk != nil {
		stats.Disk = m.disk.Stats()
	}
	return stats
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	m.mem.Clear()
	if m.disk == nil {
		return nil
	}
	return m.disk.Clear()
}

// Close stops the sweeper and persists the disk index. Close is
// idempotent.
func (m *Manager) Close() error {
	var err error
	m.once.Do(func() {
		if m.ticker != nil {
			close(m.stop)
			m.done.Wait()
			m.ticker.Stop()
		}
		if m.disk != nil {
			err = m.disk.Close()
		}
	})
	return err
}

func (m *Manager) cleanupLoop() {
	defer m.done.Done()

	for {
		select {
		case <-m.ticker.C:
			m.sweepExpired()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweepExpired() {
	expired := m.mem.prune(m.ttl)
	if m.disk != nil {
		expired += m.disk.RemoveOlderThan(time.Now().Add(-m.ttl))
	}
	if expired > 0 {
		m.log.Debug("swept expired entries", "count", expired)
	}
}
