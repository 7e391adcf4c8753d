// Package cache stores synthesized PCM across two tiers: a bounded
// in-memory LRU for the running session and a compressed disk tier
// that survives restarts. Lookups hit memory first, and disk hits are
// promoted back into memory so a re-read document stays cheap.
//
// Keys are opaque strings chosen by the caller; the synthesis engines
// derive them from the text, voice and prosody settings, so a change
// to any of those naturally misses.
package cache

import (
	"errors"
	"time"
)

// ErrTooLarge reports a value bigger than a tier's whole capacity.
var ErrTooLarge = errors.New("cache: value larger than capacity")

// Stats is a point-in-time snapshot of one cache tier.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns the fraction of lookups served from this tier.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Config sizes the two tiers. An empty Dir or zero DiskBytes disables
// the disk tier entirely.
type Config struct {
	MemoryBytes int64
	DiskBytes   int64

	// Dir is the directory holding the disk tier.
	Dir string

	// Level is the zstd level for the disk tier. Zero stores raw.
	Level int

	// TTL expires disk entries; zero keeps them until evicted.
	TTL time.Duration

	// CleanupInterval schedules background TTL sweeps. Zero runs none.
	CleanupInterval time.Duration
}

// DefaultConfig fits a typical reading session: enough memory for
// roughly half an hour of 22 kHz audio, a disk tier that outlives the
// process, and a weekly expiry.
func DefaultConfig() Config {
	return Config{
		MemoryBytes:     100 << 20,
		DiskBytes:       1 << 30,
		Level:           3,
		TTL:             7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
	}
}
