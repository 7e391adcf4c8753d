package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "index.gob"

	// values below this size rarely compress enough to pay for the
	// round trip
	compressMin = 1024
)

// Disk is the persistent tier. Values live under hashed file names,
// zstd compressed when that actually shrinks them, with a gob index
// mapping keys to entries. The index is written on Close; data files
// the index does not know about are swept on open.
type Disk struct {
	dir      string
	capacity int64

	encoder *zstd.Encoder // nil when compression is off
	decoder *zstd.Decoder

	mu        sync.Mutex
	index     map[string]*diskEntry
	size      int64
	hits      int64
	misses    int64
	evictions int64
}

// diskEntry fields stay exported for gob.
type diskEntry struct {
	File       string // name relative to the cache dir
	Size       int64  // bytes on disk
	RawSize    int64  // bytes before compression
	Added      time.Time
	LastAccess time.Time
	Compressed bool
}

// NewDisk opens or creates a disk tier in dir, bounded to capacity
// bytes on disk. level is the zstd compression level; zero stores raw.
func NewDisk(dir string, capacity int64, level int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
	}

	if level > 0 {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("cache: zstd encoder: %w", err)
		}
		d.encoder = enc
	}
	// the decoder is always needed: entries written by an earlier run
	// may be compressed even if compression is off now
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("cache: zstd decoder: %w", err)
	}
	d.decoder = dec

	d.loadIndex()
	d.sweep()
	return d, nil
}

// Get returns the stored value, decompressing as needed. Entries whose
// file is missing or unreadable are dropped and count as misses.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.misses++
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(d.dir, entry.File))
	if err != nil {
		d.drop(key, entry)
		d.misses++
		return nil, false
	}

	if entry.Compressed {
		raw, err := d.decoder.DecodeAll(data, nil)
		if err != nil {
			d.drop(key, entry)
			d.misses++
			return nil, false
		}
		data = raw
	}

	entry.LastAccess = time.Now()
	d.hits++
	return data, true
}

// Put stores a value, evicting least recently used entries until it
// fits.
func (d *Disk) Put(key string, data []byte) error {
	blob := data
	compressed := false
	if d.encoder != nil && len(data) > compressMin {
		if c := d.encoder.EncodeAll(data, nil); len(c) < len(data) {
			blob = c
			compressed = true
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if int64(len(blob)) > d.capacity {
		return ErrTooLarge
	}

	if old, ok := d.index[key]; ok {
		d.drop(key, old)
	}
	for d.size+int64(len(blob)) > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	name := dataFileName(key)
	if err := writeAtomic(filepath.Join(d.dir, name), blob); err != nil {
		return fmt.Errorf("cache: write: %w", err)
	}

	now := time.Now()
	d.index[key] = &diskEntry{
		File:       name,
		Size:       int64(len(blob)),
		RawSize:    int64(len(data)),
		Added:      now,
		LastAccess: now,
		Compressed: compressed,
	}
	d.size += int64(len(blob))
	return nil
}

// Remove drops a key if present.
func (d *Disk) Remove(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.index[key]; ok {
		d.drop(key, entry)
	}
}

// Clear removes every entry and its file.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.index {
		os.Remove(filepath.Join(d.dir, entry.File)) //nolint:errcheck
	}
	d.index = make(map[string]*diskEntry)
	d.size = 0
	return d.saveIndex()
}

// RemoveOlderThan expires entries added before cutoff and reports how
// many it removed.
func (d *Disk) RemoveOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for key, entry := range d.index {
		if entry.Added.Before(cutoff) {
			d.drop(key, entry)
			removed++
		}
	}
	return removed
}

// Size returns the bytes on disk.
func (d *Disk) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Len returns the number of entries.
func (d *Disk) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.index)
}

// Stats snapshots the tier.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	return Stats{
		Capacity:  d.capacity,
		Size:      d.size,
		Items:     len(d.index),
		Hits:      d.hits,
		Misses:    d.misses,
		Evictions: d.evictions,
	}
}

// Close persists the index and releases the compressors.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.saveIndex()
	if d.encoder != nil {
		if cerr := d.encoder.Close(); err == nil {
			err = cerr
		}
	}
	d.decoder.Close()
	return err
}

func (d *Disk) drop(key string, entry *diskEntry) {
	os.Remove(filepath.Join(d.dir, entry.File)) //nolint:errcheck
	delete(d.index, key)
	d.size -= entry.Size
}

func (d *Disk) evictOldest() {
	var oldestKey string
	var oldest *diskEntry
	for key, entry := range d.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldestKey, oldest = key, entry
		}
	}
	if oldest != nil {
		d.drop(oldestKey, oldest)
		d.evictions++
	}
}

// loadIndex reads the gob index and verifies every entry against the
// filesystem, dropping entries whose file went away.
func (d *Disk) loadIndex() {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if err != nil {
		return
	}
	defer f.Close() //nolint:errcheck

	var index map[string]*diskEntry
	if err := gob.NewDecoder(f).Decode(&index); err != nil {
		return
	}

	for key, entry := range index {
		st, err := os.Stat(filepath.Join(d.dir, entry.File))
		if err != nil || st.Size() != entry.Size {
			delete(index, key)
			continue
		}
		d.size += entry.Size
	}
	d.index = index
}

// sweep removes data files the index does not reference, plus any
// temp files left behind by an interrupted write.
func (d *Disk) sweep() {
	known := make(map[string]bool, len(d.index))
	for _, entry := range d.index {
		known[entry.File] = true
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".tmp"):
		case strings.HasSuffix(name, ".bin") && !known[name]:
		default:
			continue
		}
		os.Remove(filepath.Join(d.dir, name)) //nolint:errcheck
	}
}

func (d *Disk) saveIndex() error {
	path := filepath.Join(d.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(d.index)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return os.Rename(tmp, path)
}

func dataFileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + ".bin"
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	return nil
}
