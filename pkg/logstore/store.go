package logstore

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/store"
)

// Config controls retention. MaxEntries == 0 disables logging entirely
// (append is a no-op and ApplyRetention drops everything). A nil
// MaxAgeSecs disables age-based eviction.
type Config struct {
	MaxEntries    uint64
	MaxEntryBytes int
	MaxAgeSecs    *int64
}

type wireEntry struct {
	Crate     string `json:"crate"`
	CreatedAt int64  `json:"created_at"`
	Level     string `json:"level"`
	Topic     string `json:"topic,omitempty"`
	Message   string `json:"message"`
}

func indexKey(i uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, i)
	return b
}

// Store is the framework's own log, one Stable Store region, ordered by
// a monotonically increasing index.
type Store struct {
	s      *store.Store
	region store.RegionID
	cfg    Config

	mu        sync.Mutex
	nextIndex uint64
}

// New wraps s with a log view over region, scanning for the current
// high-water index so Append continues from where a prior process left
// off.
func New(s *store.Store, region store.RegionID, cfg Config) (*Store, error) {
	ls := &Store{s: s, region: region, cfg: cfg}
	var maxIndex uint64
	seen := false
	err := s.ForEach(region, func(k, v []byte) error {
		if len(k) != 8 {
			return nil
		}
		idx := binary.BigEndian.Uint64(k)
		if !seen || idx > maxIndex {
			maxIndex, seen = idx, true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if seen {
		ls.nextIndex = maxIndex + 1
	}
	return ls, nil
}

// Append records entry, truncating its message to cfg.MaxEntryBytes if
// needed, and returns its index. When logging is disabled
// (MaxEntries == 0) it returns (0, nil) without writing.
func (ls *Store) Append(entry Entry) (uint64, error) {
	if ls.cfg.MaxEntries == 0 {
		return 0, nil
	}
	entry = maybeTruncate(entry, ls.cfg.MaxEntryBytes)

	data, err := json.Marshal(wireEntry{
		Crate:     entry.Crate,
		CreatedAt: entry.CreatedAt,
		Level:     string(entry.Level),
		Topic:     entry.Topic,
		Message:   entry.Message,
	})
	if err != nil {
		return 0, canicerr.New(canicerr.KindInfra, "logstore.Append", "encode entry", err)
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	idx := ls.nextIndex
	if err := ls.s.Put(ls.region, indexKey(idx), data); err != nil {
		return 0, err
	}
	ls.nextIndex++
	return idx, nil
}

// Snapshot returns every entry, oldest first. Intended for read facades
// (pagination/filtering lives above this package, per canic_log).
func (ls *Store) Snapshot() ([]Entry, error) {
	var out []Entry
	err := ls.s.ForEach(ls.region, func(k, v []byte) error {
		var w wireEntry
		if err := json.Unmarshal(v, &w); err != nil {
			return canicerr.New(canicerr.KindInfra, "logstore.Snapshot", "decode entry", err)
		}
		out = append(out, Entry{
			Crate:     w.Crate,
			CreatedAt: w.CreatedAt,
			Level:     levelOf(w.Level),
			Topic:     w.Topic,
			Message:   w.Message,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Len returns the current entry count.
func (ls *Store) Len() (uint64, error) {
	var n uint64
	err := ls.s.ForEach(ls.region, func(k, v []byte) error {
		n++
		return nil
	})
	return n, err
}

func (ls *Store) rewrite(entries []Entry) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	keys, err := ls.s.Export(ls.region)
	if err != nil {
		return err
	}
	for k := range keys {
		if err := ls.s.Delete(ls.region, []byte(k)); err != nil {
			return err
		}
	}
	for i, e := range entries {
		e = maybeTruncate(e, ls.cfg.MaxEntryBytes)
		data, err := json.Marshal(wireEntry{
			Crate:     e.Crate,
			CreatedAt: e.CreatedAt,
			Level:     string(e.Level),
			Topic:     e.Topic,
			Message:   e.Message,
		})
		if err != nil {
			return canicerr.New(canicerr.KindInfra, "logstore.rewrite", "encode entry", err)
		}
		if err := ls.s.Put(ls.region, indexKey(uint64(i)), data); err != nil {
			return err
		}
	}
	ls.nextIndex = uint64(len(entries))
	return nil
}
