package logstore

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/ids"
	"github.com/cuemby/canic/pkg/store"
)

// CycleSample is one cycle-balance observation for a unit.
type CycleSample struct {
	PID        ids.Principal
	Balance    uint64
	RecordedAt int64
}

type wireCycleSample struct {
	PID        string `json:"pid"`
	Balance    uint64 `json:"balance"`
	RecordedAt int64  `json:"recorded_at"`
}

// CycleTracker records periodic cycle-balance samples (canic_cycle_tracker,
// spec.md §6), bounded to the newest MaxSamples across all units — the
// same bounded-append-then-prune shape as Store's log retention, applied
// to a second observability region.
type CycleTracker struct {
	s          *store.Store
	region     store.RegionID
	maxSamples uint64

	mu        sync.Mutex
	nextIndex uint64
}

// NewCycleTracker wraps s with a cycle-tracker view over region, bounded
// to maxSamples total entries (0 means unbounded).
func NewCycleTracker(s *store.Store, region store.RegionID, maxSamples uint64) (*CycleTracker, error) {
	ct := &CycleTracker{s: s, region: region, maxSamples: maxSamples}
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
		ct.nextIndex = maxIndex + 1
	}
	return ct, nil
}

// Record appends a sample, then prunes down to maxSamples if it overflows.
func (ct *CycleTracker) Record(sample CycleSample) error {
	data, err := json.Marshal(wireCycleSample{
		PID:        sample.PID.String(),
		Balance:    sample.Balance,
		RecordedAt: sample.RecordedAt,
	})
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "logstore.CycleTracker.Record", "encode sample", err)
	}

	ct.mu.Lock()
	idx := ct.nextIndex
	ct.nextIndex++
	ct.mu.Unlock()

	if err := ct.s.Put(ct.region, indexKey(idx), data); err != nil {
		return err
	}
	return ct.prune()
}

func (ct *CycleTracker) prune() error {
	if ct.maxSamples == 0 {
		return nil
	}
	samples, err := ct.Snapshot()
	if err != nil {
		return err
	}
	if uint64(len(samples)) <= ct.maxSamples {
		return nil
	}
	drop := uint64(len(samples)) - ct.maxSamples

	ct.mu.Lock()
	defer ct.mu.Unlock()
	keys, err := ct.s.Export(ct.region)
	if err != nil {
		return err
	}
	sortedKeys := make([]string, 0, len(keys))
	for k := range keys {
		sortedKeys = append(sortedKeys, k)
	}
	sort.Strings(sortedKeys)
	for i := uint64(0); i < drop && i < uint64(len(sortedKeys)); i++ {
		if err := ct.s.Delete(ct.region, []byte(sortedKeys[i])); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns every sample, oldest first.
func (ct *CycleTracker) Snapshot() ([]CycleSample, error) {
	var out []CycleSample
	err := ct.s.ForEach(ct.region, func(k, v []byte) error {
		var w wireCycleSample
		if err := json.Unmarshal(v, &w); err != nil {
			return canicerr.New(canicerr.KindInfra, "logstore.CycleTracker.Snapshot", "decode sample", err)
		}
		pid, err := ids.ParsePrincipal(w.PID)
		if err != nil {
			return err
		}
		out = append(out, CycleSample{PID: pid, Balance: w.Balance, RecordedAt: w.RecordedAt})
		return nil
	})
	return out, err
}

// Latest returns the most recent sample for pid, if any.
func (ct *CycleTracker) Latest(pid ids.Principal) (CycleSample, bool, error) {
	samples, err := ct.Snapshot()
	if err != nil {
		return CycleSample{}, false, err
	}
	var latest CycleSample
	found := false
	for _, s := range samples {
		if s.PID == pid && (!found || s.RecordedAt >= latest.RecordedAt) {
			latest, found = s, true
		}
	}
	return latest, found, nil
}
