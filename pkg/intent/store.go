package intent

import (
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/cuemby/canic/pkg/canicerr"
	"github.com/cuemby/canic/pkg/store"
)

const (
	metaKey      = "m"
	recordPrefix = "r:"
	totalsPrefix = "t:"
)

type wireRecord struct {
	ID          uint64 `json:"id"`
	ResourceKey string `json:"resource_key"`
	Quantity    uint64 `json:"quantity"`
	State       int    `json:"state"`
	CreatedAt   int64  `json:"created_at"`
	TTLSecs     *int64 `json:"ttl_secs,omitempty"`
}

func toWireRecord(r Record) wireRecord {
	return wireRecord{ID: r.ID, ResourceKey: r.ResourceKey, Quantity: r.Quantity, State: int(r.State), CreatedAt: r.CreatedAt, TTLSecs: r.TTLSecs}
}

func fromWireRecord(w wireRecord) Record {
	return Record{ID: w.ID, ResourceKey: w.ResourceKey, Quantity: w.Quantity, State: State(w.State), CreatedAt: w.CreatedAt, TTLSecs: w.TTLSecs}
}

func recordKey(id uint64) []byte {
	b := make([]byte, len(recordPrefix)+8)
	copy(b, recordPrefix)
	binary.BigEndian.PutUint64(b[len(recordPrefix):], id)
	return b
}

func totalsKey(resourceKey string) []byte {
	return []byte(totalsPrefix + resourceKey)
}

// Store is the Intent Store: a single Stable Store region holding a
// monotonic id counter, one record per intent, and one totals aggregate
// per resource_key. Every mutating operation is guarded by an in-process
// mutex (spec.md §5's single-threaded-cooperative model is exercised
// concurrently by tests, so the mutex keeps it safe under `go test -race`).
type Store struct {
	s      *store.Store
	region store.RegionID
	mu     sync.Mutex
}

// New wraps s with an Intent Store view over region.
func New(s *store.Store, region store.RegionID) *Store {
	return &Store{s: s, region: region}
}

func (st *Store) nextID() (uint64, error) {
	data, err := st.s.Get(st.region, []byte(metaKey))
	if err != nil {
		return 0, err
	}
	var next uint64 = 1
	if data != nil {
		next = binary.BigEndian.Uint64(data)
	}
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, next+1)
	if err := st.s.Put(st.region, []byte(metaKey), out); err != nil {
		return 0, err
	}
	return next, nil
}

func (st *Store) getRecord(id uint64) (Record, bool, error) {
	data, err := st.s.Get(st.region, recordKey(id))
	if err != nil {
		return Record{}, false, err
	}
	if data == nil {
		return Record{}, false, nil
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, false, canicerr.New(canicerr.KindInfra, "intent.getRecord", "decode record", err)
	}
	return fromWireRecord(w), true, nil
}

func (st *Store) putRecord(r Record) error {
	data, err := json.Marshal(toWireRecord(r))
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "intent.putRecord", "encode record", err)
	}
	return st.s.Put(st.region, recordKey(r.ID), data)
}

func (st *Store) getTotals(resourceKey string) (ResourceTotals, error) {
	data, err := st.s.Get(st.region, totalsKey(resourceKey))
	if err != nil {
		return ResourceTotals{}, err
	}
	if data == nil {
		return ResourceTotals{}, nil
	}
	var t ResourceTotals
	if err := json.Unmarshal(data, &t); err != nil {
		return ResourceTotals{}, canicerr.New(canicerr.KindInfra, "intent.getTotals", "decode totals", err)
	}
	return t, nil
}

func (st *Store) putTotals(resourceKey string, t ResourceTotals) error {
	data, err := json.Marshal(t)
	if err != nil {
		return canicerr.New(canicerr.KindInfra, "intent.putTotals", "encode totals", err)
	}
	return st.s.Put(st.region, totalsKey(resourceKey), data)
}

// Reserve creates a new Pending record for resourceKey and bumps its
// totals (pending_count++, reserved_qty += quantity).
func (st *Store) Reserve(resourceKey string, quantity uint64, createdAt int64, ttlSecs *int64) (Record, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id, err := st.nextID()
	if err != nil {
		return Record{}, err
	}
	rec := Record{ID: id, ResourceKey: resourceKey, Quantity: quantity, State: StatePending, CreatedAt: createdAt, TTLSecs: ttlSecs}
	if err := st.putRecord(rec); err != nil {
		return Record{}, err
	}

	totals, err := st.getTotals(resourceKey)
	if err != nil {
		return Record{}, err
	}
	totals.PendingCount++
	totals.ReservedQty += quantity
	if err := st.putTotals(resourceKey, totals); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ReserveWithCapacity is Reserve with a capacity gate: the new Pending
// record is only admitted when committed_qty + reserved_qty + quantity
// stays within capacity for resourceKey. The check and the insert happen
// under one lock, so of two racing reservations on a capacity-1 resource
// exactly one is admitted and the other observes ErrCapacityReached.
func (st *Store) ReserveWithCapacity(resourceKey string, quantity, capacity uint64, createdAt int64, ttlSecs *int64) (Record, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	totals, err := st.getTotals(resourceKey)
	if err != nil {
		return Record{}, err
	}
	if totals.CommittedQty+totals.ReservedQty+quantity > capacity {
		return Record{}, ErrCapacityReached
	}

	id, err := st.nextID()
	if err != nil {
		return Record{}, err
	}
	rec := Record{ID: id, ResourceKey: resourceKey, Quantity: quantity, State: StatePending, CreatedAt: createdAt, TTLSecs: ttlSecs}
	if err := st.putRecord(rec); err != nil {
		return Record{}, err
	}

	totals.PendingCount++
	totals.ReservedQty += quantity
	if err := st.putTotals(resourceKey, totals); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Commit transitions id from Pending to Committed, moving its quantity
// from reserved_qty to committed_qty in its resource_key's totals.
func (st *Store) Commit(id uint64) error {
	return st.resolve(id, StateCommitted)
}

// Abort transitions id from Pending to Aborted, releasing its quantity
// from reserved_qty without crediting committed_qty.
func (st *Store) Abort(id uint64) error {
	return st.resolve(id, StateAborted)
}

func (st *Store) resolve(id uint64, to State) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	rec, ok, err := st.getRecord(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if rec.State != StatePending {
		return ErrNotPending
	}

	totals, err := st.getTotals(rec.ResourceKey)
	if err != nil {
		return err
	}
	totals.PendingCount--
	totals.ReservedQty -= rec.Quantity
	if to == StateCommitted {
		totals.CommittedQty += rec.Quantity
	}
	if err := st.putTotals(rec.ResourceKey, totals); err != nil {
		return err
	}

	rec.State = to
	return st.putRecord(rec)
}

// Get returns the record for id.
func (st *Store) Get(id uint64) (Record, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.getRecord(id)
}

// Totals returns the current aggregate for resourceKey.
func (st *Store) Totals(resourceKey string) (ResourceTotals, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.getTotals(resourceKey)
}

// PendingEntries returns every record currently in the Pending state,
// for the TTL sweep to inspect.
func (st *Store) PendingEntries() ([]Record, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []Record
	err := st.s.ForEach(st.region, func(k, v []byte) error {
		if len(k) <= len(recordPrefix) || string(k[:len(recordPrefix)]) != recordPrefix {
			return nil
		}
		var w wireRecord
		if err := json.Unmarshal(v, &w); err != nil {
			return canicerr.New(canicerr.KindInfra, "intent.PendingEntries", "decode record", err)
		}
		rec := fromWireRecord(w)
		if rec.State == StatePending {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
