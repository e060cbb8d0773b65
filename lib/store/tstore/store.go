package tstore

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/lib/util"
)

// Constants for expiry behavior
const (
	defaultGCInterval = 100 * time.Millisecond // Default interval between expiry sweeps
)

// pendingEntry keeps what the inner store needs for the eventual delete
type pendingEntry struct {
	key   string
	value []byte
}

// ttlStore wraps an inner store with expiry scheduling
type ttlStore struct {
	inner store.IStore

	// expiry index; both structures share the mutex
	mu      sync.Mutex
	heap    *util.MapHeap            // key hash -> expiry (unix millis)
	pending map[uint64]pendingEntry  // key hash -> delete arguments

	gcInterval  time.Duration
	gcIsRunning atomic.Bool
	stopCh      chan struct{}
}

// Options configures the TTL store.
type Options struct {
	GCInterval time.Duration // Time between expiry sweeps (0 = default)
}

// NewTTLStore wraps an inner store with TTL support. The returned store
// supports InsertE in addition to everything the inner store supports.
//
// Thread-safety: this function is not thread-safe and should only be
// called once during initialization.
func NewTTLStore(inner store.IStore, opts *Options) store.IStore {
	interval := defaultGCInterval
	if opts != nil && opts.GCInterval > 0 {
		interval = opts.GCInterval
	}

	s := &ttlStore{
		inner:      inner,
		heap:       util.NewMapHeap(),
		pending:    make(map[uint64]pendingEntry),
		gcInterval: interval,
		stopCh:     make(chan struct{}),
	}
	s.startGC()
	return s
}

// keyHash indexes the expiry structures. A fixed seed is fine here: the
// index is local bookkeeping, not part of the engine's fingerprint space.
func keyHash(key string) uint64 {
	return util.HashString(key, 0)
}

// --------------------------------------------------------------------------
// Expiry Sweeper
// --------------------------------------------------------------------------

// startGC starts the expiry sweeper.
// If the sweeper is already running, this function does nothing.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (s *ttlStore) startGC() {
	if s.gcIsRunning.CompareAndSwap(false, true) {
		go s.gcLoop()
	}
}

// stopGC stops the expiry sweeper.
// The sweeper cannot be restarted after it has been stopped.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (s *ttlStore) stopGC() {
	if s.gcIsRunning.CompareAndSwap(true, false) {
		close(s.stopCh)
	}
}

// gcLoop periodically deletes entries that have fallen due.
func (s *ttlStore) gcLoop() {
	ticker := time.NewTicker(s.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(uint64(time.Now().UnixMilli()))
		}
	}
}

// sweep deletes every entry due at or before now. Deletes run against the
// inner store outside the mutex so a slow engine cannot back up InsertE
// callers.
func (s *ttlStore) sweep(now uint64) {
	var due []pendingEntry

	s.mu.Lock()
	for {
		item, ok := s.heap.Peek()
		if !ok || item.Priority > now {
			break
		}
		s.heap.RemoveByKey(item.Key)
		if entry, ok := s.pending[item.Key]; ok {
			due = append(due, entry)
			delete(s.pending, item.Key)
		}
	}
	s.mu.Unlock()

	for _, entry := range due {
		// best effort: the entry may have been deleted early by a caller
		_, _ = s.inner.Delete(entry.key, entry.value)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *ttlStore) Insert(key string, value []byte) error {
	return s.inner.Insert(key, value)
}

// InsertE inserts the entry and schedules its deletion after expireIn
// seconds. Re-inserting a key updates its expiry; expireIn of zero cancels
// the schedule (plain insert).
func (s *ttlStore) InsertE(key string, value []byte, expireIn uint64) error {
	if err := s.inner.Insert(key, value); err != nil {
		return err
	}

	h := keyHash(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if expireIn == 0 {
		s.heap.RemoveByKey(h)
		delete(s.pending, h)
		return nil
	}

	expiry := uint64(time.Now().UnixMilli()) + expireIn*1000

	// keep a copy of the delete arguments for the sweeper
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.heap.AddItem(h, expiry)
	s.pending[h] = pendingEntry{key: key, value: valueCopy}
	return nil
}

func (s *ttlStore) Query(key string) ([]byte, bool, error) {
	return s.inner.Query(key)
}

func (s *ttlStore) Contains(key string) (bool, error) {
	return s.inner.Contains(key)
}

// Delete removes the entry immediately and cancels any pending expiry.
func (s *ttlStore) Delete(key string, value []byte) (bool, error) {
	h := keyHash(key)

	s.mu.Lock()
	s.heap.RemoveByKey(h)
	delete(s.pending, h)
	s.mu.Unlock()

	return s.inner.Delete(key, value)
}

func (s *ttlStore) GetInfo() (store.StoreInfo, error) {
	info, err := s.inner.GetInfo()
	if err != nil {
		return info, err
	}

	s.mu.Lock()
	scheduled := s.heap.Len()
	s.mu.Unlock()

	info.Impl = store.ImplTTL
	info.SupportedFeatures = append(info.SupportedFeatures, store.FeatureInsertE)
	info.Metadata = &struct {
		ScheduledExpiries int   `json:"scheduled_expiries"`
		GCIntervalMillis  int64 `json:"gc_interval_millis"`
	}{
		ScheduledExpiries: scheduled,
		GCIntervalMillis:  s.gcInterval.Milliseconds(),
	}
	return info, nil
}

func (s *ttlStore) Save(w io.Writer) error {
	// expiry schedules are not persisted; a restored store starts clean
	return s.inner.Save(w)
}

func (s *ttlStore) Load(r io.Reader) error {
	s.mu.Lock()
	s.heap = util.NewMapHeap()
	s.pending = make(map[uint64]pendingEntry)
	s.mu.Unlock()

	return s.inner.Load(r)
}

func (s *ttlStore) SupportsFeature(feature store.Feature) bool {
	// InsertE is provided here, everything else by the inner store
	rest := feature &^ store.FeatureInsertE
	if rest == 0 {
		return true
	}
	return s.inner.SupportsFeature(rest)
}

func (s *ttlStore) Close() error {
	s.stopGC()
	return s.inner.Close()
}
