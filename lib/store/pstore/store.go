package pstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ValentinKolb/mappy/lib/aof"
	"github.com/ValentinKolb/mappy/lib/maplet"
	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/lib/store/lstore"
)

// Constants for file layout and flushing
const (
	logFileName  = "mappy.aof"
	snapFileName = "mappy.snap"

	defaultSyncInterval = time.Second
)

// Options configures the persistent store.
type Options struct {
	// Dir is the data directory (created if missing).
	Dir string
	// SyncInterval bounds how long appended records may stay buffered
	// before they reach the log file (0 = 1s).
	SyncInterval time.Duration
	// Engine configures the maplet engine for a fresh store; ignored when
	// a snapshot exists (its parameters win). Record emission is always
	// forced on.
	Engine *maplet.Config
}

type persistentStore struct {
	opts   Options
	engine *maplet.Maplet[[]byte]
	inner  store.IStore // lstore facade over the same engine

	// log state; the mutex serializes appends, flushes and compaction
	mu      sync.Mutex
	logFile *os.File
	writer  *aof.Writer

	drainWg sync.WaitGroup
	stopCh  chan struct{}
}

// NewPersistentStore opens (or creates) a persistent store in opts.Dir.
//
// Thread-safety: this function is not thread-safe and should only be
// called once per directory.
func NewPersistentStore(opts Options) (store.IStore, error) {
	if opts.Dir == "" {
		return nil, store.NewError(store.RetCInvalidOperation, "pstore requires a data directory")
	}
	if opts.SyncInterval <= 0 {
		opts.SyncInterval = defaultSyncInterval
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}

	engine, watermark, err := openEngine(opts)
	if err != nil {
		return nil, err
	}

	s := &persistentStore{
		opts:   opts,
		engine: engine,
		inner:  lstore.NewLocalStoreWithEngine(engine),
		stopCh: make(chan struct{}),
	}

	if err := s.replayLog(watermark); err != nil {
		engine.Close()
		return nil, err
	}
	if err := s.openLogForAppend(); err != nil {
		engine.Close()
		return nil, err
	}

	s.drainWg.Add(1)
	go s.drainRecords()
	go s.flushLoop()

	return s, nil
}

// openEngine builds the engine from the snapshot if one exists, otherwise
// fresh from the configuration. It returns the replay watermark.
func openEngine(opts Options) (*maplet.Maplet[[]byte], uint64, error) {
	cfg := opts.Engine
	if cfg == nil {
		cfg = maplet.DefaultConfig()
	}
	cfgCopy := *cfg
	cfgCopy.EmitRecords = true

	snapPath := filepath.Join(opts.Dir, snapFileName)
	f, err := os.Open(snapPath)
	if os.IsNotExist(err) {
		engine, err := maplet.New[[]byte](maplet.NewLWWOperator[[]byte](), &cfgCopy)
		if err != nil {
			return nil, 0, store.WrapEngineError(err)
		}
		return engine, 0, nil
	}
	if err != nil {
		return nil, 0, store.NewError(store.RetCInternalError, err.Error())
	}
	defer f.Close()

	snap, err := aof.ReadSnapshot(f)
	if err != nil {
		return nil, 0, store.NewError(store.RetCInternalError, fmt.Sprintf("reading snapshot: %v", err))
	}

	engine, err := maplet.FromSnapshot[[]byte](maplet.NewLWWOperator[[]byte](), snap, &cfgCopy)
	if err != nil {
		return nil, 0, store.WrapEngineError(err)
	}
	return engine, snap.LastTimestamp, nil
}

// replayLog applies the log suffix past the watermark to the engine.
func (s *persistentStore) replayLog(watermark uint64) error {
	logPath := filepath.Join(s.opts.Dir, logFileName)
	f, err := os.Open(logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	defer f.Close()

	_, err = aof.Replay(f, func(rec *maplet.Record[[]byte]) error {
		// records at or before the watermark are already in the snapshot
		if rec.Timestamp <= watermark {
			return nil
		}
		switch rec.Op {
		case maplet.OpInsert:
			if err := s.engine.InsertFingerprint(rec.Fingerprint, rec.Value); err != nil {
				return err
			}
		case maplet.OpDelete:
			s.engine.DeleteFingerprint(rec.Fingerprint, rec.Value)
		default:
			return fmt.Errorf("unknown op code %d", rec.Op)
		}
		s.engine.SetWriteIdx(rec.Timestamp)
		return nil
	})
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("replaying log: %v", err))
	}
	return nil
}

// openLogForAppend continues an existing log or starts a fresh one.
func (s *persistentStore) openLogForAppend() error {
	logPath := filepath.Join(s.opts.Dir, logFileName)

	if info, err := os.Stat(logPath); err == nil && info.Size() > 0 {
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return store.NewError(store.RetCInternalError, err.Error())
		}
		s.logFile = f
		s.writer = aof.NewAppendWriter(f)
		return nil
	}

	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	w, err := aof.NewWriter(f)
	if err != nil {
		f.Close()
		return store.NewError(store.RetCInternalError, err.Error())
	}
	s.logFile = f
	s.writer = w
	return nil
}

// --------------------------------------------------------------------------
// Record Draining
// --------------------------------------------------------------------------

// drainRecords appends every emitted record to the log. It exits when the
// engine closes its record stream.
func (s *persistentStore) drainRecords() {
	defer s.drainWg.Done()

	for rec := range s.engine.Records() {
		s.mu.Lock()
		if s.writer != nil {
			if err := s.writer.Append(rec); err != nil {
				Logger.Errorf("failed to append record: %v", err)
			}
		}
		s.mu.Unlock()
	}
}

// flushLoop pushes buffered records to disk on the sync interval.
func (s *persistentStore) flushLoop() {
	ticker := time.NewTicker(s.opts.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *persistentStore) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return
	}
	if err := s.writer.Flush(); err != nil {
		Logger.Errorf("failed to flush log: %v", err)
	}
}

// --------------------------------------------------------------------------
// Compaction
// --------------------------------------------------------------------------

// Compact writes a snapshot to the data directory and truncates the log.
// Records racing the snapshot keep their correctness through the
// timestamp watermark: a restore skips everything the snapshot already
// contains.
//
// Thread-safety: this method is thread-safe and can be called concurrently
// with reads and writes.
func (s *persistentStore) Compact() error {
	snap := s.engine.Snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	// persist the snapshot atomically (write-then-rename)
	snapPath := filepath.Join(s.opts.Dir, snapFileName)
	tmp, err := os.CreateTemp(s.opts.Dir, snapFileName+".tmp-*")
	if err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	if err := aof.WriteSnapshot(tmp, snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return store.NewError(store.RetCInternalError, err.Error())
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return store.NewError(store.RetCInternalError, err.Error())
	}
	if err := os.Rename(tmp.Name(), snapPath); err != nil {
		os.Remove(tmp.Name())
		return store.NewError(store.RetCInternalError, err.Error())
	}

	// start a fresh log; records not yet drained land in the new one and
	// are deduplicated by the watermark on restore
	if s.writer != nil {
		_ = s.writer.Flush()
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}

	logPath := filepath.Join(s.opts.Dir, logFileName)
	f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		s.logFile = nil
		s.writer = nil
		return store.NewError(store.RetCInternalError, err.Error())
	}
	w, err := aof.NewWriter(f)
	if err != nil {
		f.Close()
		s.logFile = nil
		s.writer = nil
		return store.NewError(store.RetCInternalError, err.Error())
	}
	s.logFile = f
	s.writer = w
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *persistentStore) Insert(key string, value []byte) error {
	return s.inner.Insert(key, value)
}

func (s *persistentStore) InsertE(key string, value []byte, expireIn uint64) error {
	return store.NewError(store.RetCUnsupportedOperation, "InsertE is not supported by the persistent store; wrap it with tstore")
}

func (s *persistentStore) Query(key string) ([]byte, bool, error) {
	return s.inner.Query(key)
}

func (s *persistentStore) Contains(key string) (bool, error) {
	return s.inner.Contains(key)
}

func (s *persistentStore) Delete(key string, value []byte) (bool, error) {
	return s.inner.Delete(key, value)
}

func (s *persistentStore) GetInfo() (store.StoreInfo, error) {
	info, err := s.inner.GetInfo()
	if err != nil {
		return info, err
	}

	var logSize int64
	if fi, err := os.Stat(filepath.Join(s.opts.Dir, logFileName)); err == nil {
		logSize = fi.Size()
	}

	info.Impl = store.ImplPersistent
	info.Metadata = &struct {
		Dir                string `json:"dir"`
		LogSizeBytes       int64  `json:"log_size_bytes"`
		SyncIntervalMillis int64  `json:"sync_interval_millis"`
	}{
		Dir:                s.opts.Dir,
		LogSizeBytes:       logSize,
		SyncIntervalMillis: s.opts.SyncInterval.Milliseconds(),
	}
	return info, nil
}

// Save streams a snapshot of the engine to w (the data directory is not
// touched; use Compact for that).
func (s *persistentStore) Save(w io.Writer) error {
	return aof.WriteSnapshot(w, s.engine.Snapshot())
}

// Load is not supported: the persistent store owns its directory state.
// Restore by placing a snapshot file in a fresh directory instead.
func (s *persistentStore) Load(r io.Reader) error {
	return store.NewError(store.RetCUnsupportedOperation, "Load is not supported by the persistent store")
}

func (s *persistentStore) SupportsFeature(feature store.Feature) bool {
	supported := store.FeatureInsert |
		store.FeatureQuery |
		store.FeatureContains |
		store.FeatureDelete |
		store.FeatureStats |
		store.FeatureSave
	return supported&feature == feature
}

// Close flushes and closes the log after the record stream drains.
func (s *persistentStore) Close() error {
	close(s.stopCh)

	// closing the engine ends the record stream; wait for the drain
	err := s.engine.Close()
	s.drainWg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer != nil {
		if ferr := s.writer.Flush(); ferr != nil && err == nil {
			err = ferr
		}
		s.writer = nil
	}
	if s.logFile != nil {
		if cerr := s.logFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
		s.logFile = nil
	}
	return err
}
