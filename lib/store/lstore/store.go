package lstore

import (
	"io"

	"github.com/ValentinKolb/mappy/lib/aof"
	"github.com/ValentinKolb/mappy/lib/maplet"
	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/lib/util"
)

// supported features of the local store
const supportedFeatures = store.FeatureInsert |
	store.FeatureQuery |
	store.FeatureContains |
	store.FeatureDelete |
	store.FeatureStats |
	store.FeatureSave |
	store.FeatureLoad

// EngineFactory creates the maplet engine backing a store. This abstracts
// the engine configuration away from the store implementation.
type EngineFactory func() (*maplet.Maplet[[]byte], error)

// DefaultEngineFactory builds a byte-valued engine with last-write-wins
// merge semantics and the given configuration (nil for defaults).
func DefaultEngineFactory(cfg *maplet.Config) EngineFactory {
	return func() (*maplet.Maplet[[]byte], error) {
		return maplet.New[[]byte](maplet.NewLWWOperator[[]byte](), cfg)
	}
}

type storeImpl struct {
	engine *maplet.Maplet[[]byte]
	sizes  *util.SizeHistogram
}

// NewLocalStore creates a new local store instance.
// This store implementation is not persistent and only lives in memory;
// it works by using the maplet engine directly.
func NewLocalStore(factory EngineFactory) (store.IStore, error) {
	engine, err := factory()
	if err != nil {
		return nil, err
	}
	return &storeImpl{
		engine: engine,
		sizes:  util.NewSizeHistogram(),
	}, nil
}

// NewLocalStoreWithEngine wraps an existing engine. Used by pstore, which
// needs the engine's record stream for itself.
func NewLocalStoreWithEngine(engine *maplet.Maplet[[]byte]) store.IStore {
	return &storeImpl{
		engine: engine,
		sizes:  util.NewSizeHistogram(),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(key string, value []byte) error {
	// copy the value: the engine retains what it stores
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	if err := s.engine.Insert(key, valueCopy); err != nil {
		return store.WrapEngineError(err)
	}
	s.sizes.AddSample(len(value))
	return nil
}

func (s *storeImpl) InsertE(key string, value []byte, expireIn uint64) error {
	return store.NewError(store.RetCUnsupportedOperation, "InsertE is not supported by the local store; wrap it with tstore")
}

func (s *storeImpl) Query(key string) ([]byte, bool, error) {
	v, ok := s.engine.Query(key)
	if !ok {
		return nil, false, nil
	}

	// return a copy so callers cannot corrupt the stored value
	valueCopy := make([]byte, len(v))
	copy(valueCopy, v)
	return valueCopy, true, nil
}

func (s *storeImpl) Contains(key string) (bool, error) {
	return s.engine.Contains(key), nil
}

func (s *storeImpl) Delete(key string, value []byte) (bool, error) {
	return s.engine.Delete(key, value), nil
}

func (s *storeImpl) GetInfo() (store.StoreInfo, error) {
	return store.StoreInfo{
		Impl:             store.ImplLocal,
		Engine:           s.engine.Stats(),
		ValueSizeMedian:  s.sizes.MedianEstimate(),
		ValueSizeAverage: s.sizes.AverageSize(),
		SupportedFeatures: []store.Feature{
			store.FeatureInsert, store.FeatureQuery, store.FeatureContains,
			store.FeatureDelete, store.FeatureStats,
			store.FeatureSave, store.FeatureLoad,
		},
	}, nil
}

// Save writes a snapshot of the engine to w.
// Concurrent reads and writes are allowed; the snapshot is taken under the
// engine's read locks and serialized afterwards.
func (s *storeImpl) Save(w io.Writer) error {
	return aof.WriteSnapshot(w, s.engine.Snapshot())
}

// Load replaces the engine with one restored from the snapshot in r.
//
// Thread-safety: unlike the other methods, Load is not safe to run
// concurrently with writers; callers quiesce the store first.
func (s *storeImpl) Load(r io.Reader) error {
	snap, err := aof.ReadSnapshot(r)
	if err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}

	engine, err := maplet.FromSnapshot[[]byte](maplet.NewLWWOperator[[]byte](), snap, nil)
	if err != nil {
		return store.WrapEngineError(err)
	}

	old := s.engine
	s.engine = engine
	_ = old.Close()
	s.sizes.Reset()
	return nil
}

func (s *storeImpl) SupportsFeature(feature store.Feature) bool {
	return supportedFeatures&feature == feature
}

func (s *storeImpl) Close() error {
	return s.engine.Close()
}
