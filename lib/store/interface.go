package store

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/mappy/lib/maplet"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplLocal      Implementation = "lstore"
	ImplTTL        Implementation = "tstore"
	ImplPersistent Implementation = "pstore"
	ImplRPC        Implementation = "rpc"
)

// Feature represents store features as bit flags
type Feature uint64

const (
	FeatureInsert   Feature = 1 << iota // Support for Insert operations
	FeatureInsertE                      // Support for Insert with expiry
	FeatureQuery                        // Support for Query operations
	FeatureContains                     // Support for Contains operations
	FeatureDelete                       // Support for Delete operations
	FeatureStats                        // Support for GetInfo operations
	FeatureSave                         // Support for Save operations
	FeatureLoad                         // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureInsertE:
		return "InsertE"
	case FeatureQuery:
		return "Query"
	case FeatureContains:
		return "Contains"
	case FeatureDelete:
		return "Delete"
	case FeatureStats:
		return "Stats"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

// StoreInfo describes a store and its engine.
// It is not guaranteed that all fields are filled in or that the
// information is up-to-date.
type StoreInfo struct {
	Impl              Implementation `json:"impl"`
	Engine            maplet.Stats   `json:"engine"`
	ValueSizeMedian   int            `json:"value_size_median"`
	ValueSizeAverage  int            `json:"value_size_average"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Store Interface
// --------------------------------------------------------------------------

// IStore is the generic interface for interacting with an approximate
// key-value store. Semantics follow the maplet engine: queries may return
// a value merged with fingerprint collisions, never missing the stored
// contribution; a never-inserted key is reported absent except with
// probability ε.
//
// All write operations return only an error (nil on success), while read
// operations return the requested data along with an error.
type IStore interface {
	// Insert associates a value with a key, merging on collision.
	Insert(key string, value []byte) (err error)
	// InsertE inserts like Insert and schedules the key for deletion
	// after expireIn seconds. A zero expireIn means no expiry.
	InsertE(key string, value []byte, expireIn uint64) (err error)
	// Query returns the (possibly merged) value for a key. The boolean
	// reports whether the key was found.
	Query(key string) (value []byte, loaded bool, err error)
	// Contains reports whether a key is stored.
	Contains(key string) (loaded bool, err error)
	// Delete removes one occurrence of a key. The boolean reports whether
	// this was the last occurrence. The value is carried into persistence
	// records; stores without multiset semantics ignore it.
	Delete(key string, value []byte) (deleted bool, err error)
	// GetInfo returns metadata about the store and its engine.
	GetInfo() (info StoreInfo, err error)
	// Save persists the current state to the provided io.Writer.
	Save(w io.Writer) (err error)
	// Load restores state from an io.Reader, replacing current contents.
	Load(r io.Reader) (err error)
	// SupportsFeature checks if the implementation supports the given
	// feature(s). Multiple features can be checked at once using the
	// bitwise OR operator.
	SupportsFeature(feature Feature) (ok bool)
	// Close releases the store and its engine.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	errorCode := ""
	switch e.Code {
	case RetCInternalError:
		errorCode = "InternalError"
	case RetCUnsupportedOperation:
		errorCode = "UnsupportedOperation"
	case RetCInvalidOperation:
		errorCode = "InvalidOperation"
	case RetCEngineError:
		errorCode = "EngineError"
	default:
		errorCode = "Unknown"
	}

	return fmt.Sprintf("StoreError (code %s): %s", errorCode, e.Msg)
}

// NewError creates a new store Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapEngineError converts a maplet engine error into a store error,
// preserving the message (and thereby the engine's return code name).
func WrapEngineError(err error) error {
	if err == nil {
		return nil
	}
	return NewError(RetCEngineError, err.Error())
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by the implementation.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCEngineError                         // 4: The maplet engine rejected the operation.
)
