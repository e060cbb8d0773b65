package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key      string `json:"key,omitempty"`      // Used for: Insert, InsertE, Query, Contains, Delete
	ExpireIn uint64 `json:"expireIn,omitempty"` // Used for: InsertE requests (seconds)
	Value    []byte `json:"value,omitempty"`    // Used for: Insert/InsertE/Delete (request), Query (response)

	// Response only fields
	Ok  bool   `json:"ok,omitempty"`  // Used for: Query, Contains, Delete responses
	Err string `json:"err,omitempty"` // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Stats responses (JSON-encoded StoreInfo), custom adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewInsertRequest creates a new Insert request
func NewInsertRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVInsert,
		Key:     key,
		Value:   value,
	}
}

// NewInsertResponse creates a new Insert response
func NewInsertResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVInsert,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewInsertERequest creates a new InsertE request
func NewInsertERequest(key string, value []byte, expireIn uint64) *Message {
	return &Message{
		MsgType:  MsgTKVInsertE,
		Key:      key,
		Value:    value,
		ExpireIn: expireIn,
	}
}

// NewInsertEResponse creates a new InsertE response
func NewInsertEResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVInsertE,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewQueryRequest creates a new Query request
func NewQueryRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVQuery,
		Key:     key,
	}
}

// NewQueryResponse creates a new Query response
func NewQueryResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVQuery,
		Ok:      ok,
		Value:   value,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewContainsRequest creates a new Contains request
func NewContainsRequest(key string) *Message {
	return &Message{
		MsgType: MsgTKVContains,
		Key:     key,
	}
}

// NewContainsResponse creates a new Contains response
func NewContainsResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVContains,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewDeleteRequest creates a new Delete request. The value travels along
// for the engine's persistence records.
func NewDeleteRequest(key string, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVDelete,
		Key:     key,
		Value:   value,
	}
}

// NewDeleteResponse creates a new Delete response; ok reports whether the
// last occurrence was removed
func NewDeleteResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVDelete,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{
		MsgType: MsgTKVStats,
	}
}

// NewStatsResponse creates a new Stats response carrying the
// JSON-encoded store info in the Meta field
func NewStatsResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVStats,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTKVInsert:
		return "insert"
	case MsgTKVInsertE:
		return "insertE"
	case MsgTKVQuery:
		return "query"
	case MsgTKVContains:
		return "contains"
	case MsgTKVDelete:
		return "delete"
	case MsgTKVStats:
		return "stats"
	case MsgTCustom:
		return "custom"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "insert":
		*t = MsgTKVInsert
	case "insertE":
		*t = MsgTKVInsertE
	case "query":
		*t = MsgTKVQuery
	case "contains":
		*t = MsgTKVContains
	case "delete":
		*t = MsgTKVDelete
	case "stats":
		*t = MsgTKVStats
	case "custom":
		*t = MsgTCustom
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVInsert   // Insert a key-value pair
	MsgTKVInsertE  // Insert a key-value pair with expiry
	MsgTKVQuery    // Query the (possibly merged) value for a key
	MsgTKVContains // Check if a key exists
	MsgTKVDelete   // Delete one occurrence of a key
	MsgTKVStats    // Fetch store and engine statistics

	// Custom operations

	MsgTCustom // Custom operation type
)
