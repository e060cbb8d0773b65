package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/mappy/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Insert request
		{
			MsgType: common.MsgTKVInsert,
			Key:     "test-key",
			Value:   []byte("test-value"),
		},

		// InsertE request with expiry
		{
			MsgType:  common.MsgTKVInsertE,
			Key:      "test-key",
			Value:    []byte("test-value"),
			ExpireIn: 60,
		},

		// Query response
		{
			MsgType: common.MsgTKVQuery,
			Key:     "test-key",
			Value:   []byte("merged-value"),
			Ok:      true,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			Err:     "test error message",
		},

		// Stats response with meta payload
		{
			MsgType: common.MsgTKVStats,
			Meta:    []byte(`{"impl":"lstore"}`),
		},

		// Message with all fields filled
		{
			MsgType:  common.MsgTKVDelete,
			Key:      "test-delete-key",
			ExpireIn: 300,
			Value:    []byte("test-delete-value"),
			Ok:       true,
			Err:      "",
			Meta:     []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()

			for i, msg := range messages {
				data, err := s.Serialize(msg)
				if err != nil {
					t.Fatalf("message %d: Serialize failed: %v", i, err)
				}

				var got common.Message
				if err := s.Deserialize(data, &got); err != nil {
					t.Fatalf("message %d: Deserialize failed: %v", i, err)
				}

				if !messagesEqual(msg, got) {
					t.Errorf("message %d: round trip mismatch:\nsent: %+v\ngot:  %+v", i, msg, got)
				}
			}
		})
	}
}

// messagesEqual compares messages treating nil and empty byte slices as equal
func messagesEqual(a, b common.Message) bool {
	if a.MsgType != b.MsgType || a.Key != b.Key || a.ExpireIn != b.ExpireIn ||
		a.Ok != b.Ok || a.Err != b.Err {
		return false
	}
	return bytesEqual(a.Value, b.Value) && bytesEqual(a.Meta, b.Meta)
}

func bytesEqual(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// TestDeserializeReusesBuffers checks the binary serializer's buffer reuse path
func TestDeserializeReusesBuffers(t *testing.T) {
	s := NewBinarySerializer()

	big := common.Message{MsgType: common.MsgTKVInsert, Key: "k", Value: make([]byte, 1024)}
	small := common.Message{MsgType: common.MsgTKVInsert, Key: "k", Value: []byte("tiny")}

	bigData, _ := s.Serialize(big)
	smallData, _ := s.Serialize(small)

	var msg common.Message
	if err := s.Deserialize(bigData, &msg); err != nil {
		t.Fatal(err)
	}
	if err := s.Deserialize(smallData, &msg); err != nil {
		t.Fatal(err)
	}
	if string(msg.Value) != "tiny" {
		t.Errorf("buffer reuse corrupted value: %q", msg.Value)
	}
}

// TestDeserializeTruncated checks that corrupt input is rejected, not panicked on
func TestDeserializeTruncated(t *testing.T) {
	s := NewBinarySerializer()

	msg := common.Message{MsgType: common.MsgTKVInsert, Key: "some-key", Value: []byte("some-value")}
	data, _ := s.Serialize(msg)

	for cut := 1; cut < len(data); cut++ {
		var got common.Message
		// any error is fine, a panic is not
		_ = s.Deserialize(data[:cut], &got)
	}
}
