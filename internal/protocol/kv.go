package protocol

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// KV is a self-describing key/value payload for variable-shape messages.
// It travels as a length-prefixed google.protobuf.Struct, so every number
// decodes as float64 and nested values are []any or map[string]any.
type KV map[string]any

var kvMarshal = proto.MarshalOptions{Deterministic: true}

// MarshalBinary encodes kv. Values must be nil, bool, numeric, string,
// []any, or map[string]any.
func (kv KV) MarshalBinary() ([]byte, error) {
	s, err := structpb.NewStruct(kv)
	if err != nil {
		return nil, fmt.Errorf("encoding kv payload: %w", err)
	}
	b, err := kvMarshal.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding kv payload: %w", err)
	}
	return b, nil
}

// UnmarshalBinary replaces the contents of kv with the decoded payload.
func (kv *KV) UnmarshalBinary(b []byte) error {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("decoding kv payload: %w", err)
	}
	*kv = s.AsMap()
	return nil
}

// String returns the string stored under key, or "".
func (kv KV) String(key string) string {
	s, _ := kv[key].(string)
	return s
}

// Float returns the number stored under key, or 0.
func (kv KV) Float(key string) float64 {
	switch v := kv[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	}
	return 0
}

// Int returns the number stored under key truncated to int64, or 0.
func (kv KV) Int(key string) int64 { return int64(kv.Float(key)) }

// Bool returns the bool stored under key, or false.
func (kv KV) Bool(key string) bool {
	b, _ := kv[key].(bool)
	return b
}

// List returns the list stored under key, or nil.
func (kv KV) List(key string) []any {
	l, _ := kv[key].([]any)
	return l
}

// Map returns the nested object stored under key, or nil.
func (kv KV) Map(key string) KV {
	m, _ := kv[key].(map[string]any)
	return KV(m)
}

// Maps returns the objects stored in the list under key, skipping other values.
func (kv KV) Maps(key string) []KV {
	var out []KV
	for _, v := range kv.List(key) {
		if m, ok := v.(map[string]any); ok {
			out = append(out, KV(m))
		}
	}
	return out
}

func decodeKV(b []byte) (KV, error) {
	var kv KV
	if err := kv.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return kv, nil
}

func intsToList(ids []int) []any {
	out := make([]any, len(ids))
	for i, v := range ids {
		out[i] = v
	}
	return out
}

func listToInts(l []any) []int {
	out := make([]int, 0, len(l))
	for _, v := range l {
		if f, ok := v.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}
