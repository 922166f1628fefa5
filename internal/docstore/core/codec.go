package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec serializes records for backends that store opaque payloads.
type Codec interface {
	Name() string
	Marshal(Record) ([]byte, error)
	Unmarshal([]byte) (Record, error)
}

// Codec names accepted by CodecByName.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// CodecByName resolves a codec; the empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecMsgpack:
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %s", name)
	}
}

// JSONCodec encodes records as JSON objects. Numbers decode as json.Number so
// integral quantities survive a round trip without float conversion.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Marshal(r Record) ([]byte, error) {
	if r == nil {
		r = Record{}
	}
	return json.Marshal(map[string]any(r))
}

func (JSONCodec) Unmarshal(b []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode json record: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return Record(m), nil
}

// MsgpackCodec encodes records with MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return CodecMsgpack }

func (MsgpackCodec) Marshal(r Record) ([]byte, error) {
	if r == nil {
		r = Record{}
	}
	return msgpack.Marshal(map[string]any(r))
}

func (MsgpackCodec) Unmarshal(b []byte) (Record, error) {
	var m map[string]any
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode msgpack record: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return Record(m), nil
}
