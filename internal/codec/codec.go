// Package codec implements the value serialization capability: a small
// set of registered media types, each able to round-trip five value
// kinds (string, integer, float, []string, []float64). MessagePack is
// the primary format; JSON is the optional secondary format. A message
// payload is opaque bytes to every other package in this module — only
// codec touches the wire representation.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Registered media types, matching the Format tag carried on
// internal/message.Message.
const (
	FormatMsgpack = "application/msgpack"
	FormatJSON    = "application/json"

	// FormatBinary names a raw-bytes format. No codec is registered
	// for it: a message tagged with this format carries payload bytes
	// the broker never inspects or transcodes; the sender and receiver
	// agree on the encoding out of band.
	FormatBinary = "application/octet-stream"
)

// Codec marshals and unmarshals the value kinds this package allows
// for a single registered media type.
type Codec interface {
	Format() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// ValidateValue reports an error unless v is one of five kinds:
// string, integer, float, []string, or []float64.
func ValidateValue(v any) error {
	switch v.(type) {
	case string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		[]string, []float64:
		return nil
	default:
		return fmt.Errorf("codec: unsupported value kind %T", v)
	}
}

type msgpackCodec struct{}

func (msgpackCodec) Format() string { return FormatMsgpack }

func (msgpackCodec) Marshal(v any) ([]byte, error) {
	if err := ValidateValue(v); err != nil {
		return nil, err
	}
	return msgpack.Marshal(v)
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

type jsonCodec struct{}

func (jsonCodec) Format() string { return FormatJSON }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if err := ValidateValue(v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Msgpack is the primary registered codec.
var Msgpack Codec = msgpackCodec{}

// JSON is the optional registered codec.
var JSON Codec = jsonCodec{}

// ByFormat returns the codec registered for format, or false if
// format is unregistered (including FormatBinary, by design).
func ByFormat(format string) (Codec, bool) {
	switch format {
	case FormatMsgpack:
		return Msgpack, true
	case FormatJSON:
		return JSON, true
	default:
		return nil, false
	}
}
