// Package protobuf provides a Protocol Buffers codec for herald commands.
//
// Command attributes are carried in a google.protobuf.Struct, so any command
// whose hydrator produces JSON-compatible values can be exchanged with
// services that speak protobuf without generated message types.
//
// Usage:
//
//	codec := protobuf.NewCodec(registry)
//	data, err := codec.Encode(cmd)
//	cmd, err := codec.Decode(data, "SendEmail")
//
// Numbers are carried as doubles, as google.protobuf.Value defines them, so
// integers beyond 2^53 lose precision. Use the JSON or msgpack codec for
// commands carrying such values. Times travel as RFC 3339 strings.
package protobuf

import (
	"encoding/json"
	"errors"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/AshkanYarmoradi/go-herald"
)

// ErrEmptyData indicates an attempt to decode empty data.
var ErrEmptyData = errors.New("herald/protobuf: cannot decode empty data")

// Codec is a protobuf implementation of herald.Codec.
type Codec struct {
	registry *herald.CommandRegistry
}

var _ herald.Codec = (*Codec)(nil)

// NewCodec creates a new protobuf Codec. A nil registry creates an empty one.
func NewCodec(registry *herald.CommandRegistry) *Codec {
	if registry == nil {
		registry = herald.NewCommandRegistry()
	}
	return &Codec{registry: registry}
}

// Registry returns the underlying command registry.
func (c *Codec) Registry() *herald.CommandRegistry {
	return c.registry
}

// ToStruct converts a command's extracted attributes to a structpb.Struct.
func ToStruct(cmd herald.Command) (*structpb.Struct, error) {
	attrs, err := herald.ExtractCommand(cmd)
	if err != nil {
		return nil, err
	}

	// structpb only accepts JSON-shaped values; typed maps and slices are
	// normalized by a JSON round trip.
	raw, err := json.Marshal(attrs)
	if err != nil {
		return nil, err
	}

	s := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Encode converts a command to protobuf wire bytes.
func (c *Codec) Encode(cmd herald.Command) ([]byte, error) {
	cmdType := herald.GetCommandType(cmd)

	s, err := ToStruct(cmd)
	if err != nil {
		return nil, herald.NewSerializationError(cmdType, "encode", err)
	}

	data, err := proto.Marshal(s)
	if err != nil {
		return nil, herald.NewSerializationError(cmdType, "encode", err)
	}
	return data, nil
}

// Decode converts protobuf wire bytes back to a registered command.
func (c *Codec) Decode(data []byte, cmdType string) (herald.Command, error) {
	if len(data) == 0 {
		return nil, herald.NewSerializationError(cmdType, "decode", ErrEmptyData)
	}

	s := &structpb.Struct{}
	if err := proto.Unmarshal(data, s); err != nil {
		return nil, herald.NewSerializationError(cmdType, "decode", err)
	}

	cmd, err := c.registry.Hydrate(cmdType, s.AsMap())
	if err != nil {
		return nil, herald.NewSerializationError(cmdType, "decode", err)
	}
	return cmd, nil
}
