// Package msgpack provides a MessagePack codec for herald commands.
//
// MessagePack is a binary format that produces smaller payloads than JSON
// while keeping the same map-shaped structure. Commands are encoded from the
// attributes extracted by their own hydrator, so hydrator filters apply.
//
// Basic usage:
//
//	registry := herald.NewCommandRegistry()
//	registry.RegisterAll(&SendEmail{})
//	codec := msgpack.NewCodec(registry)
//
//	data, err := codec.Encode(&SendEmail{To: "a@example.com"})
//	cmd, err := codec.Decode(data, "SendEmail")
package msgpack

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/AshkanYarmoradi/go-herald"
)

// Codec is a MessagePack implementation of herald.Codec.
type Codec struct {
	registry *herald.CommandRegistry
}

var _ herald.Codec = (*Codec)(nil)

// NewCodec creates a new MessagePack Codec. A nil registry creates an empty one.
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

// Encode converts a command to MessagePack bytes.
func (c *Codec) Encode(cmd herald.Command) ([]byte, error) {
	cmdType := herald.GetCommandType(cmd)
	attrs, err := herald.ExtractCommand(cmd)
	if err != nil {
		return nil, herald.NewSerializationError(cmdType, "encode", err)
	}

	data, err := msgpack.Marshal(attrs)
	if err != nil {
		return nil, herald.NewSerializationError(cmdType, "encode", err)
	}
	return data, nil
}

// Decode converts MessagePack bytes back to a registered command.
func (c *Codec) Decode(data []byte, cmdType string) (herald.Command, error) {
	if len(data) == 0 {
		return nil, herald.NewSerializationError(cmdType, "decode", fmt.Errorf("data cannot be empty"))
	}

	var attrs map[string]interface{}
	if err := msgpack.Unmarshal(data, &attrs); err != nil {
		return nil, herald.NewSerializationError(cmdType, "decode", err)
	}

	cmd, err := c.registry.Hydrate(cmdType, attrs)
	if err != nil {
		return nil, herald.NewSerializationError(cmdType, "decode", err)
	}
	return cmd, nil
}
