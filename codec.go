package herald

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Codec converts commands to and from bytes.
type Codec interface {
	// Encode converts a command to bytes.
	Encode(cmd Command) ([]byte, error)

	// Decode converts bytes back to a command of the given type.
	Decode(data []byte, cmdType string) (Command, error)
}

// CommandRegistry maps command type names to Go types.
// Registered types must implement Command through a pointer receiver.
type CommandRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewCommandRegistry creates a new empty CommandRegistry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		types: make(map[string]reflect.Type),
	}
}

// Register adds a mapping from cmdType to the Go type of the example.
func (r *CommandRegistry) Register(cmdType string, example interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[cmdType] = elemType(example)
}

// RegisterAll registers multiple commands using their struct names as type names.
func (r *CommandRegistry) RegisterAll(examples ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, example := range examples {
		t := elemType(example)
		r.types[t.Name()] = t
	}
}

// Lookup returns the Go type for the given command type name.
func (r *CommandRegistry) Lookup(cmdType string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[cmdType]
	return t, ok
}

// New returns a new zero command of the given type.
func (r *CommandRegistry) New(cmdType string) (Command, error) {
	t, ok := r.Lookup(cmdType)
	if !ok {
		return nil, NewCommandTypeNotRegisteredError(cmdType)
	}

	cmd, ok := reflect.New(t).Interface().(Command)
	if !ok {
		return nil, fmt.Errorf("herald: *%s does not implement Command", t.Name())
	}
	return cmd, nil
}

// Hydrate creates a command of the given type and hydrates it with data.
func (r *CommandRegistry) Hydrate(cmdType string, data map[string]interface{}) (Command, error) {
	cmd, err := r.New(cmdType)
	if err != nil {
		return nil, err
	}
	if err := cmd.Hydrator().Hydrate(data, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

// RegisteredTypes returns all registered command type names, sorted.
func (r *CommandRegistry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.types))
	for t := range r.types {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered command types.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}

func elemType(example interface{}) reflect.Type {
	t := reflect.TypeOf(example)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// ExtractCommand returns the attributes of cmd using its own hydrator.
func ExtractCommand(cmd Command) (map[string]interface{}, error) {
	if isNil(cmd) {
		return nil, ErrNilCommand
	}
	return cmd.Hydrator().Extract(cmd)
}

// JSONCodec is the default Codec implementation using JSON encoding.
type JSONCodec struct {
	registry *CommandRegistry
}

// NewJSONCodec creates a JSONCodec. A nil registry creates an empty one.
func NewJSONCodec(registry *CommandRegistry) *JSONCodec {
	if registry == nil {
		registry = NewCommandRegistry()
	}
	return &JSONCodec{registry: registry}
}

// Registry returns the underlying CommandRegistry.
func (c *JSONCodec) Registry() *CommandRegistry {
	return c.registry
}

// Encode converts the command's extracted attributes to JSON.
func (c *JSONCodec) Encode(cmd Command) ([]byte, error) {
	cmdType := GetCommandType(cmd)
	attrs, err := ExtractCommand(cmd)
	if err != nil {
		return nil, NewSerializationError(cmdType, "encode", err)
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, NewSerializationError(cmdType, "encode", err)
	}
	return data, nil
}

// Decode converts JSON back to a registered command.
func (c *JSONCodec) Decode(data []byte, cmdType string) (Command, error) {
	if len(data) == 0 {
		return nil, NewSerializationError(cmdType, "decode", fmt.Errorf("data cannot be empty"))
	}

	// Numbers stay json.Number so integers beyond 2^53 keep their precision.
	var attrs map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&attrs); err != nil {
		return nil, NewSerializationError(cmdType, "decode", err)
	}
	if decoder.More() {
		return nil, NewSerializationError(cmdType, "decode", fmt.Errorf("unexpected data after JSON object"))
	}

	cmd, err := c.registry.Hydrate(cmdType, attrs)
	if err != nil {
		return nil, NewSerializationError(cmdType, "decode", err)
	}
	return cmd, nil
}

// Envelope pairs encoded command data with its type name.
type Envelope struct {
	Type string `json:"type"`
	Data []byte `json:"data"`
}

// EncodeEnvelope encodes a command into an Envelope.
func EncodeEnvelope(codec Codec, cmd Command) (Envelope, error) {
	cmdType := GetCommandType(cmd)
	if cmdType == "" {
		return Envelope{}, NewSerializationError("", "encode", ErrNilCommand)
	}

	data, err := codec.Encode(cmd)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: cmdType, Data: data}, nil
}

// DecodeEnvelope decodes the command held by an Envelope.
func DecodeEnvelope(codec Codec, env Envelope) (Command, error) {
	return codec.Decode(env.Data, env.Type)
}
