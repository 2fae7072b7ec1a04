package herald

import (
	"encoding"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Hydrator converts between an object and a plain key-value representation.
type Hydrator interface {
	// Extract returns the attributes of obj.
	Extract(obj interface{}) (map[string]interface{}, error)

	// Hydrate writes the attributes in data into obj, which must be a pointer.
	Hydrate(data map[string]interface{}, obj interface{}) error
}

// Filter decides whether a key takes part in extraction and hydration.
type Filter func(key string) bool

// FilterProvider is implemented by hydrators that support named filters.
type FilterProvider interface {
	AddFilter(name string, filter Filter)
	RemoveFilter(name string)
	HasFilter(name string) bool
}

// ExcludeKeys returns a Filter that rejects the given keys.
func ExcludeKeys(keys ...string) Filter {
	excluded := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		excluded[k] = struct{}{}
	}
	return func(key string) bool {
		_, ok := excluded[key]
		return !ok
	}
}

// Keys of the infrastructure accessors excluded by the default command hydrator.
const (
	HydratorKey     = "hydrator"
	EventManagerKey = "eventManager"
)

// DefaultTagName is the struct tag used for attribute keys.
const DefaultTagName = "json"

// StructHydrator maps struct fields to attributes using struct tags.
// Embedded structs are flattened into their parent. All filters must accept
// a key for it to be extracted or hydrated.
type StructHydrator struct {
	tagName string

	mu      sync.RWMutex
	filters map[string]Filter
}

// StructHydratorOption configures a StructHydrator.
type StructHydratorOption func(*StructHydrator)

// WithTagName sets the struct tag used for attribute keys.
func WithTagName(tag string) StructHydratorOption {
	return func(h *StructHydrator) {
		h.tagName = tag
	}
}

// WithFilter adds a named filter.
func WithFilter(name string, filter Filter) StructHydratorOption {
	return func(h *StructHydrator) {
		h.filters[name] = filter
	}
}

// NewStructHydrator creates a StructHydrator.
func NewStructHydrator(opts ...StructHydratorOption) *StructHydrator {
	h := &StructHydrator{
		tagName: DefaultTagName,
		filters: make(map[string]Filter),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewCommandHydrator creates the hydrator used by CommandBase: a StructHydrator
// that never maps the hydrator and event manager accessors.
func NewCommandHydrator() *StructHydrator {
	return NewStructHydrator(
		WithFilter(HydratorKey, ExcludeKeys(HydratorKey)),
		WithFilter(EventManagerKey, ExcludeKeys(EventManagerKey)),
	)
}

// AddFilter adds or replaces a named filter.
func (h *StructHydrator) AddFilter(name string, filter Filter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters[name] = filter
}

// RemoveFilter removes a named filter.
func (h *StructHydrator) RemoveFilter(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.filters, name)
}

// HasFilter reports whether a named filter exists.
func (h *StructHydrator) HasFilter(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.filters[name]
	return ok
}

// FilterNames returns the names of the configured filters, sorted.
func (h *StructHydrator) FilterNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.filters))
	for name := range h.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Accepts reports whether every filter accepts the key.
func (h *StructHydrator) Accepts(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, f := range h.filters {
		if !f(key) {
			return false
		}
	}
	return true
}

// Extract returns the tagged attributes of obj.
// Struct fields implementing encoding.TextMarshaler, such as time.Time, are
// extracted as their text form.
func (h *StructHydrator) Extract(obj interface{}) (map[string]interface{}, error) {
	typeName := GetCommandType(obj)
	if isNil(obj) {
		return nil, NewHydrationError(typeName, "extract", ErrNilTarget)
	}

	raw := make(map[string]interface{})
	decoder, err := h.decoder(&raw)
	if err != nil {
		return nil, NewHydrationError(typeName, "extract", err)
	}
	if err := decoder.Decode(obj); err != nil {
		return nil, NewHydrationError(typeName, "extract", err)
	}
	if err := h.textValues(reflect.ValueOf(obj), raw); err != nil {
		return nil, NewHydrationError(typeName, "extract", err)
	}

	return h.filter(raw), nil
}

// Hydrate writes the accepted attributes of data into obj.
// Strings are parsed into time.Time and encoding.TextUnmarshaler fields.
// A number with a fractional part is rejected for integer fields.
func (h *StructHydrator) Hydrate(data map[string]interface{}, obj interface{}) error {
	typeName := GetCommandType(obj)
	if isNil(obj) {
		return NewHydrationError(typeName, "hydrate", ErrNilTarget)
	}
	if reflect.TypeOf(obj).Kind() != reflect.Ptr {
		return NewHydrationError(typeName, "hydrate", fmt.Errorf("target must be a pointer, got %T", obj))
	}

	decoder, err := h.decoder(obj)
	if err != nil {
		return NewHydrationError(typeName, "hydrate", err)
	}
	if err := decoder.Decode(h.filter(data)); err != nil {
		return NewHydrationError(typeName, "hydrate", err)
	}
	return nil
}

func (h *StructHydrator) decoder(result interface{}) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: h.tagName,
		Squash:  true,
		Result:  result,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncKind(wholeNumberHook),
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
}

var textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()

// textValues replaces the attributes of struct fields that marshal to text
// with their text form. mapstructure turns such fields into maps of their
// exported fields, which for time.Time is an empty map.
func (h *StructHydrator) textValues(v reflect.Value, attrs map[string]interface{}) error {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" {
			continue
		}

		name, opts, _ := strings.Cut(f.Tag.Get(h.tagName), ",")
		if name == "-" {
			continue
		}

		fv := v.Field(i)
		squash := (f.Anonymous && fv.Kind() == reflect.Struct) || strings.Contains(opts, "squash")
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() || fv.Elem().Kind() != reflect.Struct {
				continue
			}
			fv = fv.Elem()
		}
		if fv.Kind() != reflect.Struct {
			continue
		}

		if squash {
			if err := h.textValues(fv, attrs); err != nil {
				return err
			}
			continue
		}

		key := f.Name
		if name != "" {
			key = name
		}
		current, ok := attrs[key]
		if !ok {
			continue
		}

		if m, ok := textMarshaler(fv); ok {
			text, err := m.MarshalText()
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			attrs[key] = string(text)
			continue
		}
		if nested, ok := current.(map[string]interface{}); ok {
			if err := h.textValues(fv, nested); err != nil {
				return err
			}
		}
	}
	return nil
}

func textMarshaler(v reflect.Value) (encoding.TextMarshaler, bool) {
	if v.Type().Implements(textMarshalerType) {
		return v.Interface().(encoding.TextMarshaler), true
	}
	if v.CanAddr() && v.Addr().Type().Implements(textMarshalerType) {
		return v.Addr().Interface().(encoding.TextMarshaler), true
	}
	return nil, false
}

// wholeNumberHook rejects floats with a fractional part bound for integer fields.
func wholeNumberHook(from, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.Float32 && from != reflect.Float64 {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}

	f := reflect.ValueOf(data).Float()
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("cannot use %v as %s: fractional part would be lost", f, to)
	}
	return data, nil
}

func (h *StructHydrator) filter(data map[string]interface{}) map[string]interface{} {
	filtered := make(map[string]interface{}, len(data))
	for k, v := range data {
		if h.Accepts(k) {
			filtered[k] = v
		}
	}
	return filtered
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
