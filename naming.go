package herald

import (
	"reflect"
	"strings"
)

// DefaultEventNameSeparator separates the words of a derived event name.
const DefaultEventNameSeparator = "-"

// EventNameFromType derives an event name from a type name.
//
// Any package or namespace qualifier is dropped, then every ASCII uppercase
// letter is replaced by the separator followed by the lowercase letter:
//
//	EventNameFromType("notify.SendEmailCommand", "-") // "-send-email-command"
//
// The result keeps its leading separator. A name without uppercase letters
// yields an empty string. Only A-Z count as uppercase.
func EventNameFromType(typeName, separator string) string {
	base := unqualifiedName(typeName)

	var b strings.Builder
	found := false
	for i := 0; i < len(base); i++ {
		c := base[i]
		if c >= 'A' && c <= 'Z' {
			found = true
			b.WriteString(separator)
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}

	// A name with no word boundary has nothing to derive from.
	if !found {
		return ""
	}
	return b.String()
}

// GuessEventName derives the event name for a command from its concrete type.
// An empty separator falls back to DefaultEventNameSeparator.
func GuessEventName(cmd interface{}, separator string) string {
	if separator == "" {
		separator = DefaultEventNameSeparator
	}
	return EventNameFromType(GetCommandType(cmd), separator)
}

// GetCommandType returns the unqualified type name of a command using reflection.
// Pointer types are unwrapped and generic type arguments are dropped.
func GetCommandType(cmd interface{}) string {
	if cmd == nil {
		return ""
	}
	t := reflect.TypeOf(cmd)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

// unqualifiedName keeps the final segment of a qualified type name.
func unqualifiedName(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexAny(name, `./\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}
