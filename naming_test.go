package herald

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

type Foo struct{}

type lowercase struct{}

type GenericCommand[T any] struct{}

func TestEventNameFromType(t *testing.T) {
	tests := []struct {
		name      string
		typeName  string
		separator string
		want      string
	}{
		{"camel case", "SendEmailCommand", "-", "-send-email-command"},
		{"single word", "Foo", "_", "_foo"},
		{"dot qualified", "notify.SendEmailCommand", "-", "-send-email-command"},
		{"backslash qualified", `Foo\Bar\SendEmailCommand`, "-", "-send-email-command"},
		{"import path qualified", "github.com/acme/notify.SendEmail", "-", "-send-email"},
		{"consecutive capitals", "HTTPCall", "-", "-h-t-t-p-call"},
		{"multi character separator", "SendEmail", "::", "::send::email"},
		{"digits kept", "Send2Email", "-", "-send2-email"},
		{"no uppercase", "lowercase", "-", ""},
		{"empty", "", "-", ""},
		{"non ascii is not uppercase", "Ärger", "-", ""},
		{"non ascii inside", "SendÉmail", "-", "-sendÉmail"},
		{"generic arguments dropped", "GenericCommand[main.Foo]", "-", "-generic-command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EventNameFromType(tt.typeName, tt.separator))
		})
	}
}

func TestEventNameFromType_Reconstructs(t *testing.T) {
	names := []string{"SendEmailCommand", "Foo", "PublishNewsletter", "AB"}
	separators := []string{"-", "_", "."}

	for _, name := range names {
		for _, sep := range separators {
			derived := EventNameFromType(name, sep)

			assert.True(t, strings.HasPrefix(derived, sep), "%q should start with %q", derived, sep)
			for _, r := range strings.ReplaceAll(derived, sep, "") {
				assert.True(t, unicode.IsLower(r), "%q should only contain lowercase letters", derived)
			}

			var rebuilt strings.Builder
			for _, word := range strings.Split(derived, sep)[1:] {
				rebuilt.WriteString(strings.ToUpper(word[:1]) + word[1:])
			}
			assert.Equal(t, name, rebuilt.String())
		}
	}
}

func TestGuessEventName(t *testing.T) {
	t.Run("uses concrete type of pointer", func(t *testing.T) {
		assert.Equal(t, "-send-email-command", GuessEventName(&SendEmailCommand{}, "-"))
	})

	t.Run("uses value type", func(t *testing.T) {
		assert.Equal(t, "_foo", GuessEventName(Foo{}, "_"))
	})

	t.Run("empty separator uses default", func(t *testing.T) {
		assert.Equal(t, "-counting-command", GuessEventName(&CountingCommand{}, ""))
	})

	t.Run("generic type", func(t *testing.T) {
		assert.Equal(t, "-generic-command", GuessEventName(GenericCommand[Foo]{}, "-"))
	})

	t.Run("unexported lowercase type", func(t *testing.T) {
		assert.Equal(t, "", GuessEventName(lowercase{}, "-"))
	})

	t.Run("nil", func(t *testing.T) {
		assert.Equal(t, "", GuessEventName(nil, "-"))
	})
}

func TestGetCommandType(t *testing.T) {
	assert.Equal(t, "SendEmailCommand", GetCommandType(&SendEmailCommand{}))
	assert.Equal(t, "Foo", GetCommandType(Foo{}))
	assert.Equal(t, "GenericCommand", GetCommandType(&GenericCommand[string]{}))
	assert.Equal(t, "", GetCommandType(nil))
}
