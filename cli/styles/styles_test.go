package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSuccess(t *testing.T) {
	result := FormatSuccess("test message")
	assert.Contains(t, result, IconSuccess)
	assert.Contains(t, result, "test message")
}

func TestFormatError(t *testing.T) {
	result := FormatError("error message")
	assert.Contains(t, result, IconError)
	assert.Contains(t, result, "error message")
}

func TestFormatWarning(t *testing.T) {
	result := FormatWarning("warning message")
	assert.Contains(t, result, IconWarning)
	assert.Contains(t, result, "warning message")
}

func TestFormatInfo(t *testing.T) {
	result := FormatInfo("info message")
	assert.Contains(t, result, IconInfo)
	assert.Contains(t, result, "info message")
}

func TestFormatKeyValue(t *testing.T) {
	result := FormatKeyValue("Separator", "-")
	assert.Contains(t, result, "Separator")
	assert.Contains(t, result, "-")
}

func TestFormatMapping(t *testing.T) {
	result := FormatMapping("SendEmailCommand", "-send-email-command")
	assert.Contains(t, result, "SendEmailCommand")
	assert.Contains(t, result, IconArrow)
	assert.Contains(t, result, "-send-email-command")
}

func TestDisableColors(t *testing.T) {
	originalPrimary := Primary
	originalSuccess := Success
	t.Cleanup(func() {
		Primary = originalPrimary
		Success = originalSuccess
		build()
	})

	DisableColors()

	assert.Equal(t, "", string(Primary))
	assert.Equal(t, "", string(Success))
}
