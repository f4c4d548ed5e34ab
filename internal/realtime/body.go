package realtime

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"muhabet/internal/models"
)

// coerceBody turns any JSON value into the text a client meant to send.
// Strings are taken as-is, null or a missing value is empty, anything else is its JSON text.
func coerceBody(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// validateBody trims the body and returns a rejection reason when it is not acceptable.
func validateBody(body string) (string, string) {
	trimmed := strings.TrimSpace(body)
	switch {
	case trimmed == "":
		return "", ReasonEmptyBody
	case utf8.RuneCountInString(trimmed) > models.MaxBodyLength:
		return "", ReasonBodyTooLong
	}
	return trimmed, ""
}
