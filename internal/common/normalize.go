package common

import (
	"encoding/json"
	"strings"
)

// fallbackText is used when nothing displayable can be extracted from a
// malformed title or message.
const fallbackText = "Notification"

// Text coerces a raw JSON value into a display string. The server contract
// says title and message are strings, but in practice nested objects arrive;
// this is the single normalization point so everything downstream can assume
// plain strings. Extraction order: string as-is, then the object's title,
// message or name field, then the raw JSON, then a placeholder.
func Text(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"title", "message", "name"} {
			if v, ok := obj[key].(string); ok && v != "" {
				return v
			}
		}
		if len(obj) == 0 {
			return fallbackText
		}
		return trimmed
	}

	// Numbers, booleans and arrays stringify verbatim.
	return trimmed
}

// UnmarshalJSON decodes a notification while normalizing the two untrusted
// text fields and restoring the readAt-iff-read invariant.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type alias Notification
	aux := struct {
		*alias
		Title   json.RawMessage `json:"title"`
		Message json.RawMessage `json:"message"`
	}{alias: (*alias)(n)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	n.Title = Text(aux.Title)
	n.Message = Text(aux.Message)

	if !n.Read {
		n.ReadAt = nil
	} else if n.ReadAt == nil {
		// Server marked it read without a timestamp; best effort.
		t := n.CreatedAt
		n.ReadAt = &t
	}
	return nil
}
