package destination

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// maxDetailChars bounds the JSON blob embedded in synthesized chat messages
const maxDetailChars = 1000

// message is a decoded payload; non-object payloads decode to nil
type message map[string]any

func decode(payload json.RawMessage) message {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil
	}
	return m
}

func (m message) has(keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// setDefault injects a configured value unless the payload already carries one
func (m message) setDefault(key, value string) {
	if value == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}

// summary is the one-line headline of a synthesized message
func summary(payload json.RawMessage) string {
	m := decode(payload)
	for _, k := range []string{"type", "event", "event_type", "action", "name"} {
		if s, ok := m[k].(string); ok && s != "" {
			return fmt.Sprintf("Webhook event received: %s", s)
		}
	}
	return "Webhook event received"
}

// detail is the indented payload, cut to maxDetailChars
func detail(payload json.RawMessage) string {
	var v any
	text := string(payload)
	if err := json.Unmarshal(payload, &v); err == nil {
		if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
			text = string(pretty)
		}
	}
	return truncate(text, maxDetailChars)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
