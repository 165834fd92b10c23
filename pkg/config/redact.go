package config

import (
	"encoding/json"
	"strings"
)

// Redacted replaces sensitive values in diagnostics output.
const Redacted = "**REDACTED**"

var redactKeys = map[string]struct{}{
	"password":   {},
	"username":   {},
	"apitoken":   {},
	"api_secret": {},
	"api_key_v2": {},
	"api_key":    {},
	"user_email": {},
}

// Redact returns a copy of v with sensitive keys masked at any depth. Structs
// are converted through their JSON form first, so the result is made of maps,
// slices and scalars.
func Redact(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil
	}
	return redactValue(generic)
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if _, sensitive := redactKeys[strings.ToLower(k)]; sensitive {
				out[k] = Redacted
				continue
			}
			out[k] = redactValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = redactValue(val)
		}
		return out
	}
	return v
}
