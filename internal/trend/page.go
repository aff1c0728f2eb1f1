package trend

import (
	"encoding/json"
)

const (
	metaBaseKey = "$base"
	metaNextKey = "$next"
)

// LogEntry is one row of a log-buffer page as the gateway encodes it:
// a timestamp envelope plus a map of typed value containers.
type LogEntry struct {
	Timestamp *ValueEnvelope             `json:"timestamp"`
	LogDatum  map[string]json.RawMessage `json:"logDatum"`
}

// ValueEnvelope wraps the gateway's {"value": ...} encoding.
type ValueEnvelope struct {
	Value string `json:"value"`
}

// Page is one log-buffer fetch response. Record keys are opaque
// identifiers assigned by the gateway; $base and $next are metadata.
type Page struct {
	Base    string
	Next    string
	Entries map[string]LogEntry
}

// UnmarshalJSON splits metadata keys from record entries. Values that
// are not JSON objects are dropped, matching the upstream format where
// only record bodies are objects.
func (p *Page) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	p.Entries = make(map[string]LogEntry, len(raw))
	for key, blob := range raw {
		switch key {
		case metaBaseKey:
			_ = json.Unmarshal(blob, &p.Base)
			continue
		case metaNextKey:
			_ = json.Unmarshal(blob, &p.Next)
			continue
		}

		if len(blob) == 0 || blob[0] != '{' {
			continue
		}

		var entry LogEntry
		if err := json.Unmarshal(blob, &entry); err != nil {
			continue
		}
		p.Entries[key] = entry
	}

	return nil
}
