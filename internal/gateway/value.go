package gateway

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Value is a loosely typed present-value payload. The gateway encodes
// the same property as a bare number, a quoted number, a state text,
// or a Choice object wrapping an enumerated value depending on the
// object type and firmware, so decoding is performed on demand.
type Value struct {
	raw json.RawMessage
}

// ValueFromRaw wraps an already-decoded payload, mainly for fixtures.
func ValueFromRaw(raw json.RawMessage) Value { return Value{raw: raw} }

// IsZero reports an absent value.
func (v Value) IsZero() bool { return len(v.raw) == 0 }

// Float coerces the value to a float64 when possible.
func (v Value) Float() (float64, bool) {
	if v.IsZero() {
		return 0, false
	}

	var number float64
	if err := json.Unmarshal(v.raw, &number); err == nil {
		return number, true
	}

	var text string
	if err := json.Unmarshal(v.raw, &text); err == nil {
		parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if parseErr != nil {
			return 0, false
		}
		return parsed, true
	}

	if inner, ok := v.enumerated(); ok {
		return inner.Float()
	}
	return 0, false
}

// Int coerces the value to an integer, unwrapping the Choice form.
func (v Value) Int() (int, bool) {
	f, ok := v.Float()
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Truthy interprets binary-point encodings: active/on/true/1 are true,
// everything else false.
func (v Value) Truthy() bool {
	switch strings.ToLower(v.Text()) {
	case "active", "on", "true", "1":
		return true
	}
	return false
}

// Text renders the value as a plain string.
func (v Value) Text() string {
	if v.IsZero() {
		return ""
	}

	var text string
	if err := json.Unmarshal(v.raw, &text); err == nil {
		return text
	}

	var number float64
	if err := json.Unmarshal(v.raw, &number); err == nil {
		return strconv.FormatFloat(number, 'f', -1, 64)
	}

	var truth bool
	if err := json.Unmarshal(v.raw, &truth); err == nil {
		return strconv.FormatBool(truth)
	}

	if inner, ok := v.enumerated(); ok {
		return inner.Text()
	}
	return strings.TrimSpace(string(v.raw))
}

// Raw exposes the undecoded payload, for the debug endpoint.
func (v Value) Raw() json.RawMessage { return v.raw }

func (v Value) enumerated() (Value, bool) {
	var choice struct {
		Enumerated struct {
			Value json.RawMessage `json:"value"`
		} `json:"enumerated"`
	}
	if err := json.Unmarshal(v.raw, &choice); err != nil || len(choice.Enumerated.Value) == 0 {
		return Value{}, false
	}
	return Value{raw: choice.Enumerated.Value}, true
}
