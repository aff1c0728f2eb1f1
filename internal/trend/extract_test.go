package trend

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func decodePage(t *testing.T, payload string) *Page {
	t.Helper()
	var page Page
	if err := json.Unmarshal([]byte(payload), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	return &page
}

func TestPageUnmarshalSplitsMetadata(t *testing.T) {
	page := decodePage(t, `{
		"$base": "Sequence",
		"$next": "/next-page",
		"1": {"timestamp": {"value": "2025-07-11T10:00:00"}, "logDatum": {"real-value": {"value": 71.5}}},
		"junk": "not-an-object"
	}`)

	if page.Base != "Sequence" {
		t.Fatalf("base not captured: %q", page.Base)
	}
	if page.Next != "/next-page" {
		t.Fatalf("next not captured: %q", page.Next)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(page.Entries))
	}
}

func TestExtractWellFormedAmongMalformed(t *testing.T) {
	// 3 well-formed records among 4 malformed variants must yield
	// exactly 3 samples, never an error.
	page := decodePage(t, `{
		"$next": "",
		"1": {"timestamp": {"value": "2025-07-11T10:00:00"}, "logDatum": {"real-value": {"value": 70.0}}},
		"2": {"timestamp": {"value": "2025-07-11T10:05:00"}, "logDatum": {"real-value": {"value": "71.25"}}},
		"3": {"timestamp": {"value": "2025-07-11T10:10:00"}, "logDatum": {"unsigned-value": {"value": 72}}},
		"4": {"logDatum": {"real-value": {"value": 99.0}}},
		"5": {"timestamp": {"value": "2025-07-11T10:20:00"}},
		"6": {"timestamp": {"value": "2025-07-11T10:25:00"}, "logDatum": {"log-status": {"value": "buffer-purged"}}},
		"7": {"timestamp": {"value": "2025-07-11T10:30:00"}, "logDatum": {"string-value": {"value": "hello"}}}
	}`)

	samples := ExtractSamples(page, zerolog.Nop())
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d: %#v", len(samples), samples)
	}
}

func TestExtractPrefersRealValue(t *testing.T) {
	page := decodePage(t, `{
		"1": {"timestamp": {"value": "2025-07-11T10:00:00"}, "logDatum": {
			"unsigned-value": {"value": 5},
			"real-value": {"value": 71.5}
		}}
	}`)

	samples := ExtractSamples(page, zerolog.Nop())
	if len(samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(samples))
	}
	if samples[0].Value != 71.5 {
		t.Fatalf("real-value should win: got %v", samples[0].Value)
	}
}

func TestExtractBooleanVariant(t *testing.T) {
	page := decodePage(t, `{
		"1": {"timestamp": {"value": "2025-07-11T10:00:00"}, "logDatum": {"boolean-value": {"value": true}}}
	}`)

	samples := ExtractSamples(page, zerolog.Nop())
	if len(samples) != 1 || samples[0].Value != 1 {
		t.Fatalf("boolean true should coerce to 1: %#v", samples)
	}
}

func TestExtractUnknownTagFallback(t *testing.T) {
	page := decodePage(t, `{
		"1": {"timestamp": {"value": "2025-07-11T10:00:00"}, "logDatum": {"mystery-value": {"value": 42.5}}}
	}`)

	samples := ExtractSamples(page, zerolog.Nop())
	if len(samples) != 1 || samples[0].Value != 42.5 {
		t.Fatalf("generic scan should pick up unknown tags: %#v", samples)
	}
}

func TestExtractStatusOnlyRowsSkipped(t *testing.T) {
	page := decodePage(t, `{
		"1": {"timestamp": {"value": "2025-07-11T10:00:00"}, "logDatum": {
			"log-status": {"value": "log-interrupted"},
			"event-state": {"value": "normal"}
		}}
	}`)

	if samples := ExtractSamples(page, zerolog.Nop()); len(samples) != 0 {
		t.Fatalf("status-only row must be skipped: %#v", samples)
	}
}

func TestExtractDeterministicOrder(t *testing.T) {
	payload := `{
		"10": {"timestamp": {"value": "2025-07-11T10:10:00"}, "logDatum": {"real-value": {"value": 2}}},
		"01": {"timestamp": {"value": "2025-07-11T10:00:00"}, "logDatum": {"real-value": {"value": 1}}},
		"05": {"timestamp": {"value": "2025-07-11T10:05:00"}, "logDatum": {"real-value": {"value": 3}}}
	}`

	first := ExtractSamples(decodePage(t, payload), zerolog.Nop())
	second := ExtractSamples(decodePage(t, payload), zerolog.Nop())
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 samples each run")
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("extraction order must be deterministic")
		}
	}
}

func TestCoerceFloatVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`71.5`, 71.5, true},
		{`"71.5"`, 71.5, true},
		{`"  not numeric"`, 0, false},
		{`true`, 1, true},
		{`false`, 0, true},
		{`{"nested": 1}`, 0, false},
	}

	for _, tc := range cases {
		got, ok := coerceFloat(json.RawMessage(tc.raw))
		if ok != tc.ok || got != tc.want {
			t.Fatalf("coerceFloat(%s) = (%v, %v), want (%v, %v)", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}
