package trend

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
)

// RawSample is an extracted but not yet normalized measurement.
type RawSample struct {
	Timestamp string
	Value     float64
}

// statusTags mark logger state-change rows (buffer purged, log
// interruption, event transitions) rather than measurements.
var statusTags = map[string]bool{
	"log-status":   true,
	"event-state":  true,
	"string-value": true,
}

// numericTags are the known logDatum variants that carry a numeric
// measurement, in preference order. The trend logs we bridge record
// analog inputs, so real-value dominates in practice.
var numericTags = []string{
	"real-value",
	"unsigned-value",
	"signed-value",
	"boolean-value",
}

// ExtractSamples walks every record entry of a page and returns one raw
// sample per well-formed row. Malformed rows are skipped, never an
// error: a single bad record must not poison the batch.
func ExtractSamples(page *Page, logger zerolog.Logger) []RawSample {
	if page == nil || len(page.Entries) == 0 {
		return nil
	}

	keys := make([]string, 0, len(page.Entries))
	for key := range page.Entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	samples := make([]RawSample, 0, len(keys))
	for _, key := range keys {
		entry := page.Entries[key]
		if entry.Timestamp == nil || entry.Timestamp.Value == "" {
			logger.Debug().Str("record", key).Msg("skip record without timestamp")
			continue
		}

		value, ok := extractNumericLeaf(entry.LogDatum, key, logger)
		if !ok {
			continue
		}

		samples = append(samples, RawSample{
			Timestamp: entry.Timestamp.Value,
			Value:     value,
		})
	}

	return samples
}

// extractNumericLeaf finds the first convertible value container in a
// logDatum map. Known numeric tags are tried in preference order, then
// any remaining container in sorted-key order. Rows exposing only
// status markers have no numeric leaf and report a skip.
func extractNumericLeaf(datum map[string]json.RawMessage, record string, logger zerolog.Logger) (float64, bool) {
	if len(datum) == 0 {
		logger.Debug().Str("record", record).Msg("skip record without logDatum")
		return 0, false
	}

	for _, tag := range numericTags {
		blob, ok := datum[tag]
		if !ok {
			continue
		}
		if value, ok := decodeValueContainer(blob); ok {
			return value, true
		}
	}

	tags := make([]string, 0, len(datum))
	for tag := range datum {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	for _, tag := range tags {
		if statusTags[tag] || knownNumericTag(tag) {
			continue
		}
		logger.Debug().Str("record", record).Str("tag", tag).Msg("unknown logDatum tag, attempting generic decode")
		if value, ok := decodeValueContainer(datum[tag]); ok {
			return value, true
		}
	}

	logger.Debug().Str("record", record).Strs("tags", tags).Msg("skip record without numeric leaf")
	return 0, false
}

func knownNumericTag(tag string) bool {
	for _, known := range numericTags {
		if tag == known {
			return true
		}
	}
	return false
}

// decodeValueContainer decodes a {"value": ...} container whose inner
// value may arrive as a JSON number, a numeric string, or a boolean.
func decodeValueContainer(blob json.RawMessage) (float64, bool) {
	var container struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(blob, &container); err != nil || len(container.Value) == 0 {
		return 0, false
	}
	return coerceFloat(container.Value)
}

func coerceFloat(raw json.RawMessage) (float64, bool) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		parsed, parseErr := strconv.ParseFloat(text, 64)
		if parseErr != nil {
			return 0, false
		}
		return parsed, true
	}

	var truth bool
	if err := json.Unmarshal(raw, &truth); err == nil {
		if truth {
			return 1, true
		}
		return 0, true
	}

	return 0, false
}
