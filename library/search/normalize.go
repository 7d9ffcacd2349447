package search

import (
	"bytes"
	"encoding/json"

	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
)

// Normalize maps raw provider hits onto Results.
//
// Only the first num hits are considered and at most num-1 results are returned.
// titleKey, urlKey and summaryKey name the provider's fields. A missing or null
// field becomes its placeholder and a non-string value is kept as its JSON text.
// Only a hit that is not an object is skipped and logged.
func Normalize(logger logSDK.Logger, hits []json.RawMessage, num int, titleKey, urlKey, summaryKey string) []Result {
	if num > 0 && len(hits) > num {
		hits = hits[:num]
	}

	results := make([]Result, 0, len(hits))
	for idx, raw := range hits {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			warn(logger, "skip malformed search hit", idx)
			continue
		}

		results = append(results, Result{
			Title:   stringField(fields, titleKey, PlaceholderTitle),
			URL:     stringField(fields, urlKey, PlaceholderURL),
			Summary: stringField(fields, summaryKey, PlaceholderSummary),
		})
	}

	if limit := num - 1; limit >= 0 && len(results) > limit {
		results = results[:limit]
	}

	return results
}

// stringField reads key from fields, falling back to placeholder when it is absent or null.
func stringField(fields map[string]json.RawMessage, key, placeholder string) string {
	raw, exists := fields[key]
	if !exists || string(raw) == "null" {
		return placeholder
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		var compacted bytes.Buffer
		if err = json.Compact(&compacted, raw); err != nil {
			return string(raw)
		}
		return compacted.String()
	}
	return value
}

func warn(logger logSDK.Logger, msg string, idx int) {
	if logger == nil {
		return
	}
	logger.Warn(msg, zap.Int("index", idx))
}
