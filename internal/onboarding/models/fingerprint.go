package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const fingerprintDateFormat = "2006-01-02"

// Fingerprint serializes identification attributes into a canonical form used
// to find a resumable in-flight process. Keys are emitted in sorted order at
// every nesting level, time values collapse to a date, and absent maps
// fingerprint as the empty object, so semantically identical payloads always
// produce the same string.
func Fingerprint(identification map[string]any) (string, error) {
	data, err := json.Marshal(canonicalize(identification))
	if err != nil {
		return "", fmt.Errorf("serialize identification data: %w", err)
	}
	return string(data), nil
}

// canonicalize walks the value normalizing representations that JSON
// marshaling alone would leave unstable.
func canonicalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(fingerprintDateFormat)
	case map[string]any:
		if val == nil {
			return map[string]any{}
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = canonicalize(item)
		}
		return sortedMap(out)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return val
	}
}

// sortedMap wraps a map so it marshals with deterministic key order.
// encoding/json sorts map keys already; the explicit ordering keeps the
// canonical form independent of that implementation detail.
type sortedMap map[string]any

func (m sortedMap) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valJSON, err := json.Marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}
	return append(buf, '}'), nil
}
