package mapper

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Shapes a timestamp may take on the wire, checked in this order:
// an object converting itself to a time, a native time, an epoch-seconds object, then anything
// generic date parsing understands (strings, epoch milliseconds).
type (
	asTimer interface{ AsTime() time.Time }
	toDater interface{ ToDate() time.Time }
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ToTime normalizes a wire timestamp to a UTC time. ok is false when v is absent or not a timestamp.
func ToTime(v any) (t time.Time, ok bool) {
	switch tv := v.(type) {
	case nil:
		return time.Time{}, false
	case asTimer:
		return tv.AsTime().UTC(), true
	case toDater:
		return tv.ToDate().UTC(), true
	case time.Time:
		return tv.UTC(), true
	case *time.Time:
		if tv == nil {
			return time.Time{}, false
		}
		return tv.UTC(), true
	case map[string]any:
		return fromSecondsObject(tv)
	case string:
		return parseDate(tv)
	}
	if ms, ok := number(v); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return time.Time{}, false
}

func fromSecondsObject(m map[string]any) (time.Time, bool) {
	raw, present := m["seconds"]
	if !present {
		// Some encoders emit the underscored form.
		raw, present = m["_seconds"]
	}
	if !present {
		return time.Time{}, false
	}
	secs, ok := number(raw)
	if !ok || secs != math.Trunc(secs) {
		return time.Time{}, false
	}
	var nanos float64
	for _, key := range []string{"nanoseconds", "nanos", "_nanoseconds"} {
		if n, ok := number(m[key]); ok {
			nanos = n
			break
		}
	}
	return time.Unix(int64(secs), int64(nanos)).UTC(), true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
