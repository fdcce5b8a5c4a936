package world

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// args reads loosely typed tool arguments. Decision layers send JSON, so
// numbers may arrive as float64, json.Number or strings.
type args map[string]any

func (a args) has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a args) str(key, def string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	switch s := v.(type) {
	case string:
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
		return def
	case fmt.Stringer:
		return s.String()
	}
	return def
}

// num reports false for values that are not numbers or are not finite.
func (a args) num(key string, def float64) (float64, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return def, true
	}
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return def, false
	}
	return f, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func (a args) integer(key string, def int) (int, bool) {
	f, ok := a.num(key, float64(def))
	return int(min(max(f, math.MinInt32), math.MaxInt32)), ok
}

func (a args) boolean(key string, def bool) bool {
	v, ok := a[key]
	if !ok || v == nil {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	case float64:
		return b != 0
	}
	return def
}

// clone copies the arguments so recorded diffs never alias caller maps.
// Non-finite floats are recorded as strings so the diff stays encodable.
func (a args) clone() map[string]any {
	if len(a) == 0 {
		return nil
	}
	out := make(map[string]any, len(a))
	for k, v := range a {
		switch f := v.(type) {
		case float64:
			if math.IsNaN(f) || math.IsInf(f, 0) {
				v = strconv.FormatFloat(f, 'g', -1, 64)
			}
		case float32:
			if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
				v = strconv.FormatFloat(float64(f), 'g', -1, 64)
			}
		case json.Number:
			if n, err := f.Float64(); err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				v = f.String()
			}
		}
		out[k] = v
	}
	return out
}

func fmtIndex(prefix string, i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", prefix, i, field)
}
