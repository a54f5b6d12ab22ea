package normalize

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
	"github.com/Hrushikesh9921/AIStockAnalyser/pkg/utils"
)

// kiteTimeLayouts are the timestamp shapes Kite emits. Zone-less values
// are exchange time (IST).
var kiteTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// record reads fields from one decoded provider object. It remembers which
// keys were consumed so the rest can be kept as extensions, and it keeps
// the first mapping failure so callers check once at the end.
type record struct {
	entity string
	name   string
	m      map[string]any
	used   map[string]bool
	err    error
}

func newRecord(entity string, m map[string]any) *record {
	return &record{entity: entity, m: m, used: make(map[string]bool, len(m))}
}

func asRecord(entity string, v any) (*record, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.NewSchemaError(entity, "", "expected an object, got "+typeName(v))
	}
	return newRecord(entity, m), nil
}

func (r *record) fail(field, reason string) {
	if r.err == nil {
		r.err = apperrors.NewSchemaError(r.entity, field, reason)
	}
}

// lookup returns the value at key, treating JSON null as absent.
func (r *record) lookup(key string) (any, bool) {
	r.used[key] = true
	v, ok := r.m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (r *record) has(key string) bool {
	v, ok := r.m[key]
	return ok && v != nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func (r *record) float(key string, required bool) float64 {
	v, ok := r.lookup(key)
	if !ok {
		if required {
			r.fail(key, "required field missing")
		}
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		r.fail(key, "expected a number, got "+typeName(v))
	}
	return f
}

func (r *record) reqFloat(key string) float64 { return r.float(key, true) }
func (r *record) optFloat(key string) float64 { return r.float(key, false) }

func (r *record) optInt64(key string) int64 { return int64(r.float(key, false)) }

func (r *record) optInt(key string) int { return int(r.float(key, false)) }

func (r *record) optUint32(key string) uint32 {
	f := r.float(key, false)
	if f < 0 || f > float64(^uint32(0)) {
		r.fail(key, "value out of range for an instrument token")
		return 0
	}
	return uint32(f)
}

func (r *record) str(key string, required bool) string {
	v, ok := r.lookup(key)
	if !ok {
		if required {
			r.fail(key, "required field missing")
		}
		return ""
	}
	switch s := v.(type) {
	case string:
		if required && s == "" {
			r.fail(key, "required field is empty")
		}
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	r.fail(key, "expected a string, got "+typeName(v))
	return ""
}

func (r *record) reqStr(key string) string { return r.str(key, true) }
func (r *record) optStr(key string) string { return r.str(key, false) }

func (r *record) optBool(key string) bool {
	v, ok := r.lookup(key)
	if !ok {
		return false
	}
	b, isBool := v.(bool)
	if !isBool {
		r.fail(key, "expected a bool, got "+typeName(v))
	}
	return b
}

func (r *record) obj(key string, required bool) *record {
	v, ok := r.lookup(key)
	if !ok {
		if required {
			r.fail(key, "required field missing")
		}
		return nil
	}
	m, isObj := v.(map[string]any)
	if !isObj {
		r.fail(key, "expected an object, got "+typeName(v))
		return nil
	}
	sub := newRecord(r.entity+"."+key, m)
	sub.name = key
	return sub
}

func (r *record) arr(key string) []any {
	v, ok := r.lookup(key)
	if !ok {
		return nil
	}
	a, isArr := v.([]any)
	if !isArr {
		r.fail(key, "expected an array, got "+typeName(v))
	}
	return a
}

// kiteTime parses a Kite timestamp; absent or empty values are the zero time.
func (r *record) kiteTime(key string) time.Time {
	v, ok := r.lookup(key)
	if !ok {
		return time.Time{}
	}
	s, isStr := v.(string)
	if !isStr {
		r.fail(key, "expected a timestamp string, got "+typeName(v))
		return time.Time{}
	}
	if s == "" {
		return time.Time{}
	}
	t, err := parseKiteTime(s)
	if err != nil {
		r.fail(key, err.Error())
	}
	return t
}

// unixTime reads epoch seconds.
func (r *record) unixTime(key string) time.Time {
	v, ok := r.lookup(key)
	if !ok {
		return time.Time{}
	}
	f, isNum := toFloat(v)
	if !isNum {
		r.fail(key, "expected epoch seconds, got "+typeName(v))
		return time.Time{}
	}
	return time.Unix(int64(f), 0).In(utils.IndiaLocation)
}

func parseKiteTime(s string) (time.Time, error) {
	for _, layout := range kiteTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, utils.IndiaLocation); err == nil {
			return t.In(utils.IndiaLocation), nil
		}
	}
	return time.Time{}, apperrors.NewSchemaError("time", "", "unrecognised timestamp "+strconv.Quote(s))
}

// extensions returns the keys no mapper consumed, or nil. Unconsumed keys
// of the given sub-records are kept as "<key>.<subkey>".
func (r *record) extensions(subs ...*record) map[string]any {
	var ext map[string]any
	put := func(k string, v any) {
		if ext == nil {
			ext = make(map[string]any)
		}
		ext[k] = v
	}
	for k, v := range r.m {
		if !r.used[k] {
			put(k, v)
		}
	}
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		for k, v := range sub.extensions() {
			put(sub.name+"."+k, v)
		}
	}
	return ext
}

// touch marks keys as consumed without reading them.
func (r *record) touch(keys ...string) {
	for _, k := range keys {
		r.used[k] = true
	}
}

// Err returns the first mapping failure, including those of sub-records.
func (r *record) Err(subs ...*record) error {
	if r.err != nil {
		return r.err
	}
	for _, s := range subs {
		if s != nil && s.err != nil {
			return s.err
		}
	}
	return nil
}
