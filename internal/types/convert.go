package types

import (
	"fmt"
	"strconv"
)

// KeyOf normalises a primary or foreign key value into a comparable string so
// that int64 from the driver, []byte from a text column and an int literal
// supplied by a caller all match. Nil yields "".
func KeyOf(v any) string {
	switch i := v.(type) {
	case nil:
		return ""
	case string:
		return i
	case []byte:
		return string(i)
	case int64:
		return strconv.FormatInt(i, 10)
	case int:
		return strconv.FormatInt(int64(i), 10)
	case int32:
		return strconv.FormatInt(int64(i), 10)
	case int16:
		return strconv.FormatInt(int64(i), 10)
	case int8:
		return strconv.FormatInt(int64(i), 10)
	case uint:
		return strconv.FormatUint(uint64(i), 10)
	case uint64:
		return strconv.FormatUint(i, 10)
	case uint32:
		return strconv.FormatUint(uint64(i), 10)
	case uint16:
		return strconv.FormatUint(uint64(i), 10)
	case uint8:
		return strconv.FormatUint(uint64(i), 10)
	case float64:
		return strconv.FormatFloat(i, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(i), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// IsEmptyKey reports whether a key value cannot identify a row.
func IsEmptyKey(v any) bool {
	return KeyOf(v) == ""
}

// UniqueKeys drops nil and duplicate keys, keeping first occurrence order.
func UniqueKeys(keys []any) []any {
	seen := make(map[string]bool, len(keys))
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		s := KeyOf(k)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, k)
	}
	return out
}

// normalizeValue converts driver values into plain Go values for rows.
// The MySQL driver returns text columns as []byte.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
