package types

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// LoadStats describes the relation loading done for one finder call.
type LoadStats struct {
	Relations int           // Relationships resolved
	Queries   int           // Relationship queries issued
	Related   int64         // Related rows attached
	Duration  time.Duration // Time spent resolving relations
}

// Result is the outcome of a finder call: either keyed by primary key or a
// plain ordered sequence.
type Result struct {
	rows  []*Row
	index *orderedmap.OrderedMap[string, *Row]
	Stats LoadStats
}

// NewResult returns an unindexed result over rows.
func NewResult(rows []*Row) *Result {
	return &Result{rows: rows}
}

// Reindex keys rows by their primary key field in input order. When any row
// lacks the key or two rows share it (typical after a manual join) the
// result falls back to the original sequence.
func Reindex(rows []*Row, primaryKey string) *Result {
	index := orderedmap.NewOrderedMap[string, *Row]()
	for _, row := range rows {
		if row == nil {
			return NewResult(rows)
		}
		key := KeyOf(row.Value(primaryKey))
		if key == "" {
			return NewResult(rows)
		}
		if _, exists := index.Get(key); exists {
			return NewResult(rows)
		}
		index.Set(key, row)
	}
	return &Result{rows: rows, index: index}
}

// Rows returns the rows in order.
func (r *Result) Rows() []*Row {
	if r == nil {
		return nil
	}
	return r.rows
}

// Len returns the number of rows.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

// Reindexed reports whether the result is keyed by primary key.
func (r *Result) Reindexed() bool {
	return r != nil && r.index != nil
}

// Keys returns the primary keys of a reindexed result, or nil.
func (r *Result) Keys() []string {
	if !r.Reindexed() {
		return nil
	}
	return r.index.Keys()
}

// Lookup finds a row by primary key. It scans when the result is not reindexed.
func (r *Result) Lookup(key any, primaryKey string) (*Row, bool) {
	if r == nil {
		return nil, false
	}
	k := KeyOf(key)
	if r.index != nil {
		return r.index.Get(k)
	}
	for _, row := range r.rows {
		if row != nil && KeyOf(row.Value(primaryKey)) == k {
			return row, true
		}
	}
	return nil, false
}

// First returns the first row, or nil.
func (r *Result) First() *Row {
	if r.Len() == 0 {
		return nil
	}
	return r.rows[0]
}

// MarshalJSON encodes a reindexed result as an object keyed by primary key and
// any other result as an array.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	if r.index == nil {
		out := make([]any, len(r.rows))
		for i, row := range r.rows {
			out[i] = exportValue(row)
		}
		return json.Marshal(out)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for el := r.index.Front(); el != nil; el = el.Next() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(el.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(exportValue(el.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
		i++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
