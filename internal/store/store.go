// Package store reads library items from a Firebase-style JSON tree: one
// root node whose children are items keyed by id.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("store: record not found")

// Record is one child of the root node.
type Record struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Query selects children of the root node. Results are ordered by the
// OrderBy child (or by key when empty); StartAt bounds that ordering from
// below and at most one of the limits should be set.
type Query struct {
	OrderBy      string
	StartAt      string
	LimitToFirst int
	LimitToLast  int
}

// Store is a read-only view of the items tree.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	Query(ctx context.Context, q Query) ([]Record, error)
}

// validKey reports whether key can address a child. Firebase forbids these
// characters in keys, so such lookups can never match.
func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, ".$#[]/")
}

// sortRecords orders records the way the database does for q.OrderBy.
func sortRecords(records []Record, orderBy string) {
	if orderBy == "" {
		sort.SliceStable(records, func(i, j int) bool { return records[i].Key < records[j].Key })
		return
	}
	children := make([]json.RawMessage, len(records))
	for i, r := range records {
		children[i] = childValue(r.Value, orderBy)
	}
	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if c := CompareValues(children[idx[a]], children[idx[b]]); c != 0 {
			return c < 0
		}
		return records[idx[a]].Key < records[idx[b]].Key
	})
	sorted := make([]Record, len(records))
	for i, k := range idx {
		sorted[i] = records[k]
	}
	copy(records, sorted)
}

// applyQuery filters and limits records already sorted for q.
func applyQuery(records []Record, q Query) []Record {
	if q.StartAt != "" {
		bound, _ := json.Marshal(q.StartAt)
		kept := records[:0:0]
		for _, r := range records {
			if q.OrderBy == "" {
				if r.Key >= q.StartAt {
					kept = append(kept, r)
				}
				continue
			}
			if CompareValues(childValue(r.Value, q.OrderBy), bound) >= 0 {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	if q.LimitToFirst > 0 && len(records) > q.LimitToFirst {
		records = records[:q.LimitToFirst]
	}
	if q.LimitToLast > 0 && len(records) > q.LimitToLast {
		records = records[len(records)-q.LimitToLast:]
	}
	return records
}

func childValue(value json.RawMessage, name string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil {
		return nil
	}
	return obj[name]
}

func valueRank(v json.RawMessage) int {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return 0
	}
	switch v[0] {
	case 'f':
		return 1
	case 't':
		return 2
	case '"':
		return 4
	case '{', '[':
		return 5
	default:
		return 3
	}
}

// CompareValues orders two JSON values the way the database orders child
// values: missing or null, false, true, numbers, strings, then objects.
func CompareValues(a, b json.RawMessage) int {
	ra, rb := valueRank(a), valueRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 3:
		var fa, fb float64
		_ = json.Unmarshal(a, &fa)
		_ = json.Unmarshal(b, &fb)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	case 4:
		var sa, sb string
		_ = json.Unmarshal(a, &sa)
		_ = json.Unmarshal(b, &sb)
		return strings.Compare(sa, sb)
	}
	return 0
}
