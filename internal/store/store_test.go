package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(records []Record) []string {
	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	return keys
}

func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	m := NewMemoryStore()
	items := map[string]any{
		"comic_a":  map[string]any{"name": "A", "createdAt": "2024-01-03", "views": 5},
		"comic_b":  map[string]any{"name": "B", "createdAt": "2024-01-01", "views": 50},
		"ebook_c":  map[string]any{"name": "C", "createdAt": "2024-01-02"},
		"ebook_d":  map[string]any{"name": "D", "createdAt": "2024-01-02", "views": true},
		"scalar_e": "not an object",
	}
	for k, v := range items {
		require.NoError(t, m.Put(k, v))
	}
	return m
}

func TestMemoryStore_Get(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)

	rec, err := m.Get(ctx, "comic_a")
	require.NoError(t, err)
	assert.Equal(t, "comic_a", rec.Key)
	assert.JSONEq(t, `{"name":"A","createdAt":"2024-01-03","views":5}`, string(rec.Value))

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get(ctx, "a/b")
	assert.ErrorIs(t, err, ErrNotFound)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.Get(cancelled, "comic_a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	m := seededStore(t)

	tests := []struct {
		name string
		q    Query
		want []string
	}{
		{"by key", Query{}, []string{"comic_a", "comic_b", "ebook_c", "ebook_d", "scalar_e"}},
		{"by key from start", Query{StartAt: "ebook_"}, []string{"ebook_c", "ebook_d", "scalar_e"}},
		{"by key first two", Query{LimitToFirst: 2}, []string{"comic_a", "comic_b"}},
		{
			"by child, missing values first, ties by key",
			Query{OrderBy: "createdAt"},
			[]string{"scalar_e", "comic_b", "ebook_c", "ebook_d", "comic_a"},
		},
		{"by child last two", Query{OrderBy: "createdAt", LimitToLast: 2}, []string{"ebook_d", "comic_a"}},
		{"by child start at", Query{OrderBy: "createdAt", StartAt: "2024-01-02"}, []string{"ebook_c", "ebook_d", "comic_a"}},
		{
			"mixed types rank booleans before numbers",
			Query{OrderBy: "views"},
			[]string{"ebook_c", "scalar_e", "ebook_d", "comic_a", "comic_b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Query(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, keysOf(got))
		})
	}
}

func TestLoadMemoryStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ebook_x":{"name":"X"},"comic_y":{"name":"Y"}}`), 0o644))

	m, err := LoadMemoryStore(path)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	rec, err := m.Get(context.Background(), "ebook_x")
	require.NoError(t, err)
	var item map[string]string
	require.NoError(t, json.Unmarshal(rec.Value, &item))
	assert.Equal(t, "X", item["name"])

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[1,2]`), 0o644))
	_, err = LoadMemoryStore(bad)
	assert.Error(t, err)

	_, err = LoadMemoryStore(filepath.Join(dir, "none.json"))
	assert.Error(t, err)
}

func TestCompareValues(t *testing.T) {
	raw := func(s string) json.RawMessage { return json.RawMessage(s) }
	assert.Negative(t, CompareValues(nil, raw(`false`)))
	assert.Negative(t, CompareValues(raw(`false`), raw(`true`)))
	assert.Negative(t, CompareValues(raw(`true`), raw(`-3`)))
	assert.Negative(t, CompareValues(raw(`2`), raw(`10`)))
	assert.Negative(t, CompareValues(raw(`10`), raw(`"1"`)))
	assert.Negative(t, CompareValues(raw(`"a"`), raw(`"b"`)))
	assert.Negative(t, CompareValues(raw(`"z"`), raw(`{}`)))
	assert.Zero(t, CompareValues(raw(`null`), nil))
	assert.Zero(t, CompareValues(raw(`1.0`), raw(`1`)))
}
