package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("llm.model", "llama3.2"))
	require.NoError(t, store.Set("llm.model", "gpt-4o-mini"))

	val, ok := store.Get("llm.model")
	assert.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_NewConfigStoreFrom(t *testing.T) {
	seed := map[string]any{"generation.max_retries": 4}
	store := NewConfigStoreFrom(seed)
	seed["generation.max_retries"] = 9

	assert.Equal(t, 4, store.GetInt("generation.max_retries"))
	assert.Equal(t, []string{"generation.max_retries"}, store.Keys())
}

func TestConfigStore_GetString(t *testing.T) {
	store := NewConfigStoreFrom(map[string]any{
		"s": "text",
		"b": true,
		"f": 1.5,
		"i": 3,
	})

	tests := []struct {
		key  string
		want string
	}{
		{"s", "text"},
		{"b", "true"},
		{"f", "1.5"},
		{"i", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, store.GetString(tt.key))
		})
	}
}

func TestConfigStore_GetInt(t *testing.T) {
	store := NewConfigStoreFrom(map[string]any{
		"int":     7,
		"int64":   int64(8),
		"float":   9.9,
		"string":  "10",
		"garbage": "ten",
		"bool":    true,
	})

	tests := []struct {
		key  string
		want int
	}{
		{"int", 7},
		{"int64", 8},
		{"float", 9},
		{"string", 10},
		{"garbage", 0},
		{"bool", 0},
		{"missing", 0},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, store.GetInt(tt.key))
		})
	}
}

func TestConfigStore_GetBool(t *testing.T) {
	store := NewConfigStoreFrom(map[string]any{
		"bool":   true,
		"string": "true",
		"bad":    "yes please",
		"int":    1,
	})

	assert.True(t, store.GetBool("bool"))
	assert.True(t, store.GetBool("string"))
	assert.False(t, store.GetBool("bad"))
	assert.False(t, store.GetBool("int"))
	assert.False(t, store.GetBool("missing"))
}

func TestConfigStore_GetStringSlice(t *testing.T) {
	original := []string{"a", "b"}
	store := NewConfigStoreFrom(map[string]any{
		"strings": original,
		"mixed":   []any{"x", 1, "y"},
		"scalar":  "z",
	})

	got := store.GetStringSlice("strings")
	assert.Equal(t, []string{"a", "b"}, got)
	got[0] = "changed"
	assert.Equal(t, "a", original[0])

	assert.Equal(t, []string{"x", "y"}, store.GetStringSlice("mixed"))
	assert.Nil(t, store.GetStringSlice("scalar"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_NoOpPersistence(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("key.%d", n)
			_ = store.Set(key, n)
			_ = store.GetInt(key)
			_ = store.Keys()
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.Keys(), 50)
}
