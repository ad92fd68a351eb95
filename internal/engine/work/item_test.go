package work

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_Valid(t *testing.T) {
	tests := []struct {
		kind  Kind
		valid bool
	}{
		{KindCreate, true},
		{KindRead, true},
		{KindUpdate, true},
		{KindDelete, true},
		{Kind("patch"), false},
		{Kind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.kind.Valid())
		})
	}
}

func TestKind_Cacheable(t *testing.T) {
	assert.True(t, KindRead.Cacheable())
	assert.False(t, KindCreate.Cacheable())
	assert.False(t, KindUpdate.Cacheable())
	assert.False(t, KindDelete.Cacheable())
}

func TestItem_Signature(t *testing.T) {
	t.Run("structural equality", func(t *testing.T) {
		a := Item{Kind: KindUpdate, Key: "user-1", Payload: map[string]any{"name": "x", "age": 3}}
		b := Item{Kind: KindUpdate, Key: "user-1", Payload: map[string]any{"age": 3, "name": "x"}}
		assert.Equal(t, a.Signature(), b.Signature())
	})

	t.Run("payload differences matter", func(t *testing.T) {
		a := Item{Kind: KindUpdate, Key: "user-1", Payload: map[string]any{"name": "x"}}
		b := Item{Kind: KindUpdate, Key: "user-1", Payload: map[string]any{"name": "y"}}
		assert.NotEqual(t, a.Signature(), b.Signature())
	})

	t.Run("kind and key matter", func(t *testing.T) {
		a := Item{Kind: KindRead, Key: "user-1"}
		b := Item{Kind: KindDelete, Key: "user-1"}
		c := Item{Kind: KindRead, Key: "user-2"}
		assert.NotEqual(t, a.Signature(), b.Signature())
		assert.NotEqual(t, a.Signature(), c.Signature())
	})

	t.Run("nested payloads", func(t *testing.T) {
		a := Item{Kind: KindCreate, Key: "k", Payload: map[string]any{"meta": map[string]any{"a": 1, "b": 2}}}
		b := Item{Kind: KindCreate, Key: "k", Payload: map[string]any{"meta": map[string]any{"b": 2, "a": 1}}}
		assert.Equal(t, a.Signature(), b.Signature())
	})
}

func TestItem_CacheKey(t *testing.T) {
	// Reads of the same remote key share a cache slot regardless of payload.
	a := Item{Kind: KindRead, Key: "user-1", Payload: map[string]any{"fields": "all"}}
	b := Item{Kind: KindRead, Key: "user-1"}
	assert.Equal(t, a.CacheKey(), b.CacheKey())

	c := Item{Kind: KindDelete, Key: "user-1"}
	assert.NotEqual(t, a.CacheKey(), c.CacheKey())
}
