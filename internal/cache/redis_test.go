package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHashKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
	}{
		{
			name:  "single part",
			parts: []string{"test"},
		},
		{
			name:  "multiple parts",
			parts: []string{"recommendations", "ana", "2024-06-03"},
		},
		{
			name:  "empty parts",
			parts: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed1 := HashKey(tt.parts...)
			hashed2 := HashKey(tt.parts...)

			if hashed1 != hashed2 {
				t.Errorf("HashKey() should be consistent, got %s and %s", hashed1, hashed2)
			}
			if len(hashed1) != 32 {
				t.Errorf("HashKey() should return 32 character hex string, got length %d", len(hashed1))
			}
		})
	}

	if HashKey("ab", "c") == HashKey("a", "bc") {
		t.Errorf("HashKey() must keep part boundaries")
	}
}

func TestCache_NamespaceKey(t *testing.T) {
	cache := &Cache{}

	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{
			name:     "simple key",
			key:      "test",
			expected: "planner:test",
		},
		{
			name:     "key with colon",
			key:      "rec:ana",
			expected: "planner:rec:ana",
		},
		{
			name:     "empty key",
			key:      "",
			expected: "planner:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := cache.namespaceKey(tt.key)
			if result != tt.expected {
				t.Errorf("namespaceKey() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestNilCacheIsDisabled(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Get() error = %v", err)
	}
	if err := c.SetJSON(ctx, "k", map[string]int{"a": 1}, time.Minute); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("SetJSON() error = %v", err)
	}
	var out map[string]int
	if err := c.GetJSON(ctx, "k", &out); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("GetJSON() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
