package cache

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestKeyString(t *testing.T) {
	cases := []struct {
		key  Key
		want string
	}{
		{Key{Epic: "RT-1", Generation: "g1", Day: "2025-01-02"}, "repair-tracker:timeline:RT-1:g1:2025-01-02:full"},
		{Key{Epic: "RT-1", Generation: "g1", Day: "2025-01-02", Trimmed: true}, "repair-tracker:timeline:RT-1:g1:2025-01-02:trimmed"},
	}
	for _, tc := range cases {
		if got := tc.key.String(); got != tc.want {
			t.Errorf("Key.String() = %q, want %q", got, tc.want)
		}
	}
	if got := epicPattern("RT-1"); got != "repair-tracker:timeline:RT-1:*" {
		t.Errorf("epicPattern = %q", got)
	}
}

func TestDisabledCacheIsNoop(t *testing.T) {
	ctx := context.Background()
	c := NewTimelineCache(nil, 0, zap.NewNop())
	if c.Enabled() {
		t.Fatal("cache without client must report disabled")
	}
	key := Key{Epic: "RT-1", Generation: "g", Day: "2025-01-01"}
	if err := c.Set(ctx, key, nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := c.Get(ctx, key); ok {
		t.Fatal("disabled cache must always miss")
	}
	if err := c.Invalidate(ctx, "RT-1"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	var nilCache *TimelineCache
	if nilCache.Enabled() {
		t.Fatal("nil cache must report disabled")
	}
}
