package cache

import (
	"context"
	"testing"
)

func TestDisabledCacheIsNoOp(t *testing.T) {
	c := New("", 0, nil)
	if c.Enabled() {
		t.Fatal("expected cache without address to be disabled")
	}

	ctx := context.Background()
	if err := c.SetJSON(ctx, Key("db", "box:BOX-0001"), map[string]string{"status": "ok"}, TTLDB); err != nil {
		t.Fatalf("set on disabled cache: %v", err)
	}

	var target map[string]string
	found, err := c.GetJSON(ctx, Key("db", "box:BOX-0001"), &target)
	if err != nil {
		t.Fatalf("get on disabled cache: %v", err)
	}
	if found {
		t.Fatal("disabled cache must always miss")
	}

	cleared, err := c.ClearPrefix(ctx, "db")
	if err != nil || cleared != 0 {
		t.Fatalf("expected no-op clear, got %d, %v", cleared, err)
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		t.Fatalf("stats on disabled cache: %v", err)
	}
	if stats.Enabled {
		t.Fatal("expected disabled stats")
	}
}

func TestKeyNamespacing(t *testing.T) {
	if got := Key("api", "stats"); got != "bio_supply:api:stats" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := Key("analytics", "compliance:abc123"); got != "bio_supply:analytics:compliance:abc123" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestParseInfo(t *testing.T) {
	info := "# Stats\r\nkeyspace_hits:150\r\nkeyspace_misses:50\r\ntotal_connections_received:7\r\n"
	if got := parseInfoInt(info, "keyspace_hits"); got != 150 {
		t.Fatalf("expected 150 hits, got %d", got)
	}
	if got := parseInfoInt(info, "keyspace_misses"); got != 50 {
		t.Fatalf("expected 50 misses, got %d", got)
	}
	if got := parseInfoInt(info, "absent_field"); got != 0 {
		t.Fatalf("expected 0 for absent field, got %d", got)
	}

	memory := "# Memory\r\nused_memory:1024\r\nused_memory_human:1.00K\r\n"
	if got := parseInfoValue(memory, "used_memory_human"); got != "1.00K" {
		t.Fatalf("expected 1.00K, got %q", got)
	}
}

func TestHitRate(t *testing.T) {
	if got := hitRate(150, 50); got != 75 {
		t.Fatalf("expected 75, got %v", got)
	}
	if got := hitRate(0, 0); got != 0 {
		t.Fatalf("expected 0 for empty counters, got %v", got)
	}
	if got := hitRate(1, 2); got != 33.33 {
		t.Fatalf("expected 33.33, got %v", got)
	}
}
