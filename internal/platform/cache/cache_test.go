package cache

import (
	"context"
	"testing"
	"time"
)

func TestNoopCache(t *testing.T) {
	c := NewNoop()
	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, err := c.Get(ctx, "k"); ok || err != nil {
		t.Errorf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if err := c.Set(ctx, "schedule:1", []byte(`{"status":"Available"}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, ok, err := c.Get(ctx, "schedule:1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"status":"Available"}` {
		t.Errorf("unexpected value %s", raw)
	}

	if err := c.Delete(ctx, "schedule:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "schedule:1"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemory()
	now := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expected miss at expiry")
	}
}

func TestJSONHelpers(t *testing.T) {
	type calendar struct {
		Status string `json:"status"`
		Days   []int  `json:"days"`
	}
	c := NewMemory()
	ctx := context.Background()

	var out calendar
	hit, err := GetJSON(ctx, c, "cal", &out)
	if err != nil || hit {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	if err := SetJSON(ctx, c, "cal", calendar{Status: "Busy", Days: []int{1, 2}}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}
	hit, err = GetJSON(ctx, c, "cal", &out)
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if out.Status != "Busy" || len(out.Days) != 2 {
		t.Errorf("unexpected decoded value %+v", out)
	}

	_ = c.Set(ctx, "bad", []byte("{not json"), 0)
	if _, err := GetJSON(ctx, c, "bad", &out); err == nil {
		t.Error("expected decode error for corrupt entry")
	}
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	r, err := NewRedis("redis://localhost:6379/0", "clinic")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer r.Close()
	if got := r.key("schedule:abc"); got != "clinic:schedule:abc" {
		t.Errorf("unexpected key %q", got)
	}
	if _, err := NewRedis("not a url", ""); err == nil {
		t.Error("expected error for malformed url")
	}
}
