package session

import (
	"fmt"
	"testing"
	"time"
)

func TestCache_GetMiss(t *testing.T) {
	c := New(0)
	if _, ok := c.Get("conv-1"); ok {
		t.Fatal("expected miss on empty cache")
	}
}

func TestCache_SetThenGet(t *testing.T) {
	c := New(time.Minute)
	c.Set("conv-1", "qwen2.5-coder:14b")
	model, ok := c.Get("conv-1")
	if !ok || model != "qwen2.5-coder:14b" {
		t.Fatalf("got (%q, %v)", model, ok)
	}
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(time.Millisecond)
	fixed := time.Now()
	c.now = func() time.Time { return fixed }
	c.Set("conv-1", "m")
	c.now = func() time.Time { return fixed.Add(2 * time.Millisecond) }
	if _, ok := c.Get("conv-1"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestCache_TrimOnHardCap(t *testing.T) {
	c := New(time.Hour)
	fixed := time.Now()
	for i := 0; i < HardCap+1; i++ {
		t := fixed.Add(time.Duration(i) * time.Millisecond)
		c.now = func() time.Time { return t }
		c.Set(fmt.Sprintf("conv-%d", i), "m")
	}
	if c.Len() > HardCap {
		t.Fatalf("expected trim to SoftCap, got len=%d", c.Len())
	}
}
