package cache

import (
	"testing"
	"time"
)

func TestCache_SetGetDelete(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("未写入的键不应命中")
	}
	c.Set("a", 1, 0)
	c.Set("b", 2, time.Hour)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("Get(a) = %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d, 期望 2", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("删除后不应命中")
	}
}

func TestCache_Expiry(t *testing.T) {
	c := NewInMemoryCache[string, string](time.Minute)
	c.Set("k", "v", 10*time.Millisecond)

	if _, ok := c.Get("k"); !ok {
		t.Fatalf("未过期就不应剔除")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("过期项应视为不存在")
	}
	// Get 路径惰性删除
	if c.Size() != 0 {
		t.Fatalf("过期项应被顺手删除, Size = %d", c.Size())
	}
}

func TestCache_DefaultTTLFallback(t *testing.T) {
	c := NewInMemoryCache[int, int](0)
	if c.defaultTTL != time.Minute {
		t.Fatalf("非法默认 TTL 应回退 1 分钟, 实际 %s", c.defaultTTL)
	}
}
