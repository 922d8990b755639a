package store

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/markovkit/core"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if _, err := ms.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("expected not-found error, got %v", err)
	}

	if err := ms.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := ms.Get(ctx, "k1")
	if err != nil || string(got) != "v1" {
		t.Errorf("Get() = %q, %v", got, err)
	}

	if err := ms.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := ms.Get(ctx, "k1"); !core.IsStoreNotFound(err) {
		t.Errorf("deleted key should be not found, got %v", err)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	if err := ms.Set(ctx, "ephemeral", []byte("v"), 1); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if _, err := ms.Get(ctx, "ephemeral"); err != nil {
		t.Fatalf("key should exist before expiry: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)
	if _, err := ms.Get(ctx, "ephemeral"); !core.IsStoreNotFound(err) {
		t.Errorf("expired key should be not found, got %v", err)
	}
}

func TestMemoryStoreBatch(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	kvs := map[string][]byte{"a": []byte("1"), "b": []byte("2")}
	if err := ms.BatchSet(ctx, kvs); err != nil {
		t.Fatalf("BatchSet() error: %v", err)
	}

	got, err := ms.BatchGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchGet() error: %v", err)
	}
	if len(got) != 2 || string(got["a"]) != "1" || string(got["b"]) != "2" {
		t.Errorf("BatchGet() = %v", got)
	}
}

func TestMemoryStoreZSet(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	ms.ZAdd(ctx, "hot", 3, "item_c")
	ms.ZAdd(ctx, "hot", 1, "item_a")
	ms.ZAdd(ctx, "hot", 2, "item_b")

	got, err := ms.ZRange(ctx, "hot", 0, -1)
	if err != nil {
		t.Fatalf("ZRange() error: %v", err)
	}
	want := []string{"item_c", "item_b", "item_a"}
	if len(got) != len(want) {
		t.Fatalf("ZRange() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ZRange()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	top, err := ms.ZRange(ctx, "hot", 0, 1)
	if err != nil || len(top) != 2 || top[0] != "item_c" || top[1] != "item_b" {
		t.Errorf("ZRange(0,1) = %v, %v", top, err)
	}

	score, err := ms.ZScore(ctx, "hot", "item_b")
	if err != nil || score != 2 {
		t.Errorf("ZScore() = %v, %v", score, err)
	}
	if _, err := ms.ZScore(ctx, "hot", "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("missing member should be not found, got %v", err)
	}
}

func TestMemoryStoreHash(t *testing.T) {
	ms := NewMemoryStore()
	defer ms.Close()
	ctx := context.Background()

	ms.HSet(ctx, "profile:u1", "category:books", []byte("3"))
	ms.HSet(ctx, "profile:u1", "category:food", []byte("1"))

	got, err := ms.HGet(ctx, "profile:u1", "category:books")
	if err != nil || string(got) != "3" {
		t.Errorf("HGet() = %q, %v", got, err)
	}

	all, err := ms.HGetAll(ctx, "profile:u1")
	if err != nil || len(all) != 2 {
		t.Errorf("HGetAll() = %v, %v", all, err)
	}

	if _, err := ms.HGet(ctx, "profile:u1", "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("missing field should be not found, got %v", err)
	}
}
