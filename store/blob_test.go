package store

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rushteam/markovkit/core"
)

func TestMemoryBlobStore(t *testing.T) {
	bs := NewMemoryBlobStore()
	ctx := context.Background()

	data := []byte(`{"order":2,"transitions":{}}`)
	hash, err := bs.Store(ctx, data)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if hash == "" {
		t.Fatal("empty content hash")
	}

	got, err := bs.Retrieve(ctx, hash)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Retrieve() = %q, want %q", got, data)
	}

	// 同内容重复存储返回同一哈希且不增加条目
	hash2, _ := bs.Store(ctx, data)
	if hash2 != hash {
		t.Errorf("same content produced different hashes: %q vs %q", hash, hash2)
	}
	if bs.Len() != 1 {
		t.Errorf("Len() = %d, want 1", bs.Len())
	}

	if _, err := bs.Retrieve(ctx, "deadbeef"); !core.IsStoreNotFound(err) {
		t.Errorf("missing blob should be not found, got %v", err)
	}
}

func TestWalrusBlobStore(t *testing.T) {
	var stored []byte
	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/v1/blobs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		stored, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"newlyCreated":{"blobObject":{"blobId":"blob-123"}}}`))
	}))
	defer publisher.Close()

	aggregator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/blobs/blob-123" {
			w.Write(stored)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer aggregator.Close()

	bs := NewWalrusBlobStore(publisher.URL, aggregator.URL, 0)
	ctx := context.Background()

	data := []byte("model snapshot bytes")
	hash, err := bs.Store(ctx, data)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if hash != "blob-123" {
		t.Errorf("Store() hash = %q, want blob-123", hash)
	}

	got, err := bs.Retrieve(ctx, hash)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Retrieve() = %q, want %q", got, data)
	}

	if _, err := bs.Retrieve(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("missing blob should map to not-found, got %v", err)
	}
}

func TestWalrusBlobStoreAlreadyCertified(t *testing.T) {
	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"alreadyCertified":{"blobId":"blob-known"}}`))
	}))
	defer publisher.Close()

	bs := NewWalrusBlobStore(publisher.URL, "", 0)
	hash, err := bs.Store(context.Background(), []byte("x"))
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if hash != "blob-known" {
		t.Errorf("Store() hash = %q, want blob-known", hash)
	}
}
