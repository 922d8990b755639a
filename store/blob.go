package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/rushteam/markovkit/core"
)

// MemoryBlobStore 是内容寻址的内存 blob 存储，用于测试/开发。
// 哈希为 sha256 十六进制，同一内容重复存储返回相同哈希。
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string][]byte)}
}

func (s *MemoryBlobStore) Store(ctx context.Context, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[hash]; !ok {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.blobs[hash] = cp
	}
	return hash, nil
}

func (s *MemoryBlobStore) Retrieve(ctx context.Context, contentHash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[contentHash]
	if !ok {
		return nil, core.ErrBlobNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Len 返回存储的 blob 数量（用于测试/观测）。
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var _ core.BlobStore = (*MemoryBlobStore)(nil)
