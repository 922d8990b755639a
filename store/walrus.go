package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rushteam/markovkit/core"
)

// WalrusBlobStore 是基于 Walrus 发布者/聚合者 HTTP 接口的 blob 存储。
// 写入走 publisher（PUT /v1/blobs），读取走 aggregator（GET /v1/blobs/{id}），
// 内容哈希即 Walrus 返回的 blobId。
type WalrusBlobStore struct {
	client *http.Client

	// PublisherURL 是发布者基地址，如 http://127.0.0.1:31415
	PublisherURL string

	// AggregatorURL 是聚合者基地址，如 http://127.0.0.1:31416
	AggregatorURL string

	// Epochs 是存储周期数，<=0 时不传该参数
	Epochs int
}

// NewWalrusBlobStore 创建 Walrus blob 存储客户端。
func NewWalrusBlobStore(publisherURL, aggregatorURL string, timeout time.Duration) *WalrusBlobStore {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WalrusBlobStore{
		client:        &http.Client{Timeout: timeout},
		PublisherURL:  publisherURL,
		AggregatorURL: aggregatorURL,
	}
}

// storeResponse 覆盖新建与已存在两种返回形态。
type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
}

func (s *WalrusBlobStore) Store(ctx context.Context, data []byte) (string, error) {
	url := s.PublisherURL + "/v1/blobs"
	if s.Epochs > 0 {
		url += "?epochs=" + strconv.Itoa(s.Epochs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("HTTP 请求失败: status=%d, body=%s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}

	var sr storeResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("解析存储响应失败: %w", err)
	}
	switch {
	case sr.NewlyCreated != nil && sr.NewlyCreated.BlobObject.BlobID != "":
		return sr.NewlyCreated.BlobObject.BlobID, nil
	case sr.AlreadyCertified != nil && sr.AlreadyCertified.BlobID != "":
		return sr.AlreadyCertified.BlobID, nil
	}
	return "", fmt.Errorf("存储响应缺少 blobId: %s", string(body))
}

func (s *WalrusBlobStore) Retrieve(ctx context.Context, contentHash string) ([]byte, error) {
	url := s.AggregatorURL + "/v1/blobs/" + contentHash

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.ErrBlobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP 请求失败: status=%d, body=%s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return data, nil
}

var _ core.BlobStore = (*WalrusBlobStore)(nil)
