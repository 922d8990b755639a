package feature

import (
	"context"
	"sync"
)

// Provider 是用户画像特征的领域接口：人口统计学属性与类别偏好权重。
// 推荐器在冷启动兜底和类别感知预测前拉取这两组特征。
// 用户没有对应特征时返回空 map 而不是错误。
type Provider interface {
	// Demographics 返回用户人口统计学属性（age_group / income_level 等）
	Demographics(ctx context.Context, userID string) (map[string]string, error)

	// CategoryPreferences 返回用户类别偏好权重（category -> weight）
	CategoryPreferences(ctx context.Context, userID string) (map[string]float64, error)
}

// MemoryProvider 是内存实现的 Provider，用于测试/开发，或作为
// 外部特征平台不可用时的兜底。
type MemoryProvider struct {
	mu     sync.RWMutex
	demos  map[string]map[string]string
	prefs  map[string]map[string]float64
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		demos: make(map[string]map[string]string),
		prefs: make(map[string]map[string]float64),
	}
}

// SetDemographics 写入用户人口统计学属性。
func (p *MemoryProvider) SetDemographics(userID string, attrs map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make(map[string]string, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	p.demos[userID] = cp
}

// SetCategoryPreferences 写入用户类别偏好权重。
func (p *MemoryProvider) SetCategoryPreferences(userID string, prefs map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make(map[string]float64, len(prefs))
	for k, v := range prefs {
		cp[k] = v
	}
	p.prefs[userID] = cp
}

func (p *MemoryProvider) Demographics(_ context.Context, userID string) (map[string]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	attrs, ok := p.demos[userID]
	if !ok {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out, nil
}

func (p *MemoryProvider) CategoryPreferences(_ context.Context, userID string) (map[string]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	prefs, ok := p.prefs[userID]
	if !ok {
		return map[string]float64{}, nil
	}
	out := make(map[string]float64, len(prefs))
	for k, v := range prefs {
		out[k] = v
	}
	return out, nil
}

var _ Provider = (*MemoryProvider)(nil)
