package core

import "github.com/rushteam/markovkit/pkg/utils"

// Candidate 是推荐链路中的统一承载结构：候选物品、分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
// Candidate 是按请求生成的临时对象，核心不持久化它。
type Candidate struct {
	ItemID   string
	Score    float64
	Category string
	Reason   string
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewCandidate(itemID string) *Candidate {
	return &Candidate{
		ItemID: itemID,
		Score:  0,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}
