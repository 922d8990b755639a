package recall

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/pipeline"
	"github.com/rushteam/markovkit/pkg/utils"
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 典型用法：Markov 召回优先，Hot 兜底，按优先级去重合并。
type Fanout struct {
	Sources       []Source
	Dedup         bool
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy string        // 合并策略：first / union / priority（优先级按 Sources 顺序）
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		grouped = make([][]*core.Candidate, len(n.Sources))
		eg, _   = errgroup.WithContext(ctx)
	)

	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		idx, s := i, src
		eg.Go(func() error {
			recallCtx := ctx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(ctx, n.Timeout)
				defer cancel()
			}

			candidates, err := s.Recall(recallCtx, rctx)
			if err != nil {
				// 单个召回源失败不中断其他召回源
				return nil
			}
			for _, c := range candidates {
				c.PutLabel("recall_source", utils.Label{Value: s.Name(), Source: "recall"})
			}

			mu.Lock()
			grouped[idx] = candidates
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// 按 Sources 顺序拼接，保证优先级合并的确定性
	all := make([]*core.Candidate, 0)
	for _, g := range grouped {
		all = append(all, g...)
	}

	switch n.MergeStrategy {
	case "union":
		return all, nil
	default: // "first" / "priority"：保留先出现的（Sources 顺序即优先级）
		if !n.Dedup {
			return all, nil
		}
		return mergeFirst(all), nil
	}
}

// mergeFirst 按 ItemID 去重，保留第一个出现的；后出现者的 Labels 并入。
func mergeFirst(all []*core.Candidate) []*core.Candidate {
	seen := make(map[string]*core.Candidate, len(all))
	out := make([]*core.Candidate, 0, len(all))
	for _, c := range all {
		if c == nil {
			continue
		}
		if old, ok := seen[c.ItemID]; ok {
			for k, v := range c.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[c.ItemID] = c
		out = append(out, c)
	}
	return out
}
