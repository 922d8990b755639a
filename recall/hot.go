package recall

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/pipeline"
	"github.com/rushteam/markovkit/pkg/utils"
)

// Hot 是热门召回源，用户没有任何行为历史时的兜底推荐。
// - 如果 Store 实现了 KeyValueStore，优先使用 ZRange（有序集合，按热度排序）
// - 否则从普通 key 读取 JSON 数组
// - 如果 Store 为空，使用内存中的 IDs 作为 fallback
// Hot 同时实现了 Source 和 Node 接口，可以直接在 Pipeline 中使用。
type Hot struct {
	Store core.Store
	Key   string   // 存储 key，例如 "hot:items"
	IDs   []string // fallback 内存列表
	TopK  int      // 最多返回的候选数；<= 0 时取 10

	// ColdStartOnly 只在用户没有任何行为历史（RecentTokens 为空）时
	// 参与召回；行为链能给出预测的用户不再混入热门候选
	ColdStartOnly bool
}

func (r *Hot) Name() string        { return "recall.hot" }
func (r *Hot) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall。
func (r *Hot) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Candidate,
) ([]*core.Candidate, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
func (r *Hot) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Candidate, error) {
	if r.ColdStartOnly && rctx != nil && len(rctx.RecentTokens) > 0 {
		return nil, nil
	}

	topK := r.TopK
	if topK <= 0 {
		topK = 10
	}

	var ids []string

	if r.Store != nil && r.Key != "" {
		if kvStore, ok := r.Store.(core.KeyValueStore); ok {
			members, err := kvStore.ZRange(ctx, r.Key, 0, int64(topK)-1)
			if err == nil && len(members) > 0 {
				ids = members
			}
		} else {
			data, err := r.Store.Get(ctx, r.Key)
			if err == nil {
				var parsed []string
				if json.Unmarshal(data, &parsed) == nil {
					ids = parsed
				}
			}
		}
	}

	if len(ids) == 0 {
		ids = r.IDs
	}
	if len(ids) > topK {
		ids = ids[:topK]
	}

	out := make([]*core.Candidate, 0, len(ids))
	for i, id := range ids {
		cand := core.NewCandidate(id)
		// 排名越靠前分数越高，且不低于 0.1
		cand.Score = 0.8 - 0.1*float64(i)
		if cand.Score < 0.1 {
			cand.Score = 0.1
		}
		cand.Reason = "热门推荐"
		cand.PutLabel("recall_source", utils.Label{Value: "hot", Source: "recall"})
		out = append(out, cand)
	}
	return out, nil
}
