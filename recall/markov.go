package recall

import (
	"context"
	"strings"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/markov"
	"github.com/rushteam/markovkit/pipeline"
	"github.com/rushteam/markovkit/pkg/utils"
)

// Markov 是基于多阶行为链的召回源：用用户最近的 Token 序列迭代预测
// 下一个行为，把预测结果展开成候选集。
//
// 每轮取混合预测的最优 Token，追加进滑动窗口后继续预测下一轮，
// 窗口长度超过 maxOrder+1 时从头部裁剪；预测不出后继时提前结束。
type Markov struct {
	Model *markov.MultiOrder

	// Limit 最多生成的候选数；<= 0 时取 10
	Limit int

	// AlphaGlobal 混合预测中全局模型的权重；0 时取默认值
	AlphaGlobal float64

	// CategoryAware 是否启用类别感知调权视图
	CategoryAware bool
}

func (r *Markov) Name() string        { return "recall.markov" }
func (r *Markov) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall。
func (r *Markov) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Candidate,
) ([]*core.Candidate, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
func (r *Markov) Recall(
	_ context.Context,
	rctx *core.RecommendContext,
) ([]*core.Candidate, error) {
	if r.Model == nil || rctx == nil || rctx.UserID == "" || len(rctx.RecentTokens) == 0 {
		return nil, nil
	}

	limit := r.Limit
	if limit <= 0 {
		limit = 10
	}
	alpha := r.AlphaGlobal
	if alpha <= 0 {
		alpha = markov.DefaultAlphaGlobal
	}

	window := append([]string{}, rctx.RecentTokens...)
	seen := make(map[string]bool)
	out := make([]*core.Candidate, 0, limit)

	// 预测可能在已出过的 Token 之间打转，迭代数设上限防空转
	for iter := 0; len(out) < limit && iter < limit*3; iter++ {
		var preds []markov.Prediction
		if r.CategoryAware {
			preds = r.Model.CategoryAwarePredict(rctx.UserID, window, alpha)
		} else {
			preds = r.Model.HybridPredict(rctx.UserID, window, alpha)
		}
		if len(preds) == 0 {
			break
		}
		top := preds[0]

		behaviorType, itemID := core.ParseToken(top.Token)
		category := ""
		// 类别感知模式下 Token 末尾带类别后缀；item id 自身可以含分隔符，
		// 只有模型确认剥离后的 id 恰好映射到该类别时才剥
		if r.CategoryAware {
			if base, cat, ok := r.splitCategory(itemID); ok {
				itemID, category = base, cat
			}
		}
		if !seen[itemID] {
			seen[itemID] = true

			cand := core.NewCandidate(itemID)
			cand.Score = top.Probability
			if category == "" {
				category = r.itemCategory(itemID)
			}
			cand.Category = category
			cand.Reason = "基于您的" + behaviorType + "行为模式"
			cand.Meta["predicted_behavior"] = behaviorType
			cand.Meta["predicted_token"] = top.Token
			cand.PutLabel("recall_source", utils.Label{Value: "markov", Source: "recall"})
			cand.PutLabel("predicted_type", utils.Label{Value: behaviorType, Source: "recall"})
			out = append(out, cand)
		}

		// 把预测出的 Token 推进窗口，继续生成下一个候选
		window = append(window, top.Token)
		if len(window) > r.Model.MaxOrder()+1 {
			window = window[1:]
		}
	}

	return out, nil
}

// splitCategory 尝试把 item 段末尾的类别后缀剥离。
// 只在模型的显式分类映射里确认「剥离后的 id → 该类别」时才认定为后缀，
// 避免把 item id 自带的 '_' 段误读成类别。
func (r *Markov) splitCategory(itemID string) (base, category string, ok bool) {
	idx := strings.LastIndex(itemID, core.TokenSeparator)
	if idx <= 0 || idx == len(itemID)-1 {
		return itemID, "", false
	}
	base, tail := itemID[:idx], itemID[idx+1:]
	if cat, found := r.Model.ItemCategory(base); found && cat == tail {
		return base, tail, true
	}
	return itemID, "", false
}

// itemCategory 先查模型里的显式分类映射，查不到退回哈希兜底分类。
func (r *Markov) itemCategory(itemID string) string {
	if cat, ok := r.Model.ItemCategory(itemID); ok {
		return cat
	}
	return core.FallbackCategory(itemID)
}
