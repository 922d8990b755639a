package filter

import (
	"context"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/pkg/dsl"
)

// ExprFilter 是表达式过滤器，使用 CEL 表达式判断候选是否应被过滤。
// 表达式返回 true 表示过滤掉该候选。
//
// 示例：
//   - `item.score < 0.1` → 过滤低分候选
//   - `item.category == "books" && rctx.scene == "feed"` → 按场景过滤分类
//   - `label.recall_source == "hot"` → 过滤热门召回来源
type ExprFilter struct {
	// Expr 是 CEL 表达式，空表达式不过滤任何候选
	Expr string
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Candidate,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Expr == "" {
		return false, nil
	}

	return dsl.NewEval(item, rctx).Evaluate(f.Expr)
}
