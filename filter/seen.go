package filter

import (
	"context"

	"github.com/rushteam/markovkit/core"
)

// SeenFilter 是已交互过滤器，过滤掉用户近期已交互过的物品。
// 交互历史来自请求上下文的 RecentEvents。
type SeenFilter struct {
	// Types 限定参与过滤的行为类型，为空时所有行为类型都算已交互
	Types []core.BehaviorType
}

func (f *SeenFilter) Name() string {
	return "filter.seen"
}

func (f *SeenFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Candidate,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil || len(rctx.RecentEvents) == 0 {
		return false, nil
	}

	for _, ev := range rctx.RecentEvents {
		if ev.ItemID != item.ItemID {
			continue
		}
		if len(f.Types) == 0 {
			return true, nil
		}
		for _, t := range f.Types {
			if ev.BehaviorType == t {
				return true, nil
			}
		}
	}

	return false, nil
}
