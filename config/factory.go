// Package config 提供 Pipeline 配置文件到 Node 的装配。
package config

import (
	"fmt"
	"time"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/filter"
	"github.com/rushteam/markovkit/markov"
	"github.com/rushteam/markovkit/pipeline"
	"github.com/rushteam/markovkit/pkg/conv"
	"github.com/rushteam/markovkit/rank"
	"github.com/rushteam/markovkit/recall"
	"github.com/rushteam/markovkit/rerank"
)

// Deps 是配置装配所需的运行期依赖。
// 配置文件只描述结构和参数，模型实例和存储连接由代码注入。
type Deps struct {
	// Model 行为链模型，markov 召回与排序的分类来源
	Model *markov.MultiOrder

	// Store 热门列表等数据的存储（可为 nil）
	Store core.Store

	// Profiles 打分节点的用户档案来源（可为 nil）
	Profiles rank.ProfileSource
}

// DefaultFactory 返回一个注册了所有内置 Node 的工厂。
func DefaultFactory(deps Deps) *pipeline.NodeFactory {
	factory := pipeline.NewNodeFactory()

	factory.Register("recall.fanout", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return buildFanoutNode(deps, cfg)
	})
	factory.Register("recall.markov", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return buildMarkovNode(deps, cfg)
	})
	factory.Register("recall.hot", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return buildHotNode(deps, cfg)
	})
	factory.Register("rank.behavior", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return buildBehaviorNode(deps, cfg)
	})
	factory.Register("rerank.topn", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return &rerank.TopNNode{N: int(conv.ConfigGetInt64(cfg, "n", 0))}, nil
	})
	factory.Register("filter", func(cfg map[string]interface{}) (pipeline.Node, error) {
		return buildFilterNode(cfg)
	})

	return factory
}

func buildMarkovSource(deps Deps, cfg map[string]interface{}) (*recall.Markov, error) {
	if deps.Model == nil {
		return nil, fmt.Errorf("markov source requires a model")
	}
	return &recall.Markov{
		Model:         deps.Model,
		Limit:         int(conv.ConfigGetInt64(cfg, "limit", 0)),
		AlphaGlobal:   conv.ConfigGetFloat(cfg, "alpha_global", 0),
		CategoryAware: conv.ConfigGet[bool](cfg, "category_aware", false),
	}, nil
}

func buildMarkovNode(deps Deps, cfg map[string]interface{}) (pipeline.Node, error) {
	return buildMarkovSource(deps, cfg)
}

func buildHotSource(deps Deps, cfg map[string]interface{}) *recall.Hot {
	ids := conv.SliceAnyToString(cfg["ids"])
	if ids == nil {
		ids = []string{}
	}
	return &recall.Hot{
		Store:         deps.Store,
		Key:           conv.ConfigGet[string](cfg, "key", ""),
		IDs:           ids,
		TopK:          int(conv.ConfigGetInt64(cfg, "top_k", 0)),
		ColdStartOnly: conv.ConfigGet[bool](cfg, "cold_start_only", false),
	}
}

func buildHotNode(deps Deps, cfg map[string]interface{}) (pipeline.Node, error) {
	return buildHotSource(deps, cfg), nil
}

func buildFanoutNode(deps Deps, cfg map[string]interface{}) (pipeline.Node, error) {
	sourcesConfig, ok := cfg["sources"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("sources not found or invalid")
	}

	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]interface{})
		if !ok {
			continue
		}
		switch sourceType := conv.ConfigGet[string](sourceMap, "type", ""); sourceType {
		case "markov":
			src, err := buildMarkovSource(deps, sourceMap)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		case "hot":
			sources = append(sources, buildHotSource(deps, sourceMap))
		default:
			return nil, fmt.Errorf("unknown source type: %s", sourceType)
		}
	}

	fanout := &recall.Fanout{
		Sources:       sources,
		Dedup:         conv.ConfigGet[bool](cfg, "dedup", true),
		MergeStrategy: conv.ConfigGet[string](cfg, "merge_strategy", ""),
	}
	if sec := conv.ConfigGetInt64(cfg, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	if n := conv.ConfigGetInt64(cfg, "max_concurrent", 0); n > 0 {
		fanout.MaxConcurrent = int(n)
	}
	return fanout, nil
}

func buildBehaviorNode(deps Deps, cfg map[string]interface{}) (pipeline.Node, error) {
	scorer := &rank.Scorer{
		HalfLifeDays: conv.ConfigGetFloat(cfg, "half_life_days", 0),
		Profiles:     deps.Profiles,
	}
	if deps.Model != nil {
		scorer.Categories = deps.Model
	}
	return &rank.BehaviorNode{Scorer: scorer}, nil
}

func buildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		switch filterType := conv.ConfigGet[string](filterMap, "type", ""); filterType {
		case "blacklist":
			ids := conv.SliceAnyToString(filterMap["item_ids"])
			if ids == nil {
				ids = []string{}
			}
			filters = append(filters, &filter.BlacklistFilter{
				ItemIDs: ids,
				Key:     conv.ConfigGet[string](filterMap, "key", ""),
			})

		case "seen":
			types := conv.ConvertSlice(
				conv.SliceAnyToString(filterMap["behavior_types"]),
				func(s string) (core.BehaviorType, bool) { return core.BehaviorType(s), true },
			)
			filters = append(filters, &filter.SeenFilter{Types: types})

		case "expr":
			filters = append(filters, &filter.ExprFilter{
				Expr: conv.ConfigGet[string](filterMap, "expr", ""),
			})

		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}

	return &filter.FilterNode{Filters: filters}, nil
}
