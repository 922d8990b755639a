// Package rank 实现推荐候选的打分与排序。
package rank

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/pipeline"
	"github.com/rushteam/markovkit/pkg/utils"
)

const (
	// baseScore 是所有推荐分数的基准值
	baseScore = 0.5

	// defaultHalfLifeDays 是时间衰减的默认半衰期（天）
	defaultHalfLifeDays = 7.0

	// defaultTypeWeight 是未识别行为类型的默认权重
	defaultTypeWeight = 0.5

	// confidenceBehaviorCap 行为数达到该值时历史置信度封顶
	confidenceBehaviorCap = 50.0

	// coldStartConfidence 是无档案用户的固定置信度
	coldStartConfidence = 0.3
)

// behaviorTypeWeights 按商业意图强度给行为类型定权：
// purchase > add_to_cart > like > click > view。
var behaviorTypeWeights = map[core.BehaviorType]float64{
	core.BehaviorPurchase:  1.0,
	core.BehaviorAddToCart: 0.8,
	core.BehaviorLike:      0.6,
	core.BehaviorClick:     0.4,
	core.BehaviorView:      0.3,
}

// ProfileSource 提供用户档案（偏好计数/行为计数）。
// 用户未知时返回 nil。
type ProfileSource interface {
	Profile(userID string) *core.UserProfile
}

// CategorySource 提供物品分类；找不到时返回 ("", false)。
type CategorySource interface {
	ItemCategory(itemID string) (string, bool)
}

// Scorer 把预测出的下一个行为、触发上下文的新近度、用户类别偏好
// 组合成有界的推荐分数：
//
//	score = base(0.5) × typeWeight × timeFactor × preferenceFactor
type Scorer struct {
	// HalfLifeDays 时间衰减半衰期（天）；<= 0 时取默认值 7
	HalfLifeDays float64

	// Profiles 用户档案来源（可为 nil，此时偏好与置信度按冷启动处理）
	Profiles ProfileSource

	// Categories 物品分类来源（可为 nil，此时用兜底哈希分类）
	Categories CategorySource

	// Now 取当前时间；为 nil 时用 time.Now（测试注入用）
	Now func() time.Time
}

func (s *Scorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// TypeWeight 返回行为类型的打分权重，未识别类型按 0.5。
func TypeWeight(behaviorType core.BehaviorType) float64 {
	if w, ok := behaviorTypeWeights[behaviorType]; ok {
		return w
	}
	return defaultTypeWeight
}

// TimeFactor 计算指数新近度衰减 exp(-days/HalfLifeDays)：
// 0 天为 1.0，7 天约 0.37（1/e），随后继续指数衰减。
func (s *Scorer) TimeFactor(ts time.Time) float64 {
	halfLife := s.HalfLifeDays
	if halfLife <= 0 {
		halfLife = defaultHalfLifeDays
	}
	days := s.now().Sub(ts).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / halfLife)
}

// PreferenceFactor 计算用户对物品所属类别的偏好因子。
// 无档案或无类别计数时为 1.0；偏好类别抬升到 1.0 以上，从不低于 1.0。
func (s *Scorer) PreferenceFactor(userID, itemID string) float64 {
	if s.Profiles == nil {
		return 1.0
	}
	profile := s.Profiles.Profile(userID)
	if profile == nil {
		return 1.0
	}
	return profile.PreferenceFactor(s.itemCategory(itemID))
}

func (s *Scorer) itemCategory(itemID string) string {
	if s.Categories != nil {
		if cat, ok := s.Categories.ItemCategory(itemID); ok {
			return cat
		}
	}
	return core.FallbackCategory(itemID)
}

// Score 计算一条候选的推荐分数。
// recentEvents 按新 → 旧排列，时间衰减取最近一条事件的时间戳；
// 没有近期事件时衰减因子为 1.0。
func (s *Scorer) Score(userID string, predictedType core.BehaviorType, itemID string, recentEvents []core.BehaviorEvent) float64 {
	timeFactor := 1.0
	if len(recentEvents) > 0 {
		timeFactor = s.TimeFactor(recentEvents[0].Timestamp)
	}
	return baseScore * TypeWeight(predictedType) * timeFactor * s.PreferenceFactor(userID, itemID)
}

// Confidence 计算整组推荐的置信度：
//   - 候选为空：0.0
//   - 已知用户：min(行为数/50, 1.0) 与候选平均分的均值
//   - 未知用户：固定 0.3
func (s *Scorer) Confidence(userID string, candidates []*core.Candidate) float64 {
	if len(candidates) == 0 {
		return 0.0
	}

	var profile *core.UserProfile
	if s.Profiles != nil {
		profile = s.Profiles.Profile(userID)
	}
	if profile == nil {
		return coldStartConfidence
	}

	historyFactor := float64(profile.BehaviorCount) / confidenceBehaviorCap
	if historyFactor > 1.0 {
		historyFactor = 1.0
	}

	sum := 0.0
	for _, c := range candidates {
		sum += c.Score
	}
	avgScore := sum / float64(len(candidates))

	return (historyFactor + avgScore) / 2
}

// BehaviorNode 是使用 Scorer 的排序 Node：
// - 从候选 Meta 中取预测的行为类型
// - 更新 Candidate.Score 并按分数降序排序
// - 写入 labels：rank_model
type BehaviorNode struct {
	Scorer *Scorer
}

func (n *BehaviorNode) Name() string        { return "rank.behavior" }
func (n *BehaviorNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *BehaviorNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	candidates []*core.Candidate,
) ([]*core.Candidate, error) {
	if n.Scorer == nil || len(candidates) == 0 {
		return candidates, nil
	}

	userID := ""
	var recent []core.BehaviorEvent
	if rctx != nil {
		userID = rctx.UserID
		recent = rctx.RecentEvents
	}

	for _, c := range candidates {
		if c == nil {
			continue
		}
		predictedType := core.BehaviorType("")
		if v, ok := c.Meta["predicted_behavior"].(string); ok {
			predictedType = core.BehaviorType(v)
		}
		c.Score = n.Scorer.Score(userID, predictedType, c.ItemID, recent)
		c.PutLabel("rank_model", utils.Label{Value: "behavior", Source: "rank"})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i] == nil {
			return false
		}
		if candidates[j] == nil {
			return true
		}
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}
