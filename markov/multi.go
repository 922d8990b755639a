package markov

import (
	"sort"
	"sync"

	"github.com/rushteam/markovkit/core"
)

// DefaultAlphaGlobal 是混合预测中全局模型的默认权重。
const DefaultAlphaGlobal = 0.3

// Prediction 是一条预测结果：下一个 Token 及其归一化概率。
type Prediction struct {
	Token       string
	Probability float64
}

// MultiOrder 是多阶混合模型：阶数 1..maxOrder 各持有一个独立的 Chain，
// 外加三类辅助映射（用户人口统计学、物品分类、用户类别偏好权重）。
//
// 多阶与单阶之间是组合关系而非继承：MultiOrder 只做委托与结果混合，
// 不复用 Chain 的内部状态。
// 辅助映射都是可选输入，缺省时对预测无影响（权重按 1.0 处理）。
type MultiOrder struct {
	maxOrder int
	chains   []*Chain // chains[k-1] 是 k 阶模型

	mu            sync.RWMutex
	demographics  map[string]map[string]string
	itemCategory  map[string]string
	categoryPrefs map[string]map[string]float64
}

// NewMultiOrder 创建 1..maxOrder 阶的混合模型；maxOrder < 1 时按 1 处理。
func NewMultiOrder(maxOrder int) *MultiOrder {
	if maxOrder < 1 {
		maxOrder = 1
	}
	chains := make([]*Chain, maxOrder)
	for k := 1; k <= maxOrder; k++ {
		chains[k-1] = NewChain(k)
	}
	return &MultiOrder{
		maxOrder:      maxOrder,
		chains:        chains,
		demographics:  make(map[string]map[string]string),
		itemCategory:  make(map[string]string),
		categoryPrefs: make(map[string]map[string]float64),
	}
}

func (m *MultiOrder) MaxOrder() int { return m.maxOrder }

// Chain 返回指定阶数的单阶模型；阶数越界时返回 nil。
func (m *MultiOrder) Chain(order int) *Chain {
	if order < 1 || order > m.maxOrder {
		return nil
	}
	return m.chains[order-1]
}

// Train 把同一段 Token 序列喂给所有阶数的模型。
// 序列长度不足某一阶要求时该阶自行跳过。
func (m *MultiOrder) Train(userID string, tokens []string) {
	for _, c := range m.chains {
		c.Train(userID, tokens)
	}
}

// SetDemographics 记录用户人口统计学属性（age_group / income_level 等）。
func (m *MultiOrder) SetDemographics(userID string, attrs map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.demographics[userID] = attrs
}

// Demographics 返回用户人口统计学属性；未记录时为 nil。
func (m *MultiOrder) Demographics(userID string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.demographics[userID]
}

// AddItemCategories 合并物品 → 分类映射。
func (m *MultiOrder) AddItemCategories(categories map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for item, cat := range categories {
		m.itemCategory[item] = cat
	}
}

// ItemCategory 返回物品分类；未记录时为 ("", false)。
func (m *MultiOrder) ItemCategory(itemID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cat, ok := m.itemCategory[itemID]
	return cat, ok
}

// SetCategoryPreferences 设置用户的类别偏好权重。
func (m *MultiOrder) SetCategoryPreferences(userID string, prefs map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categoryPrefs[userID] = prefs
}

// CategoryPreferences 返回用户的类别偏好权重；未设置时为 nil。
func (m *MultiOrder) CategoryPreferences(userID string) map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.categoryPrefs[userID]
}

// HybridPredict 做全局 + 个性化的多阶混合预测。
//
// 对每个 k ∈ [1, maxOrder] 且 len(recent) >= k：
//   - context = recent 的最后 k 个 Token
//   - 全局分布的每个候选累加 alphaGlobal * prob * (1/k)
//   - 用户私有分布的每个候选累加 (1-alphaGlobal) * prob * (1/k)
//
// 1/k 权重的动机：高阶 context 更稀疏、单次观测更不可靠，贡献相应
// 降权，但仍参与混合。
// 累加结果按候选求和后归一化为概率分布（累加器为空时返回空结果），
// 按概率降序返回，概率相同时按 Token 字典序。
func (m *MultiOrder) HybridPredict(userID string, recent []string, alphaGlobal float64) []Prediction {
	acc := make(map[string]float64)

	for k := 1; k <= m.maxOrder; k++ {
		if len(recent) < k {
			continue
		}
		chain := m.chains[k-1]
		context := recent[len(recent)-k:]
		weight := 1.0 / float64(k)

		for next, prob := range chain.GlobalProbabilities(context) {
			acc[next] += alphaGlobal * prob * weight
		}
		for next, prob := range chain.UserProbabilities(userID, context) {
			acc[next] += (1 - alphaGlobal) * prob * weight
		}
	}

	return normalizePredictions(acc)
}

// CategoryAwarePredict 在 HybridPredict 的结果上做类别感知调权：
// 取候选 Token 内嵌的类别段（第三段），乘以用户对该类别的偏好权重
// （未设置或无法解析时按 1.0），再重新归一化。
// 不足三段、无法解析类别的候选从本视图中剔除（基础混合结果不受影响）。
func (m *MultiOrder) CategoryAwarePredict(userID string, recent []string, alphaGlobal float64) []Prediction {
	base := m.HybridPredict(userID, recent, alphaGlobal)
	if len(base) == 0 {
		return nil
	}

	m.mu.RLock()
	prefs := m.categoryPrefs[userID]
	m.mu.RUnlock()

	adjusted := make(map[string]float64, len(base))
	for _, p := range base {
		category, ok := core.TokenCategory(p.Token)
		if !ok {
			continue
		}
		weight := 1.0
		if w, ok := prefs[category]; ok {
			weight = w
		}
		adjusted[p.Token] = p.Probability * weight
	}

	return normalizePredictions(adjusted)
}

// normalizePredictions 把累加器归一化为概率分布并降序排列。
func normalizePredictions(acc map[string]float64) []Prediction {
	if len(acc) == 0 {
		return nil
	}
	total := 0.0
	for _, v := range acc {
		total += v
	}
	if total <= 0 {
		return nil
	}

	out := make([]Prediction, 0, len(acc))
	for token, v := range acc {
		out = append(out, Prediction{Token: token, Probability: v / total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// OrderStats 是单个阶数模型的全局统计。
type OrderStats struct {
	Order        int     `json:"order"`
	Contexts     int     `json:"contexts"`
	Transitions  int     `json:"transitions"`
	AvgOutDegree float64 `json:"avg_out_degree"`
}

// ModelStats 是整个多阶模型的统计信息。
type ModelStats struct {
	MaxOrder   int          `json:"max_order"`
	TotalUsers int          `json:"total_users"`
	TotalItems int          `json:"total_items"`
	Categories []string     `json:"categories"`
	Orders     []OrderStats `json:"orders"`
}

// Stats 汇总各阶模型的 context/转移计数与平均出度。
func (m *MultiOrder) Stats() ModelStats {
	m.mu.RLock()
	stats := ModelStats{
		MaxOrder:   m.maxOrder,
		TotalItems: len(m.itemCategory),
	}
	seen := make(map[string]bool)
	for _, cat := range m.itemCategory {
		if !seen[cat] {
			seen[cat] = true
			stats.Categories = append(stats.Categories, cat)
		}
	}
	m.mu.RUnlock()
	sort.Strings(stats.Categories)

	// 用户数按各阶私有表的并集计，训练过即算已知用户
	users := make(map[string]bool)
	for _, c := range m.chains {
		for _, id := range c.UserIDs() {
			users[id] = true
		}
	}
	stats.TotalUsers = len(users)

	for _, c := range m.chains {
		os := OrderStats{
			Order:       c.Order(),
			Contexts:    c.GlobalContexts(),
			Transitions: c.GlobalTransitions(),
		}
		if os.Contexts > 0 {
			os.AvgOutDegree = float64(os.Transitions) / float64(os.Contexts)
		}
		stats.Orders = append(stats.Orders, os)
	}
	return stats
}
