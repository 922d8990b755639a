package markov

import (
	"sort"
	"sync"
)

// Chain 是单一阶数的行为链模型：一张全局转移表 + 每用户一张私有转移表。
//
// 训练时全局表与用户表在同一把锁内一起更新，读取方（预测/打分）
// 不会观察到某个 context 只更新了一半的状态。
// 写入方按"每用户同一时刻只有一个调用方"的约定使用；不同用户的
// 写入互不协调，由上层服务按 user id 串行化。
type Chain struct {
	order int

	mu     sync.RWMutex
	global *TransitionTable
	users  map[string]*TransitionTable
}

// NewChain 创建指定阶数的链模型；order < 1 时按 1 处理。
func NewChain(order int) *Chain {
	if order < 1 {
		order = 1
	}
	return &Chain{
		order:  order,
		global: NewTransitionTable(order),
		users:  make(map[string]*TransitionTable),
	}
}

func (c *Chain) Order() int { return c.order }

// Train 用一段 Token 序列训练模型。
// 对每个 i（i+order < len(tokens)）：
//
//	context = tokens[i : i+order]，next = tokens[i+order]
//
// 全局表计数加一；userID 非空时该用户的私有表同步加一。
// 序列长度不足 order+1 时不做任何修改。
func (c *Chain) Train(userID string, tokens []string) {
	if len(tokens) < c.order+1 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var user *TransitionTable
	if userID != "" {
		user = c.users[userID]
		if user == nil {
			user = NewTransitionTable(c.order)
			c.users[userID] = user
		}
	}

	for i := 0; i+c.order < len(tokens); i++ {
		key := ContextKey(tokens[i : i+c.order])
		next := tokens[i+c.order]
		c.global.Increment(key, next, 1)
		if user != nil {
			user.Increment(key, next, 1)
		}
	}
}

// GlobalProbabilities 返回全局表中 context 的条件分布；未见过时为空。
func (c *Chain) GlobalProbabilities(context []string) map[string]float64 {
	if len(context) != c.order {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global.Probabilities(ContextKey(context))
}

// UserProbabilities 返回某用户私有表中 context 的条件分布；
// 用户未知或 context 未见过时为空。
func (c *Chain) UserProbabilities(userID string, context []string) map[string]float64 {
	if len(context) != c.order {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, ok := c.users[userID]
	if !ok {
		return nil
	}
	return user.Probabilities(ContextKey(context))
}

// PredictNextGlobal 在全局表上预测 context 的下一个 Token。
func (c *Chain) PredictNextGlobal(context []string) (string, bool) {
	if len(context) != c.order {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global.PredictNext(ContextKey(context))
}

// PredictNextUser 在某用户的私有表上预测 context 的下一个 Token。
func (c *Chain) PredictNextUser(userID string, context []string) (string, bool) {
	if len(context) != c.order {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, ok := c.users[userID]
	if !ok {
		return "", false
	}
	return user.PredictNext(ContextKey(context))
}

// predictWithFallback 先查用户私有表，未命中再退回全局表。
// 个性化优先级由调用方（这里是序列生成）决定，表本身不感知。
func (c *Chain) predictWithFallback(userID string, context []string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := ContextKey(context)
	if user, ok := c.users[userID]; ok {
		if next, ok := user.PredictNext(key); ok {
			return next, true
		}
	}
	return c.global.PredictNext(key)
}

// Generate 从 startToken 出发做贪心游走，生成最长 length 个 Token 的序列。
// 滑动窗口最多保留 order 个 Token；第一次预测不到后继时提前返回。
// 在确定性的平手规则下，生成过程是确定性的。
func (c *Chain) Generate(userID, startToken string, length int) []string {
	sequence := []string{startToken}
	window := []string{startToken}

	for len(sequence) < length {
		if len(window) < c.order {
			break
		}
		next, ok := c.predictWithFallback(userID, window[len(window)-c.order:])
		if !ok {
			break
		}
		sequence = append(sequence, next)
		window = append(window, next)
		if len(window) > c.order {
			window = window[1:]
		}
	}
	return sequence
}

// TokenCount 是 Token 及其累计出现次数。
type TokenCount struct {
	Token string
	Count float64
}

// UserStats 是单个用户在某一阶模型里的行为统计。
type UserStats struct {
	TotalBehaviors float64      // 该用户所有转移的计数之和
	UniqueContexts int          // 该用户见过的 context 数
	TopTokens      []TokenCount // 出现次数最多的 next token（最多 5 个）
	Complexity     float64      // 平均出度：转移数 / context 数
}

// UserStats 返回某用户的行为统计；用户未知时返回 nil。
func (c *Chain) UserStats(userID string) *UserStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	user, ok := c.users[userID]
	if !ok {
		return nil
	}

	stats := &UserStats{UniqueContexts: user.Contexts()}
	counts := make(map[string]float64)
	for _, row := range user.transitions {
		for next, count := range row {
			stats.TotalBehaviors += count
			counts[next] += count
		}
	}

	top := make([]TokenCount, 0, len(counts))
	for token, count := range counts {
		top = append(top, TokenCount{Token: token, Count: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Token < top[j].Token
	})
	if len(top) > 5 {
		top = top[:5]
	}
	stats.TopTokens = top

	if n := user.Contexts(); n > 0 {
		stats.Complexity = float64(user.Transitions()) / float64(n)
	}
	return stats
}

// UserIDs 返回拥有私有表的用户 id 列表。
func (c *Chain) UserIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.users))
	for id := range c.users {
		ids = append(ids, id)
	}
	return ids
}

// GlobalContexts 返回全局表的 context 数。
func (c *Chain) GlobalContexts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global.Contexts()
}

// GlobalTransitions 返回全局表的出边总数。
func (c *Chain) GlobalTransitions() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.global.Transitions()
}

// KnownUser 报告用户是否已有私有表。
func (c *Chain) KnownUser(userID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.users[userID]
	return ok
}
