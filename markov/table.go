// Package markov 实现基于可变阶马尔可夫链的用户行为序列建模：
// 转移计数表（TransitionTable）、单阶链（Chain）、多阶混合模型（MultiOrder）
// 以及模型快照的导入导出（snapshot.go）。
package markov

import "strings"

// contextSeparator 是上下文 key 中各 Token 之间的分隔符。
// 使用 ASCII Unit Separator，避免与 Token 自身的 '_' 冲突，
// 并保证上下文序列与 map key 之间的转换无歧义。
const contextSeparator = "\x1f"

// ContextKey 把一段定长 Token 序列编码为 map key。
func ContextKey(tokens []string) string {
	return strings.Join(tokens, contextSeparator)
}

// ContextTokens 把 map key 还原为 Token 序列。
func ContextTokens(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, contextSeparator)
}

// TransitionTable 是单一阶数的转移计数表：
// context → (next token → 出现次数)。
//
// 设计要点：
//   - 显式两级关联容器，写入统一走 Increment（insert-if-absent else increment）
//   - 计数单调不减，只有 Reset 会清空
//   - 每个 context 的总计数即其所有 next 计数之和，context 存在则总计数 > 0
//
// TransitionTable 自身不做并发控制，由持有它的 Chain 统一加锁。
type TransitionTable struct {
	order       int
	transitions map[string]map[string]float64
	totals      map[string]float64
}

func NewTransitionTable(order int) *TransitionTable {
	return &TransitionTable{
		order:       order,
		transitions: make(map[string]map[string]float64),
		totals:      make(map[string]float64),
	}
}

func (t *TransitionTable) Order() int { return t.order }

// Increment 给 context → next 的计数加 delta（delta <= 0 时忽略）。
func (t *TransitionTable) Increment(contextKey, next string, delta float64) {
	if delta <= 0 {
		return
	}
	row, ok := t.transitions[contextKey]
	if !ok {
		row = make(map[string]float64)
		t.transitions[contextKey] = row
	}
	row[next] += delta
	t.totals[contextKey] += delta
}

// Probabilities 返回 context 的条件分布 next → count/total。
// 除数是该 context 自身的总计数，不是全局总计数。
// context 未出现过时返回空 map。
func (t *TransitionTable) Probabilities(contextKey string) map[string]float64 {
	row, ok := t.transitions[contextKey]
	if !ok {
		return nil
	}
	total := t.totals[contextKey]
	if total <= 0 {
		return nil
	}
	out := make(map[string]float64, len(row))
	for next, count := range row {
		out[next] = count / total
	}
	return out
}

// PredictNext 返回 context 下计数最大的 next token。
// 计数相同时按 token 字典序取最小者，保证跨运行可复现。
// context 未出现过时返回 ("", false)。
func (t *TransitionTable) PredictNext(contextKey string) (string, bool) {
	row, ok := t.transitions[contextKey]
	if !ok || len(row) == 0 {
		return "", false
	}
	var best string
	bestCount := -1.0
	for next, count := range row {
		if count > bestCount || (count == bestCount && next < best) {
			best = next
			bestCount = count
		}
	}
	return best, true
}

// Contexts 返回已出现的 context 数量。
func (t *TransitionTable) Contexts() int { return len(t.transitions) }

// Transitions 返回所有 context 的出边总数。
func (t *TransitionTable) Transitions() int {
	n := 0
	for _, row := range t.transitions {
		n += len(row)
	}
	return n
}

// Total 返回 context 的总计数；未出现过时为 0。
func (t *TransitionTable) Total(contextKey string) float64 {
	return t.totals[contextKey]
}

// Snapshot 导出整表的深拷贝（context key → next → count）。
func (t *TransitionTable) Snapshot() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t.transitions))
	for ctx, row := range t.transitions {
		cp := make(map[string]float64, len(row))
		for next, count := range row {
			cp[next] = count
		}
		out[ctx] = cp
	}
	return out
}

// Reset 清空整表（仅导入模型时使用）。
func (t *TransitionTable) Reset() {
	t.transitions = make(map[string]map[string]float64)
	t.totals = make(map[string]float64)
}
