package core

import (
	"hash/fnv"
	"strings"
	"time"
)

// BehaviorType 是用户行为类型。
type BehaviorType string

const (
	BehaviorClick     BehaviorType = "click"
	BehaviorView      BehaviorType = "view"
	BehaviorLike      BehaviorType = "like"
	BehaviorShare     BehaviorType = "share"
	BehaviorPurchase  BehaviorType = "purchase"
	BehaviorAddToCart BehaviorType = "add_to_cart"
	BehaviorSearch    BehaviorType = "search"
	BehaviorFollow    BehaviorType = "follow"
)

// BehaviorEvent 是一条离散的用户行为事件，是整个链路的原始输入。
// 隐私变换（privacy 包）作用在 BehaviorEvent 上；变换后的事件再被
// 编码为 Token 进入行为序列模型。
type BehaviorEvent struct {
	UserID       string         `json:"user_id"`
	BehaviorType BehaviorType   `json:"behavior_type"`
	ItemID       string         `json:"item_id"`
	Category     string         `json:"category,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Clone 返回事件的深拷贝（Metadata 浅层逐键复制）。
// 隐私变换要求不修改原始事件，统一通过 Clone 派生新事件。
func (e BehaviorEvent) Clone() BehaviorEvent {
	out := e
	if e.Metadata != nil {
		out.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// TokenSeparator 是 Token 各段之间的固定分隔符。
const TokenSeparator = "_"

// Token 把行为事件编码为序列模型的字母表单元：
//   - 两段形式：{behavior_type}_{item_id}
//   - 三段形式：{behavior_type}_{item_id}_{category}（类别感知预测使用）
//
// 编码是确定性的；由于 item_id 自身可能含 '_'，只有 type/item 的切分
// 保证可逆，category 后缀的解析可能有歧义。
func (e BehaviorEvent) Token() string {
	return string(e.BehaviorType) + TokenSeparator + e.ItemID
}

// CategoryToken 返回带类别后缀的三段 Token。类别为空时退化为两段形式。
func (e BehaviorEvent) CategoryToken() string {
	if e.Category == "" {
		return e.Token()
	}
	return e.Token() + TokenSeparator + e.Category
}

// ParseToken 把预测出的 Token 拆回 (behavior_type, item_id)。
// 只在第一个分隔符处切分，item_id 中的 '_' 得以保留。
// 无法切分时行为类型记为 "unknown"，整个 Token 作为 item_id 返回。
func ParseToken(token string) (behaviorType, itemID string) {
	parts := strings.SplitN(token, TokenSeparator, 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "unknown", token
}

// TokenCategory 提取三段 Token 中的类别段（第三段）。
// 不足三段时返回 ("", false)。
func TokenCategory(token string) (string, bool) {
	parts := strings.Split(token, TokenSeparator)
	if len(parts) < 3 {
		return "", false
	}
	return parts[2], true
}

// fallbackCategories 是物品没有显式分类时的兜底分类表。
var fallbackCategories = []string{"electronics", "clothing", "books", "food", "sports"}

// FallbackCategory 按物品 id 哈希确定性地指派一个兜底分类，
// 同一物品总落在同一分类。
func FallbackCategory(itemID string) string {
	h := fnv.New32a()
	h.Write([]byte(itemID))
	return fallbackCategories[h.Sum32()%uint32(len(fallbackCategories))]
}
