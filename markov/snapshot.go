package markov

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rushteam/markovkit/core"
)

// contentHashLen 是内容哈希截断后的十六进制长度。
// 哈希只用于缓存失效/版本控制，不用于防篡改。
const contentHashLen = 16

// Snapshot 是单阶模型的可移植导出形式。
// Transitions 的 key 是字符串化的 context（Token 以分隔符连接），
// 不含任何语言相关的元组结构，可直接 JSON 序列化与回导。
type Snapshot struct {
	ID          string                        `json:"id"`
	Order       int                           `json:"order"`
	UserID      string                        `json:"user_id,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
	ContentHash string                        `json:"content_hash"`
	Transitions map[string]map[string]float64 `json:"transitions"`
	Stats       *UserStats                    `json:"stats,omitempty"`
	Meta        map[string]any                `json:"meta,omitempty"`
}

// MultiSnapshot 是多阶模型的导出形式：各阶 Snapshot 加辅助映射。
// 指定了 UserID 时只包含该用户的私有表与偏好。
type MultiSnapshot struct {
	ID                  string                        `json:"id"`
	MaxOrder            int                           `json:"max_order"`
	UserID              string                        `json:"user_id,omitempty"`
	CreatedAt           time.Time                     `json:"created_at"`
	ContentHash         string                        `json:"content_hash"`
	Orders              []*Snapshot                   `json:"orders"`
	ItemCategories      map[string]string             `json:"item_categories,omitempty"`
	CategoryPreferences map[string]map[string]float64 `json:"category_preferences,omitempty"`
	Demographics        map[string]map[string]string  `json:"demographics,omitempty"`
}

// 导入导出错误定义
var (
	// ErrUnknownUser 表示按用户导出时该用户没有私有表
	ErrUnknownUser = core.NewDomainError(core.ModuleCodec, core.ErrorCodeNotFound, "codec: user has no trained model")

	// ErrSnapshotMismatch 表示快照阶数/结构与当前模型不匹配
	ErrSnapshotMismatch = core.NewDomainError(core.ModuleCodec, core.ErrorCodeMismatch, "codec: snapshot does not match model")
)

// contentHash 对转移数据做规范化（key 排序）序列化后取截断 sha256。
// 当且仅当转移数据变化时哈希变化。
func contentHash(transitions map[string]map[string]float64) (string, error) {
	// goccy/go-json 与 encoding/json 一致：map key 按字典序输出
	data, err := json.Marshal(transitions)
	if err != nil {
		return "", core.NewDomainError(core.ModuleCodec, core.ErrorCodeSerialization,
			"codec: canonicalize transitions: "+err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:contentHashLen], nil
}

// Export 导出单阶模型的快照。
// userID 为空时导出全局表；非空时导出该用户的私有表（附带行为统计），
// 用户没有私有表时返回 ErrUnknownUser。
func (c *Chain) Export(userID string) (*Snapshot, error) {
	c.mu.RLock()
	var table *TransitionTable
	if userID == "" {
		table = c.global
	} else {
		table = c.users[userID]
	}
	if table == nil {
		c.mu.RUnlock()
		return nil, ErrUnknownUser
	}
	transitions := table.Snapshot()
	c.mu.RUnlock()

	hash, err := contentHash(transitions)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:          uuid.NewString(),
		Order:       c.order,
		UserID:      userID,
		CreatedAt:   time.Now().UTC(),
		ContentHash: hash,
		Transitions: transitions,
	}
	if userID != "" {
		snap.Stats = c.UserStats(userID)
	}
	return snap, nil
}

// Import 从快照重建转移表，是 Export 的逆操作。
// 快照阶数与模型不一致、context 的 Token 数与阶数不符、或计数非正，
// 都视为结构不匹配并整体拒绝（不做部分导入）。
// 快照带 UserID 时重建该用户的私有表，否则重建全局表。
func (c *Chain) Import(snap *Snapshot) error {
	if snap == nil || snap.Order != c.order || snap.Transitions == nil {
		return ErrSnapshotMismatch
	}
	// 先整体校验，再落表
	for key, row := range snap.Transitions {
		if len(ContextTokens(key)) != c.order || len(row) == 0 {
			return ErrSnapshotMismatch
		}
		for _, count := range row {
			if count <= 0 {
				return ErrSnapshotMismatch
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	table := NewTransitionTable(c.order)
	for key, row := range snap.Transitions {
		for next, count := range row {
			table.Increment(key, next, count)
		}
	}

	if snap.UserID != "" {
		c.users[snap.UserID] = table
	} else {
		c.global = table
	}
	return nil
}

// Export 导出多阶模型的快照。
// userID 非空时只导出该用户在各阶的私有表；某些阶该用户可能没有
// 私有表（序列太短喂不进高阶），这些阶被跳过；所有阶都没有时返回
// ErrUnknownUser。
func (m *MultiOrder) Export(userID string) (*MultiSnapshot, error) {
	snap := &MultiSnapshot{
		ID:        uuid.NewString(),
		MaxOrder:  m.maxOrder,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	}

	for _, chain := range m.chains {
		os, err := chain.Export(userID)
		if err != nil {
			if userID != "" && core.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		snap.Orders = append(snap.Orders, os)
	}
	if userID != "" && len(snap.Orders) == 0 {
		return nil, ErrUnknownUser
	}

	m.mu.RLock()
	snap.ItemCategories = copyStringMap(m.itemCategory)
	if userID != "" {
		if prefs, ok := m.categoryPrefs[userID]; ok {
			snap.CategoryPreferences = map[string]map[string]float64{userID: copyFloatMap(prefs)}
		}
		if demo, ok := m.demographics[userID]; ok {
			snap.Demographics = map[string]map[string]string{userID: copyStringMap(demo)}
		}
	} else {
		snap.CategoryPreferences = make(map[string]map[string]float64, len(m.categoryPrefs))
		for uid, prefs := range m.categoryPrefs {
			snap.CategoryPreferences[uid] = copyFloatMap(prefs)
		}
		snap.Demographics = make(map[string]map[string]string, len(m.demographics))
		for uid, demo := range m.demographics {
			snap.Demographics[uid] = copyStringMap(demo)
		}
	}
	m.mu.RUnlock()

	// 整体哈希：各阶转移数据合并后统一规范化，阶数作为 key 前缀区分
	combined := make(map[string]map[string]float64)
	for _, os := range snap.Orders {
		for key, row := range os.Transitions {
			combined[strconv.Itoa(os.Order)+"\x1e"+key] = row
		}
	}
	hash, err := contentHash(combined)
	if err != nil {
		return nil, err
	}
	snap.ContentHash = hash
	return snap, nil
}

// Import 从多阶快照重建模型。MaxOrder 不一致、或任一阶导入失败，
// 都视为不匹配；为避免部分导入，先校验所有阶再逐阶落表。
func (m *MultiOrder) Import(snap *MultiSnapshot) error {
	if snap == nil || snap.MaxOrder != m.maxOrder {
		return ErrSnapshotMismatch
	}
	for _, os := range snap.Orders {
		if os == nil || os.Order < 1 || os.Order > m.maxOrder {
			return ErrSnapshotMismatch
		}
		chain := m.chains[os.Order-1]
		for key, row := range os.Transitions {
			if len(ContextTokens(key)) != chain.order || len(row) == 0 {
				return ErrSnapshotMismatch
			}
			for _, count := range row {
				if count <= 0 {
					return ErrSnapshotMismatch
				}
			}
		}
	}

	for _, os := range snap.Orders {
		if err := m.chains[os.Order-1].Import(os); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for item, cat := range snap.ItemCategories {
		m.itemCategory[item] = cat
	}
	for uid, prefs := range snap.CategoryPreferences {
		m.categoryPrefs[uid] = copyFloatMap(prefs)
	}
	for uid, demo := range snap.Demographics {
		m.demographics[uid] = copyStringMap(demo)
	}
	return nil
}

// EncodeSnapshot 把快照序列化为可存入 BlobStore 的字节。
// 快照中存在无法序列化的值（如 Meta 里的 channel）时失败，
// 调用方应在任何写入动作之前调用它。
func EncodeSnapshot(snap *Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleCodec, core.ErrorCodeSerialization,
			"codec: encode snapshot: "+err.Error())
	}
	return data, nil
}

// DecodeSnapshot 是 EncodeSnapshot 的逆操作。
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, core.NewDomainError(core.ModuleCodec, core.ErrorCodeSerialization,
			"codec: decode snapshot: "+err.Error())
	}
	return &snap, nil
}

// EncodeMultiSnapshot 序列化多阶快照。
func EncodeMultiSnapshot(snap *MultiSnapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, core.NewDomainError(core.ModuleCodec, core.ErrorCodeSerialization,
			"codec: encode multi snapshot: "+err.Error())
	}
	return data, nil
}

// DecodeMultiSnapshot 反序列化多阶快照。
func DecodeMultiSnapshot(data []byte) (*MultiSnapshot, error) {
	var snap MultiSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, core.NewDomainError(core.ModuleCodec, core.ErrorCodeSerialization,
			"codec: decode multi snapshot: "+err.Error())
	}
	return &snap, nil
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
