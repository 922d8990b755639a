package store

import (
	"context"
	"time"

	json "github.com/goccy/go-json"

	"github.com/rushteam/markovkit/core"
)

const defaultBehaviorKeyPrefix = "behavior:events:"

// BehaviorLog 把 KeyValueStore 的有序集合适配成行为事件日志。
// 每个用户一个 zset，score 为事件时间戳（纳秒），member 为事件 JSON，
// Recent 直接利用 ZRange 的降序语义取最近 N 条。
type BehaviorLog struct {
	kv core.KeyValueStore

	// KeyPrefix 为空时使用默认前缀，实际 key 为 {KeyPrefix}{UserID}
	KeyPrefix string
}

func NewBehaviorLog(kv core.KeyValueStore) *BehaviorLog {
	return &BehaviorLog{kv: kv}
}

func (l *BehaviorLog) key(userID string) string {
	prefix := l.KeyPrefix
	if prefix == "" {
		prefix = defaultBehaviorKeyPrefix
	}
	return prefix + userID
}

// Append 追加一条行为事件。时间戳为零值时补当前时间。
func (l *BehaviorLog) Append(ctx context.Context, event core.BehaviorEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeSerialization,
			"behavior log: encode event: "+err.Error())
	}
	return l.kv.ZAdd(ctx, l.key(event.UserID), float64(event.Timestamp.UnixNano()), string(data))
}

// Recent 返回用户最近的行为事件（新 → 旧），最多 limit 条。
// 损坏的成员跳过不返回错误，日志里个别脏数据不应打断推荐请求。
func (l *BehaviorLog) Recent(ctx context.Context, userID string, limit int) ([]core.BehaviorEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	members, err := l.kv.ZRange(ctx, l.key(userID), 0, int64(limit-1))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	events := make([]core.BehaviorEvent, 0, len(members))
	for _, m := range members {
		var ev core.BehaviorEvent
		if err := json.Unmarshal([]byte(m), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

var _ core.BehaviorStore = (*BehaviorLog)(nil)
