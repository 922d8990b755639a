package core

import "context"

// Store 是存储的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（store）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 避免循环依赖：领域层不依赖基础设施层
//
// 使用场景：
//   - 行为事件日志：追加事件、按时间倒序取最近 N 条
//   - 用户档案存储
//   - 热门物品列表
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取（减少网络往返）
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，支持更丰富的 KV 操作。
//
// 扩展功能：
//   - 有序集合（SortedSet）：行为事件按时间戳排序、热门排序
//   - 哈希表（Hash）：用户档案字段、物品分类映射
//
// 如果后端不支持某些操作，可返回 ErrStoreNotSupported。
type KeyValueStore interface {
	Store

	// ZAdd 向有序集合添加成员（score 一般为 unix 时间戳或热度分）
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRange 按分数降序获取有序集合成员（用于"最近 N 条"/"Top N"）
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZScore 获取成员的分数
	ZScore(ctx context.Context, key string, member string) (float64, error)

	// HGet 读取 Hash 字段
	HGet(ctx context.Context, key, field string) ([]byte, error)

	// HSet 写入 Hash 字段
	HSet(ctx context.Context, key, field string, value []byte) error

	// HGetAll 读取整个 Hash
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
}

// BlobStore 是内容寻址的 blob 存储领域接口，仅用于持久化/恢复模型快照。
// 核心不关心 hash 如何计算，只依赖"用返回的 hash 能取回原始字节"。
type BlobStore interface {
	// Store 存储一段字节，返回内容哈希
	Store(ctx context.Context, data []byte) (string, error)

	// Retrieve 按内容哈希取回字节
	Retrieve(ctx context.Context, contentHash string) ([]byte, error)
}

// BehaviorStore 是行为事件日志的领域接口。
// 核心只需要两种能力：追加事件、按时间倒序取最近的有限条。
type BehaviorStore interface {
	// Append 追加一条行为事件
	Append(ctx context.Context, event BehaviorEvent) error

	// Recent 返回用户最近的行为事件（新 → 旧），最多 limit 条
	Recent(ctx context.Context, userID string, limit int) ([]BehaviorEvent, error)
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")

	// ErrBlobNotFound 表示内容哈希对应的 blob 不存在
	ErrBlobNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: blob not found")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	if err == nil {
		return false
	}
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
