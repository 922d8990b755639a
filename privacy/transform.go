// Package privacy 实现行为事件的分级隐私变换：
// 事件在进入序列模型之前，按请求的隐私级别做匿名化、降噪或加密。
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"strings"
	"time"

	"github.com/rushteam/markovkit/core"
)

// Level 是隐私保护级别，按保护强度严格递增。
type Level int

const (
	// LevelRaw 不做任何处理
	LevelRaw Level = 0
	// LevelAnonymized 基础匿名化：user id 不可逆哈希，剔除可识别元数据
	LevelAnonymized Level = 1
	// LevelNoisy 在匿名化基础上对时间戳加均匀随机偏移
	LevelNoisy Level = 2
	// LevelEncrypted 在匿名化基础上对物品/分类/字符串元数据逐字段加密
	LevelEncrypted Level = 3
)

func (l Level) String() string {
	switch l {
	case LevelRaw:
		return "raw"
	case LevelAnonymized:
		return "anonymized"
	case LevelNoisy:
		return "noisy"
	case LevelEncrypted:
		return "encrypted"
	default:
		return "unknown"
	}
}

// anonymizedIDLen 是匿名化 user id 截断后的十六进制长度。
const anonymizedIDLen = 16

// maxTimestampJitter 是 NOISY 级别时间戳偏移的上界（正负对称）。
// 这是弱混淆，不是校准过 epsilon 的差分隐私机制；保持均匀 ±30 分钟
// 的行为契约即可。
const maxTimestampJitter = 30 * time.Minute

// identifierDenylist 是 ANONYMIZED 级别要剔除的元数据字段名（小写比较）。
var identifierDenylist = map[string]bool{
	"email":   true,
	"phone":   true,
	"address": true,
	"name":    true,
	"ip":      true,
}

// AnonymizeUserID 对 user id 做不可逆哈希。
// 同一原始 id 哈希结果稳定，匿名化后事件仍能按用户聚合；逆向不可行，
// 不同 id 碰撞概率可忽略。
func AnonymizeUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:anonymizedIDLen]
}

// Transformer 把 (行为事件, 隐私级别) 映射为脱敏后的事件。
// 变换从不修改输入事件；对四个级别都是全函数，越界级别按 RAW 透传。
type Transformer struct {
	cipher *Cipher
}

func NewTransformer() (*Transformer, error) {
	c, err := NewCipher()
	if err != nil {
		return nil, err
	}
	return &Transformer{cipher: c}, nil
}

// Cipher 返回内部密码器（测试解密验证用）。
func (t *Transformer) Cipher() *Cipher { return t.cipher }

// Apply 按级别变换事件：
//
//	RAW        原样返回副本
//	ANONYMIZED user id 哈希 + 元数据去标识
//	NOISY      user id 哈希 + 时间戳 ±30 分钟均匀抖动
//	ENCRYPTED  user id 哈希 + item/category/字符串元数据逐字段加密
//
// 只有 ENCRYPTED 级别可能出错（随机数/加密失败）。
func (t *Transformer) Apply(event core.BehaviorEvent, level Level) (core.BehaviorEvent, error) {
	switch level {
	case LevelAnonymized:
		out := event.Clone()
		out.UserID = AnonymizeUserID(event.UserID)
		out.Metadata = stripIdentifiers(out.Metadata)
		return out, nil

	case LevelNoisy:
		out := event.Clone()
		out.UserID = AnonymizeUserID(event.UserID)
		out.Timestamp = jitterTimestamp(event.Timestamp)
		return out, nil

	case LevelEncrypted:
		return t.encryptEvent(event)

	default:
		// RAW 以及任何越界级别：透传
		return event.Clone(), nil
	}
}

// stripIdentifiers 剔除命中身份信息黑名单的元数据字段。
func stripIdentifiers(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if identifierDenylist[strings.ToLower(k)] {
			continue
		}
		out[k] = v
	}
	return out
}

// jitterTimestamp 给时间戳加 [-30min, +30min] 内的均匀随机偏移（分钟粒度）。
func jitterTimestamp(ts time.Time) time.Time {
	minutes := rand.Intn(61) - 30
	return ts.Add(time.Duration(minutes) * time.Minute)
}

func (t *Transformer) encryptEvent(event core.BehaviorEvent) (core.BehaviorEvent, error) {
	out := event.Clone()
	out.UserID = AnonymizeUserID(event.UserID)

	var err error
	out.ItemID, err = t.cipher.EncryptString(event.ItemID)
	if err != nil {
		return core.BehaviorEvent{}, err
	}
	if event.Category != "" {
		out.Category, err = t.cipher.EncryptString(event.Category)
		if err != nil {
			return core.BehaviorEvent{}, err
		}
	}

	if event.Metadata != nil {
		out.Metadata = make(map[string]any, len(event.Metadata))
		for k, v := range event.Metadata {
			if s, ok := v.(string); ok && s != "" {
				enc, err := t.cipher.EncryptString(s)
				if err != nil {
					return core.BehaviorEvent{}, err
				}
				out.Metadata[k] = enc
				continue
			}
			// 非字符串值原样透传
			out.Metadata[k] = v
		}
	}
	return out, nil
}
