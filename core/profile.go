package core

import "time"

// UserProfile 是用户档案：行为计数、类别偏好计数、隐私级别与生命周期时间戳。
//
// 它不是某一个 Node，而是：
//   - 被打分节点用来计算偏好因子与置信度
//   - 在每次行为摄入时更新
//   - 可以由外部画像服务（feature 包）补充人口统计学属性
type UserProfile struct {
	UserID string

	// BehaviorCount 累计行为条数，驱动置信度（50 条封顶）
	BehaviorCount int

	// CategoryCounts 按类别累计的行为计数，驱动偏好因子
	CategoryCounts map[string]int

	// Demographics 人口统计学属性（age_group / income_level / location 等），
	// 可缺省；缺省时对预测无影响
	Demographics map[string]string

	// PrivacyLevel 该用户行为摄入时使用的隐私级别（0-3）
	PrivacyLevel int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUserProfile(userID string) *UserProfile {
	now := time.Now()
	return &UserProfile{
		UserID:         userID,
		CategoryCounts: make(map[string]int),
		Demographics:   make(map[string]string),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RecordBehavior 记录一次行为：计数加一，类别偏好累计，刷新更新时间。
func (p *UserProfile) RecordBehavior(category string, at time.Time) {
	p.BehaviorCount++
	if category != "" {
		if p.CategoryCounts == nil {
			p.CategoryCounts = make(map[string]int)
		}
		p.CategoryCounts[category]++
	}
	p.UpdatedAt = at
}

// PreferenceFactor 计算用户对某个类别的偏好因子。
// 无任何类别计数时返回 1.0；偏好类别抬升到 1.0 以上，其余保持 1.0。
func (p *UserProfile) PreferenceFactor(category string) float64 {
	total := 0
	for _, c := range p.CategoryCounts {
		total += c
	}
	if total == 0 {
		return 1.0
	}
	if n, ok := p.CategoryCounts[category]; ok {
		return 1.0 + float64(n)/float64(total)
	}
	return 1.0
}
