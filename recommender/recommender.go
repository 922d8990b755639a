// Package recommender 把行为摄入、隐私变换、行为链模型、召回/过滤/排序
// Pipeline 和快照存储组装成一个可直接使用的推荐器门面。
package recommender

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/feature"
	"github.com/rushteam/markovkit/filter"
	"github.com/rushteam/markovkit/markov"
	"github.com/rushteam/markovkit/pipeline"
	"github.com/rushteam/markovkit/privacy"
	"github.com/rushteam/markovkit/rank"
	"github.com/rushteam/markovkit/recall"
	"github.com/rushteam/markovkit/rerank"
)

const (
	defaultMaxOrder     = 3
	defaultLimit        = 10
	defaultRecentWindow = 10
)

// Config 是推荐器配置。零值字段取默认值。
type Config struct {
	// MaxOrder 多阶模型的最大阶数；<= 0 时取 3
	MaxOrder int

	// PrivacyLevel 行为摄入时的隐私级别（0-3），越界按 RAW 处理
	PrivacyLevel privacy.Level

	// AlphaGlobal 混合预测中全局模型权重；0 时取召回源默认值
	AlphaGlobal float64

	// Limit 每次推荐返回的候选数上限；<= 0 时取 10
	Limit int

	// CategoryAware 是否启用类别感知预测
	CategoryAware bool

	// RecentWindow 推荐时读取的最近行为条数；<= 0 时取 10
	RecentWindow int

	// Behaviors 行为事件日志（可选；nil 时只用进程内 Token 窗口）
	Behaviors core.BehaviorStore

	// Blobs 快照存储（可选；nil 时 SnapshotToBlob 返回 NOT_SUPPORTED）
	Blobs core.BlobStore

	// Features 外部画像特征（可选）
	Features feature.Provider

	// HotStore / HotKey / HotIDs 热门兜底召回的数据来源
	HotStore core.Store
	HotKey   string
	HotIDs   []string

	// Filters 候选过滤器（黑名单、已交互、CEL 表达式等）
	Filters []filter.Filter

	// Logger 结构化日志；零值时丢弃日志
	Logger zerolog.Logger
}

// Recommender 是隐私保护行为链推荐器。
//
// 并发契约与底层模型一致：同一用户的行为摄入由调用方串行化，
// 不同用户的摄入以及任意用户的推荐读取可以并发。
type Recommender struct {
	cfg         Config
	model       *markov.MultiOrder
	transformer *privacy.Transformer
	scorer      *rank.Scorer
	pipe        *pipeline.Pipeline
	logger      zerolog.Logger

	mu       sync.RWMutex
	profiles map[string]*core.UserProfile
	// windows 是每用户最近的 Token 滑动窗口（旧 → 新），
	// 增量训练和推荐上下文都从这里取
	windows map[string][]string
}

// Response 是一次推荐请求的结果。
type Response struct {
	UserID           string
	Candidates       []*core.Candidate
	Algorithm        string
	PrivacyPreserved bool
	Confidence       float64
	GeneratedAt      time.Time
}

// New 创建推荐器。
func New(cfg Config) (*Recommender, error) {
	if cfg.MaxOrder <= 0 {
		cfg.MaxOrder = defaultMaxOrder
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = defaultRecentWindow
	}

	transformer, err := privacy.NewTransformer()
	if err != nil {
		return nil, err
	}

	r := &Recommender{
		cfg:         cfg,
		model:       markov.NewMultiOrder(cfg.MaxOrder),
		transformer: transformer,
		logger:      cfg.Logger.With().Str("component", "recommender").Logger(),
		profiles:    make(map[string]*core.UserProfile),
		windows:     make(map[string][]string),
	}

	r.scorer = &rank.Scorer{
		Profiles:   profileSource{r},
		Categories: r.model,
	}

	nodes := []pipeline.Node{
		&recall.Fanout{
			Sources: []recall.Source{
				&recall.Markov{
					Model:         r.model,
					Limit:         cfg.Limit,
					AlphaGlobal:   cfg.AlphaGlobal,
					CategoryAware: cfg.CategoryAware,
				},
				&recall.Hot{
					Store:         cfg.HotStore,
					Key:           cfg.HotKey,
					IDs:           cfg.HotIDs,
					TopK:          cfg.Limit,
					ColdStartOnly: true,
				},
			},
			Dedup: true,
		},
	}
	if len(cfg.Filters) > 0 {
		nodes = append(nodes, &filter.FilterNode{Filters: cfg.Filters})
	}
	nodes = append(nodes,
		&rank.BehaviorNode{Scorer: r.scorer},
		&rerank.TopNNode{N: cfg.Limit},
	)
	r.pipe = &pipeline.Pipeline{Nodes: nodes}

	return r, nil
}

// Model 返回底层多阶模型（统计/快照/测试用）。
func (r *Recommender) Model() *markov.MultiOrder { return r.model }

// profileSource 把推荐器的档案表暴露为打分节点的 ProfileSource。
type profileSource struct{ r *Recommender }

func (s profileSource) Profile(userID string) *core.UserProfile {
	return s.r.Profile(userID)
}

// Profile 返回用户档案；用户未知时为 nil。
func (r *Recommender) Profile(userID string) *core.UserProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[userID]
}

// AddBehavior 摄入一条行为事件：
//  1. 按配置的隐私级别变换事件
//  2. 追加到行为日志（若配置）
//  3. 更新用户档案与类别偏好
//  4. 用滑动窗口对每阶链做一次增量训练
//
// 训练用的 user id 是变换后的（匿名化级别下已哈希），
// 同一原始用户的哈希稳定，事件仍聚到同一张私有表。
func (r *Recommender) AddBehavior(ctx context.Context, event core.BehaviorEvent) error {
	processed, err := r.transformer.Apply(event, r.cfg.PrivacyLevel)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", event.UserID).Msg("privacy transform failed")
		return err
	}

	if r.cfg.Behaviors != nil {
		if err := r.cfg.Behaviors.Append(ctx, processed); err != nil {
			r.logger.Error().Err(err).Str("user_id", processed.UserID).Msg("append behavior failed")
			return err
		}
	}

	token := r.token(processed)
	userID := processed.UserID

	r.mu.Lock()
	profile := r.profiles[userID]
	if profile == nil {
		profile = core.NewUserProfile(userID)
		profile.PrivacyLevel = int(r.cfg.PrivacyLevel)
		r.profiles[userID] = profile
	}
	at := processed.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	profile.RecordBehavior(processed.Category, at)

	window := append(r.windows[userID], token)
	if max := r.cfg.MaxOrder + 1; len(window) > max {
		window = window[len(window)-max:]
	}
	r.windows[userID] = window
	r.mu.Unlock()

	if processed.Category != "" {
		r.model.AddItemCategories(map[string]string{processed.ItemID: processed.Category})
	}
	r.trainIncremental(userID, window)

	r.logger.Info().
		Str("user_id", userID).
		Str("privacy_level", r.cfg.PrivacyLevel.String()).
		Str("token", token).
		Msg("behavior added")
	return nil
}

// token 生成训练与推荐上下文共用的 Token。
// 类别感知模式下带类别后缀，训练序列与预测候选的 Token 形态一致。
func (r *Recommender) token(ev core.BehaviorEvent) string {
	if r.cfg.CategoryAware {
		return ev.CategoryToken()
	}
	return ev.Token()
}

// trainIncremental 只训练窗口末尾新产生的转移：
// 对每个阶 k，取窗口最后 k+1 个 Token 训练一次，恰好新增一条转移，
// 不会重复累计窗口内的历史转移。
func (r *Recommender) trainIncremental(userID string, window []string) {
	for k := 1; k <= r.cfg.MaxOrder; k++ {
		if len(window) < k+1 {
			break
		}
		r.model.Chain(k).Train(userID, window[len(window)-k-1:])
	}
}

// TrainSequence 用一段完整的历史 Token 序列批量训练（不做隐私变换，
// 调用方负责传入已脱敏的序列）。序列同时刷新该用户的滑动窗口。
func (r *Recommender) TrainSequence(userID string, tokens []string) {
	r.model.Train(userID, tokens)

	r.mu.Lock()
	window := tokens
	if max := r.cfg.MaxOrder + 1; len(window) > max {
		window = window[len(window)-max:]
	}
	r.windows[userID] = append([]string(nil), window...)
	r.mu.Unlock()
}

// Recommend 为用户生成推荐。
// 没有任何历史时走热门兜底，置信度固定 0.3。
func (r *Recommender) Recommend(ctx context.Context, userID string) (*Response, error) {
	rctx := r.buildContext(ctx, userID)

	if r.cfg.Features != nil {
		r.loadFeatures(ctx, userID)
	}

	candidates, err := r.pipe.Run(ctx, rctx, nil)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("pipeline failed")
		return nil, err
	}

	algorithm := "markov_chain"
	if !r.model.Chain(1).KnownUser(userID) && len(rctx.RecentTokens) == 0 {
		algorithm = "popular_items"
	}

	resp := &Response{
		UserID:           userID,
		Candidates:       candidates,
		Algorithm:        algorithm,
		PrivacyPreserved: r.cfg.PrivacyLevel > privacy.LevelRaw,
		Confidence:       r.scorer.Confidence(userID, candidates),
		GeneratedAt:      time.Now().UTC(),
	}

	r.logger.Info().
		Str("user_id", userID).
		Str("algorithm", algorithm).
		Int("candidates", len(candidates)).
		Float64("confidence", resp.Confidence).
		Msg("recommendations generated")
	return resp, nil
}

// buildContext 组装推荐请求上下文：优先从行为日志取最近事件，
// 退化到进程内 Token 窗口。
func (r *Recommender) buildContext(ctx context.Context, userID string) *core.RecommendContext {
	rctx := &core.RecommendContext{UserID: userID}

	if r.cfg.Behaviors != nil {
		events, err := r.cfg.Behaviors.Recent(ctx, userID, r.cfg.RecentWindow)
		if err == nil && len(events) > 0 {
			rctx.RecentEvents = events
			// events 新 → 旧，Token 序列要旧 → 新
			tokens := make([]string, len(events))
			for i, ev := range events {
				tokens[len(events)-1-i] = r.token(ev)
			}
			rctx.RecentTokens = tokens
			return rctx
		}
	}

	r.mu.RLock()
	window := r.windows[userID]
	rctx.RecentTokens = append([]string(nil), window...)
	r.mu.RUnlock()
	return rctx
}

// loadFeatures 从外部画像平台拉取特征并灌入模型。
// 画像平台故障只降级，不影响本次推荐。
func (r *Recommender) loadFeatures(ctx context.Context, userID string) {
	if demo, err := r.cfg.Features.Demographics(ctx, userID); err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("load demographics failed")
	} else if len(demo) > 0 {
		r.model.SetDemographics(userID, demo)
	}

	if prefs, err := r.cfg.Features.CategoryPreferences(ctx, userID); err != nil {
		r.logger.Warn().Err(err).Str("user_id", userID).Msg("load category preferences failed")
	} else if len(prefs) > 0 {
		r.model.SetCategoryPreferences(userID, prefs)
	}
}

// UserStats 返回用户在一阶链上的行为统计；用户未知时为 nil。
func (r *Recommender) UserStats(userID string) *markov.UserStats {
	return r.model.Chain(1).UserStats(userID)
}

// ModelStats 返回整个多阶模型的统计。
func (r *Recommender) ModelStats() markov.ModelStats {
	return r.model.Stats()
}

// SnapshotToBlob 导出用户（或 userID 为空时全量）模型快照并存入 BlobStore，
// 返回内容哈希。
func (r *Recommender) SnapshotToBlob(ctx context.Context, userID string) (string, error) {
	if r.cfg.Blobs == nil {
		return "", core.ErrStoreNotSupported
	}

	snap, err := r.model.Export(userID)
	if err != nil {
		return "", err
	}
	data, err := markov.EncodeMultiSnapshot(snap)
	if err != nil {
		return "", err
	}

	hash, err := r.cfg.Blobs.Store(ctx, data)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("store snapshot failed")
		return "", err
	}

	r.logger.Info().Str("user_id", userID).Str("content_hash", hash).Msg("model snapshot stored")
	return hash, nil
}

// LoadFromBlob 从 BlobStore 取回快照并合并进当前模型。
func (r *Recommender) LoadFromBlob(ctx context.Context, contentHash string) error {
	if r.cfg.Blobs == nil {
		return core.ErrStoreNotSupported
	}

	data, err := r.cfg.Blobs.Retrieve(ctx, contentHash)
	if err != nil {
		return err
	}
	snap, err := markov.DecodeMultiSnapshot(data)
	if err != nil {
		return err
	}
	if err := r.model.Import(snap); err != nil {
		return err
	}

	r.logger.Info().Str("content_hash", contentHash).Msg("model snapshot loaded")
	return nil
}
