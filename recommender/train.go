package recommender

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/markovkit/core"
)

// TrainBatch 用多个用户的完整历史并发训练模型。
// 按用户分片：同一用户的序列在一个 goroutine 内串行训练，
// 不同用户互不协调，符合底层模型"每用户单写入方"的约定。
// concurrency <= 0 时不限制并发。
func (r *Recommender) TrainBatch(ctx context.Context, histories map[string][]core.BehaviorEvent, concurrency int) error {
	if len(histories) == 0 {
		return nil
	}

	eg, _ := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	// 固定遍历顺序，跑批日志可重现
	userIDs := make([]string, 0, len(histories))
	for uid := range histories {
		userIDs = append(userIDs, uid)
	}
	sort.Strings(userIDs)

	for _, uid := range userIDs {
		userID := uid
		events := histories[userID]
		eg.Go(func() error {
			if len(events) == 0 {
				return nil
			}
			tokens := make([]string, 0, len(events))
			categories := make(map[string]string)
			trainID := userID
			processedEvents := make([]core.BehaviorEvent, 0, len(events))
			for _, ev := range events {
				processed, err := r.transformer.Apply(ev, r.cfg.PrivacyLevel)
				if err != nil {
					return err
				}
				// 变换可能哈希 user id，训练要落到变换后的表
				trainID = processed.UserID
				processedEvents = append(processedEvents, processed)
				tokens = append(tokens, r.token(processed))
				if processed.Category != "" {
					categories[processed.ItemID] = processed.Category
				}
			}

			r.TrainSequence(trainID, tokens)
			if len(categories) > 0 {
				r.model.AddItemCategories(categories)
			}

			r.mu.Lock()
			profile := r.profiles[trainID]
			if profile == nil {
				profile = core.NewUserProfile(trainID)
				profile.PrivacyLevel = int(r.cfg.PrivacyLevel)
				r.profiles[trainID] = profile
			}
			for _, ev := range processedEvents {
				profile.RecordBehavior(ev.Category, ev.Timestamp)
			}
			r.mu.Unlock()

			r.logger.Debug().
				Str("user_id", trainID).
				Int("tokens", len(tokens)).
				Msg("batch training finished for user")
			return nil
		})
	}

	return eg.Wait()
}
