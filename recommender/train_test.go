package recommender

import (
	"context"
	"testing"
	"time"

	"github.com/rushteam/markovkit/core"
)

func TestTrainBatch(t *testing.T) {
	r, err := New(Config{MaxOrder: 2})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	histories := make(map[string][]core.BehaviorEvent)
	for _, uid := range []string{"u1", "u2", "u3", "u4"} {
		histories[uid] = []core.BehaviorEvent{
			event(uid, core.BehaviorView, "item_a", "electronics", base),
			event(uid, core.BehaviorClick, "item_a", "electronics", base.Add(time.Minute)),
			event(uid, core.BehaviorPurchase, "item_a", "electronics", base.Add(2*time.Minute)),
		}
	}

	if err := r.TrainBatch(context.Background(), histories, 2); err != nil {
		t.Fatalf("TrainBatch() error: %v", err)
	}

	stats := r.ModelStats()
	if stats.TotalUsers != 4 {
		t.Errorf("TotalUsers = %d, want 4", stats.TotalUsers)
	}

	for uid := range histories {
		if !r.Model().Chain(1).KnownUser(uid) {
			t.Errorf("user %s should have a trained table", uid)
		}
		profile := r.Profile(uid)
		if profile == nil || profile.BehaviorCount != 3 {
			t.Errorf("profile for %s = %+v", uid, profile)
		}
	}

	// 全局表聚合了所有用户的转移
	probs := r.Model().Chain(2).GlobalProbabilities([]string{"view_item_a", "click_item_a"})
	if probs["purchase_item_a"] != 1.0 {
		t.Errorf("global probabilities = %v", probs)
	}
}

func TestTrainBatchEmpty(t *testing.T) {
	r, err := New(Config{MaxOrder: 2})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := r.TrainBatch(context.Background(), nil, 4); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
	if err := r.TrainBatch(context.Background(), map[string][]core.BehaviorEvent{"u1": nil}, 1); err != nil {
		t.Errorf("user with no events should be skipped, got %v", err)
	}
}
