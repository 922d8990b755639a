package rank

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rushteam/markovkit/core"
)

type stubProfiles map[string]*core.UserProfile

func (s stubProfiles) Profile(userID string) *core.UserProfile { return s[userID] }

type stubCategories map[string]string

func (s stubCategories) ItemCategory(itemID string) (string, bool) {
	cat, ok := s[itemID]
	return cat, ok
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

func TestTypeWeight(t *testing.T) {
	tests := []struct {
		bt   core.BehaviorType
		want float64
	}{
		{core.BehaviorPurchase, 1.0},
		{core.BehaviorAddToCart, 0.8},
		{core.BehaviorLike, 0.6},
		{core.BehaviorClick, 0.4},
		{core.BehaviorView, 0.3},
		{core.BehaviorType("mystery"), 0.5},
	}
	for _, tt := range tests {
		if got := TypeWeight(tt.bt); got != tt.want {
			t.Errorf("TypeWeight(%s) = %v, want %v", tt.bt, got, tt.want)
		}
	}
}

func TestTimeFactor(t *testing.T) {
	s := &Scorer{Now: fixedNow}

	if got := s.TimeFactor(fixedNow()); got != 1.0 {
		t.Errorf("TimeFactor(now) = %v, want 1.0", got)
	}

	// 一个半衰期（7 天）后衰减到 1/e
	weekAgo := fixedNow().Add(-7 * 24 * time.Hour)
	want := math.Exp(-1)
	if got := s.TimeFactor(weekAgo); math.Abs(got-want) > 1e-9 {
		t.Errorf("TimeFactor(-7d) = %v, want %v", got, want)
	}

	// 未来时间戳按 0 天处理
	if got := s.TimeFactor(fixedNow().Add(time.Hour)); got != 1.0 {
		t.Errorf("TimeFactor(future) = %v, want 1.0", got)
	}
}

func TestPreferenceFactor(t *testing.T) {
	profile := core.NewUserProfile("u1")
	profile.CategoryCounts = map[string]int{"electronics": 3, "books": 1}

	s := &Scorer{
		Profiles:   stubProfiles{"u1": profile},
		Categories: stubCategories{"p1": "electronics", "b1": "books"},
		Now:        fixedNow,
	}

	// electronics: 1 + 3/4
	if got := s.PreferenceFactor("u1", "p1"); math.Abs(got-1.75) > 1e-9 {
		t.Errorf("PreferenceFactor(electronics) = %v, want 1.75", got)
	}
	// books: 1 + 1/4
	if got := s.PreferenceFactor("u1", "b1"); math.Abs(got-1.25) > 1e-9 {
		t.Errorf("PreferenceFactor(books) = %v, want 1.25", got)
	}
	// 未知用户因子为 1.0
	if got := s.PreferenceFactor("ghost", "p1"); got != 1.0 {
		t.Errorf("PreferenceFactor(unknown user) = %v, want 1.0", got)
	}
}

func TestScoreComposition(t *testing.T) {
	s := &Scorer{Now: fixedNow}

	recent := []core.BehaviorEvent{
		{UserID: "u1", BehaviorType: core.BehaviorView, ItemID: "x", Timestamp: fixedNow()},
	}

	// base(0.5) × purchase(1.0) × time(1.0) × pref(1.0)
	if got := s.Score("u1", core.BehaviorPurchase, "x", recent); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Score(purchase, fresh) = %v, want 0.5", got)
	}

	// view 权重 0.3 → 0.15
	if got := s.Score("u1", core.BehaviorView, "x", recent); math.Abs(got-0.15) > 1e-9 {
		t.Errorf("Score(view, fresh) = %v, want 0.15", got)
	}

	// 无近期事件时衰减因子为 1.0
	if got := s.Score("u1", core.BehaviorPurchase, "x", nil); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Score(no recent) = %v, want 0.5", got)
	}
}

func TestConfidence(t *testing.T) {
	profile := core.NewUserProfile("u1")
	profile.BehaviorCount = 25 // historyFactor 0.5

	s := &Scorer{Profiles: stubProfiles{"u1": profile}, Now: fixedNow}

	if got := s.Confidence("u1", nil); got != 0.0 {
		t.Errorf("Confidence(empty) = %v, want 0.0", got)
	}

	candidates := []*core.Candidate{
		{ItemID: "a", Score: 0.4},
		{ItemID: "b", Score: 0.2},
	}
	// (0.5 + 0.3) / 2
	if got := s.Confidence("u1", candidates); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Confidence(known) = %v, want 0.4", got)
	}

	if got := s.Confidence("ghost", candidates); got != 0.3 {
		t.Errorf("Confidence(unknown) = %v, want 0.3", got)
	}

	// 行为数超过 50 后封顶
	profile.BehaviorCount = 500
	capped := s.Confidence("u1", candidates)
	want := (1.0 + 0.3) / 2
	if math.Abs(capped-want) > 1e-9 {
		t.Errorf("Confidence(capped) = %v, want %v", capped, want)
	}
}

func TestBehaviorNodeSortsByScore(t *testing.T) {
	s := &Scorer{Now: fixedNow}
	node := &BehaviorNode{Scorer: s}

	candidates := []*core.Candidate{
		{ItemID: "viewed", Meta: map[string]any{"predicted_behavior": "view"}},
		{ItemID: "purchased", Meta: map[string]any{"predicted_behavior": "purchase"}},
		{ItemID: "clicked", Meta: map[string]any{"predicted_behavior": "click"}},
	}

	out, err := node.Process(context.Background(), &core.RecommendContext{UserID: "u1"}, candidates)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}
	if out[0].ItemID != "purchased" {
		t.Errorf("highest-intent candidate should rank first, got %q", out[0].ItemID)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Score > out[i-1].Score {
			t.Errorf("not sorted at %d", i)
		}
	}
	if lbl, ok := out[0].Labels["rank_model"]; !ok || lbl.Value != "behavior" {
		t.Errorf("rank_model label = %v", out[0].Labels["rank_model"])
	}
}
