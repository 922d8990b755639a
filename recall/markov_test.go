package recall

import (
	"context"
	"testing"

	"github.com/rushteam/markovkit/core"
	"github.com/rushteam/markovkit/markov"
)

func trainedModel(t *testing.T) *markov.MultiOrder {
	t.Helper()
	m := markov.NewMultiOrder(2)
	seq := []string{"view_a", "click_a", "view_b", "click_b", "purchase_b"}
	m.Train("u1", seq)
	m.Train("u1", seq)
	return m
}

func TestMarkovRecall(t *testing.T) {
	r := &Markov{Model: trainedModel(t), Limit: 5}
	rctx := &core.RecommendContext{
		UserID:       "u1",
		RecentTokens: []string{"view_a", "click_a"},
	}

	out, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected candidates for trained context")
	}

	first := out[0]
	if first.ItemID != "b" {
		t.Errorf("first candidate = %q, want b (from view_b)", first.ItemID)
	}
	if first.Meta["predicted_behavior"] != "view" {
		t.Errorf("predicted_behavior = %v", first.Meta["predicted_behavior"])
	}
	if first.Reason == "" {
		t.Error("candidate should carry a reason")
	}
	if lbl, ok := first.Labels["recall_source"]; !ok || lbl.Value != "markov" {
		t.Errorf("recall_source label = %v", first.Labels["recall_source"])
	}

	// 去重：同一 item 只出现一次
	seen := make(map[string]bool)
	for _, c := range out {
		if seen[c.ItemID] {
			t.Errorf("duplicate item %q", c.ItemID)
		}
		seen[c.ItemID] = true
	}
}

func TestMarkovRecallEmptyContext(t *testing.T) {
	r := &Markov{Model: trainedModel(t)}

	out, err := r.Recall(context.Background(), &core.RecommendContext{UserID: "u1"})
	if err != nil || out != nil {
		t.Errorf("no recent tokens should yield nothing, got %v, %v", out, err)
	}

	out, err = r.Recall(context.Background(), nil)
	if err != nil || out != nil {
		t.Errorf("nil rctx should yield nothing, got %v, %v", out, err)
	}
}

func TestMarkovRecallUntrainedContext(t *testing.T) {
	r := &Markov{Model: trainedModel(t), Limit: 5}
	rctx := &core.RecommendContext{
		UserID:       "u1",
		RecentTokens: []string{"view_zzz", "click_zzz"},
	}

	out, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("untrained context should yield nothing, got %v", out)
	}
}

func TestMarkovRecallTerminatesOnCycle(t *testing.T) {
	m := markov.NewMultiOrder(1)
	// a 和 b 互相预测，构成环
	m.Train("u1", []string{"view_a", "view_b", "view_a", "view_b", "view_a"})

	r := &Markov{Model: m, Limit: 10}
	rctx := &core.RecommendContext{UserID: "u1", RecentTokens: []string{"view_a"}}

	out, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	// 环上只有两个 item，去重后最多两个候选，但调用必须返回
	if len(out) > 2 {
		t.Errorf("cycle should produce at most 2 candidates, got %d", len(out))
	}
}

func TestMarkovRecallCategorySuffix(t *testing.T) {
	m := markov.NewMultiOrder(1)
	m.Train("u1", []string{"view_p1_electronics", "click_p1_electronics", "purchase_p1_electronics"})
	m.AddItemCategories(map[string]string{"p1": "electronics"})
	m.SetCategoryPreferences("u1", map[string]float64{"electronics": 2.0})

	r := &Markov{Model: m, Limit: 3, CategoryAware: true}
	rctx := &core.RecommendContext{
		UserID:       "u1",
		RecentTokens: []string{"view_p1_electronics"},
	}

	out, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected candidates")
	}
	if out[0].ItemID != "p1" {
		t.Errorf("category suffix should be stripped from item id, got %q", out[0].ItemID)
	}
	if out[0].Category != "electronics" {
		t.Errorf("Category = %q, want electronics", out[0].Category)
	}
}

func TestMarkovRecallKeepsUnderscoreItemIDs(t *testing.T) {
	m := markov.NewMultiOrder(2)
	seq := []string{"view_item_a", "click_item_a", "view_item_b", "click_item_b", "purchase_item_b"}
	m.Train("u1", seq)
	m.Train("u1", seq)

	r := &Markov{Model: m, Limit: 5}
	rctx := &core.RecommendContext{
		UserID:       "u1",
		RecentTokens: []string{"view_item_a", "click_item_a"},
	}

	out, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected candidates for trained context")
	}
	// item id 自带 '_'，末段不能被当成类别剥掉
	if out[0].ItemID != "item_b" {
		t.Errorf("first candidate = %q, want item_b", out[0].ItemID)
	}
	for _, c := range out {
		if c.ItemID == "item" || c.ItemID == "a" || c.ItemID == "b" {
			t.Errorf("mangled item id %q in candidates", c.ItemID)
		}
	}
}

func TestMarkovRecallCategorySuffixWithUnderscoreItemID(t *testing.T) {
	m := markov.NewMultiOrder(1)
	m.Train("u1", []string{"view_item_b_books", "click_item_b_books", "purchase_item_b_books"})
	m.AddItemCategories(map[string]string{"item_b": "books"})

	r := &Markov{Model: m, Limit: 3, CategoryAware: true}
	rctx := &core.RecommendContext{
		UserID:       "u1",
		RecentTokens: []string{"view_item_b_books"},
	}

	out, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall() error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected candidates")
	}
	if out[0].ItemID != "item_b" {
		t.Errorf("ItemID = %q, want item_b", out[0].ItemID)
	}
	if out[0].Category != "books" {
		t.Errorf("Category = %q, want books", out[0].Category)
	}
}
