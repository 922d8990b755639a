package markov

import (
	"math"
	"testing"
)

func trainedMulti(t *testing.T) *MultiOrder {
	t.Helper()
	m := NewMultiOrder(3)
	// 三段式 Token（type_item_category），供类别感知预测解析
	m.Train("u1", []string{
		"view_p1_electronics", "click_p1_electronics", "cart_p1_electronics",
		"view_s1_clothing", "click_s1_clothing",
	})
	m.Train("u2", []string{
		"view_p1_electronics", "click_p1_electronics", "purchase_p1_electronics",
	})
	return m
}

func TestHybridPredictSumsToOne(t *testing.T) {
	m := trainedMulti(t)
	recent := []string{"view_p1_electronics", "click_p1_electronics"}

	for _, alpha := range []float64{0.0, 0.1, 0.3, 0.5, 0.9, 1.0} {
		preds := m.HybridPredict("u1", recent, alpha)
		if len(preds) == 0 {
			t.Fatalf("alpha=%v: expected predictions", alpha)
		}
		sum := 0.0
		for _, p := range preds {
			sum += p.Probability
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("alpha=%v: probabilities sum = %v, want 1.0", alpha, sum)
		}
	}
}

func TestHybridPredictRankedDescending(t *testing.T) {
	m := trainedMulti(t)
	preds := m.HybridPredict("u1", []string{"view_p1_electronics", "click_p1_electronics"}, 0.3)
	for i := 1; i < len(preds); i++ {
		if preds[i].Probability > preds[i-1].Probability {
			t.Errorf("predictions not descending at %d: %v > %v", i, preds[i].Probability, preds[i-1].Probability)
		}
	}
}

func TestHybridPredictEmptyWhenUntrained(t *testing.T) {
	m := NewMultiOrder(2)
	if preds := m.HybridPredict("u1", []string{"a", "b"}, 0.3); preds != nil {
		t.Errorf("expected empty predictions, got %v", preds)
	}
}

func TestHybridPredictUnknownUserFallsBackToGlobal(t *testing.T) {
	m := trainedMulti(t)
	preds := m.HybridPredict("stranger", []string{"view_p1_electronics", "click_p1_electronics"}, 0.5)
	if len(preds) == 0 {
		t.Fatal("unknown user should still get global predictions")
	}
}

func TestCategoryAwarePredict(t *testing.T) {
	m := trainedMulti(t)
	m.SetCategoryPreferences("u1", map[string]float64{
		"electronics": 2.0,
		"clothing":    0.5,
	})

	recent := []string{"click_p1_electronics"}
	base := m.HybridPredict("u1", recent, 0.3)
	adjusted := m.CategoryAwarePredict("u1", recent, 0.3)
	if len(adjusted) == 0 {
		t.Fatal("expected category-aware predictions")
	}

	sum := 0.0
	for _, p := range adjusted {
		sum += p.Probability
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("adjusted probabilities sum = %v, want 1.0", sum)
	}

	// 偏好调权只改变相对排序/比例，基础混合结果不变
	baseSum := 0.0
	for _, p := range base {
		baseSum += p.Probability
	}
	if math.Abs(baseSum-1.0) > 1e-9 {
		t.Errorf("base probabilities sum = %v, want 1.0", baseSum)
	}
}

func TestCategoryAwarePredictDropsUnparseable(t *testing.T) {
	m := NewMultiOrder(1)
	// 两段 Token 没有类别段，类别感知视图应剔除
	m.Train("u1", []string{"a_b", "c", "a_b", "c"})

	if preds := m.CategoryAwarePredict("u1", []string{"a_b"}, 0.3); preds != nil {
		t.Errorf("tokens without category segment must be dropped, got %v", preds)
	}
}

func TestMultiOrderAuxMaps(t *testing.T) {
	m := NewMultiOrder(2)

	m.SetDemographics("u1", map[string]string{"age_group": "25-35"})
	if demo := m.Demographics("u1"); demo["age_group"] != "25-35" {
		t.Errorf("Demographics = %v", demo)
	}

	m.AddItemCategories(map[string]string{"p1": "electronics"})
	if cat, ok := m.ItemCategory("p1"); !ok || cat != "electronics" {
		t.Errorf("ItemCategory(p1) = (%q, %v)", cat, ok)
	}
	if _, ok := m.ItemCategory("ghost"); ok {
		t.Error("unknown item must report not found")
	}
}

func TestMultiOrderStats(t *testing.T) {
	m := trainedMulti(t)
	m.AddItemCategories(map[string]string{"p1": "electronics", "s1": "clothing"})
	m.SetDemographics("u1", map[string]string{"income_level": "high"})

	stats := m.Stats()
	if stats.MaxOrder != 3 {
		t.Errorf("MaxOrder = %d, want 3", stats.MaxOrder)
	}
	if stats.TotalItems != 2 {
		t.Errorf("TotalItems = %d, want 2", stats.TotalItems)
	}
	if len(stats.Orders) != 3 {
		t.Fatalf("Orders = %d, want 3", len(stats.Orders))
	}
	if stats.Orders[0].Contexts == 0 {
		t.Error("order-1 model should have contexts after training")
	}
	for _, os := range stats.Orders {
		if os.Contexts > 0 && os.AvgOutDegree <= 0 {
			t.Errorf("order %d: AvgOutDegree = %v", os.Order, os.AvgOutDegree)
		}
	}
}
