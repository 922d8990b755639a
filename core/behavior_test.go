package core

import (
	"testing"
	"time"
)

func TestTokenEncoding(t *testing.T) {
	ev := BehaviorEvent{BehaviorType: BehaviorView, ItemID: "item_42", Category: "books"}

	if got := ev.Token(); got != "view_item_42" {
		t.Errorf("Token() = %q", got)
	}
	if got := ev.CategoryToken(); got != "view_item_42_books" {
		t.Errorf("CategoryToken() = %q", got)
	}

	ev.Category = ""
	if got := ev.CategoryToken(); got != "view_item_42" {
		t.Errorf("CategoryToken() 无类别时 = %q", got)
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		token    string
		wantType string
		wantItem string
	}{
		{"view_item_a", "view", "item_a"},
		{"purchase_p1", "purchase", "p1"},
		{"click_a_b_c", "click", "a_b_c"},
		{"noseparator", "unknown", "noseparator"},
		{"", "unknown", ""},
	}
	for _, tt := range tests {
		bt, item := ParseToken(tt.token)
		if bt != tt.wantType || item != tt.wantItem {
			t.Errorf("ParseToken(%q) = (%q, %q), want (%q, %q)", tt.token, bt, item, tt.wantType, tt.wantItem)
		}
	}
}

func TestTokenCategory(t *testing.T) {
	if cat, ok := TokenCategory("view_p1_electronics"); !ok || cat != "electronics" {
		t.Errorf("TokenCategory() = (%q, %v)", cat, ok)
	}
	if _, ok := TokenCategory("view_p1"); ok {
		t.Error("两段 Token 不应解析出类别")
	}
}

func TestFallbackCategoryDeterministic(t *testing.T) {
	a := FallbackCategory("item_x")
	b := FallbackCategory("item_x")
	if a != b {
		t.Errorf("同一物品分类不稳定: %q vs %q", a, b)
	}
	found := false
	for _, c := range []string{"electronics", "clothing", "books", "food", "sports"} {
		if a == c {
			found = true
		}
	}
	if !found {
		t.Errorf("兜底分类超出分类表: %q", a)
	}
}

func TestCloneIsolatesMetadata(t *testing.T) {
	ev := BehaviorEvent{
		UserID:   "u1",
		ItemID:   "a",
		Metadata: map[string]any{"email": "a@example.com"},
	}
	cp := ev.Clone()
	cp.Metadata["email"] = "redacted"
	if ev.Metadata["email"] != "a@example.com" {
		t.Error("Clone 未隔离 Metadata")
	}
}

func TestProfileRecordBehavior(t *testing.T) {
	p := NewUserProfile("u1")
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p.RecordBehavior("books", at)
	p.RecordBehavior("books", at)
	p.RecordBehavior("", at)

	if p.BehaviorCount != 3 {
		t.Errorf("BehaviorCount = %d, want 3", p.BehaviorCount)
	}
	if p.CategoryCounts["books"] != 2 {
		t.Errorf("CategoryCounts[books] = %d, want 2", p.CategoryCounts["books"])
	}
	if !p.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v", p.UpdatedAt)
	}
}
