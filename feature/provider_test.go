package feature

import (
	"context"
	"testing"
)

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider()
	ctx := context.Background()

	attrs, err := p.Demographics(ctx, "unknown")
	if err != nil {
		t.Fatalf("Demographics() error: %v", err)
	}
	if len(attrs) != 0 {
		t.Errorf("unknown user should yield empty demographics, got %v", attrs)
	}

	p.SetDemographics("u1", map[string]string{"age_group": "25-34", "income_level": "medium"})
	p.SetCategoryPreferences("u1", map[string]float64{"electronics": 1.5, "books": 0.8})

	attrs, err = p.Demographics(ctx, "u1")
	if err != nil {
		t.Fatalf("Demographics() error: %v", err)
	}
	if attrs["age_group"] != "25-34" || attrs["income_level"] != "medium" {
		t.Errorf("Demographics() = %v", attrs)
	}

	prefs, err := p.CategoryPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("CategoryPreferences() error: %v", err)
	}
	if prefs["electronics"] != 1.5 || prefs["books"] != 0.8 {
		t.Errorf("CategoryPreferences() = %v", prefs)
	}

	// 返回的是拷贝，调用方修改不应影响内部状态
	prefs["electronics"] = 99
	again, _ := p.CategoryPreferences(ctx, "u1")
	if again["electronics"] != 1.5 {
		t.Error("CategoryPreferences() should return a copy")
	}
}

func TestFeatureField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user_demographics:age_group", "age_group"},
		{"age_group", "age_group"},
		{"a:b:c", "c"},
	}
	for _, tt := range tests {
		if got := featureField(tt.in); got != tt.want {
			t.Errorf("featureField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
