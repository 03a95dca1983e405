package core

import "testing"

func TestCategoryRegistry(t *testing.T) {
	want := []struct {
		code  Category
		label string
		emoji string
	}{
		{CategoryFood, "Food & Dining", "🍔"},
		{CategoryTransport, "Transport", "🚗"},
		{CategoryEntertainment, "Entertainment", "🎬"},
		{CategoryBills, "Bills & Utilities", "💡"},
		{CategoryShopping, "Shopping", "🛍️"},
		{CategoryHealth, "Health & Fitness", "💊"},
		{CategoryOther, "Other", "📌"},
	}
	cats := Categories()
	if len(cats) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(cats))
	}
	for i, w := range want {
		if cats[i].Code != w.code || cats[i].Label != w.label || cats[i].Emoji != w.emoji {
			t.Errorf("entry %d = %+v, want %+v", i, cats[i], w)
		}
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Bills ")
	if err != nil || c != CategoryBills {
		t.Fatalf("got %q, %v", c, err)
	}
	if _, err := ParseCategory("groceries"); err != ErrInvalidCategory {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestUnknownCategoryFallsBackToOther(t *testing.T) {
	info := Category("groceries").Info()
	if info.Code != CategoryOther || info.BarClass != "bg-slate-500" {
		t.Fatalf("fallback = %+v", info)
	}
	if _, ok := LookupCategory("groceries"); ok {
		t.Fatalf("lookup of unknown code should fail")
	}
}
