package usecase

import (
	"reflect"
	"testing"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

func newTestCategoryResolver(config MatchConfig) *CategoryResolver {
	r := NewCategoryResolver(config, NewDishResolver(config))
	r.shuffle = func(int, func(i, j int)) {}
	return r
}

func TestNewCategoryResolver(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		r := NewCategoryResolver(MatchConfig{}, nil)
		if r.fuzzyThreshold != 0.8 {
			t.Errorf("fuzzyThreshold = %v, want 0.8", r.fuzzyThreshold)
		}
		if r.suggestionThreshold != 0.4 {
			t.Errorf("suggestionThreshold = %v, want 0.4", r.suggestionThreshold)
		}
		if r.maxSuggestions != 3 || r.notFoundSample != 5 {
			t.Errorf("maxSuggestions = %d, notFoundSample = %d", r.maxSuggestions, r.notFoundSample)
		}
	})

	t.Run("keeps provided thresholds", func(t *testing.T) {
		r := NewCategoryResolver(MatchConfig{FuzzyThreshold: 0.9, MaxSuggestions: 1}, nil)
		if r.fuzzyThreshold != 0.9 || r.maxSuggestions != 1 {
			t.Errorf("got fuzzyThreshold = %v, maxSuggestions = %d", r.fuzzyThreshold, r.maxSuggestions)
		}
	})
}

func TestResolve_Tiers(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	delivery, full := fixtureSnapshots()

	testCases := []struct {
		name     string
		query    string
		wantName string
		wantVia  string
		wantMenu domain.ID
	}{
		{"synonym rewrite", "горячее", "ГОРЯЧИЕ БЛЮДА", domain.ViaExact, "90"},
		{"synonym with emoji", "🔥 Горячее", "ГОРЯЧИЕ БЛЮДА", domain.ViaExact, "90"},
		{"category id", "103", "Супы", domain.ViaID, "90"},
		{"exact ignoring case", "салаты", "Салаты", domain.ViaExact, "90"},
		{"root word", "горячая закуска", "ГОРЯЧИЕ БЛЮДА", domain.ViaRootWord, "90"},
		{"substring", "салат", "Салаты", domain.ViaSubstring, "90"},
		{"fuzzy typo", "салтаы", "Салаты", domain.ViaFuzzy, "90"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(tc.query, delivery, full)
			if got.Kind != domain.MatchFound {
				t.Fatalf("Kind = %v, want found", got.Kind)
			}
			if got.CategoryName != tc.wantName {
				t.Errorf("CategoryName = %q, want %q", got.CategoryName, tc.wantName)
			}
			if got.Via != tc.wantVia {
				t.Errorf("Via = %q, want %q", got.Via, tc.wantVia)
			}
			if got.SourceMenuID != tc.wantMenu {
				t.Errorf("SourceMenuID = %q, want %q", got.SourceMenuID, tc.wantMenu)
			}
			if len(got.Items) == 0 {
				t.Error("expected items")
			}
		})
	}
}

func TestResolve_SynonymIsReported(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	delivery, _ := fixtureSnapshots()

	got := r.Resolve("горячее", delivery)
	if got.Canonical != "горячие блюда" {
		t.Errorf("Canonical = %q, want горячие блюда", got.Canonical)
	}
	if got.Query != "горячее" {
		t.Errorf("Query = %q, want the original text", got.Query)
	}
}

func TestResolve_Clarify(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	delivery, full := fixtureSnapshots()

	for _, query := range []string{"12", "7", "", "🍕"} {
		t.Run(query, func(t *testing.T) {
			got := r.Resolve(query, delivery, full)
			if got.Kind != domain.MatchClarify {
				t.Errorf("Resolve(%q).Kind = %v, want clarify", query, got.Kind)
			}
			if got.Category != nil || len(got.Items) != 0 {
				t.Error("clarify must not carry a category")
			}
		})
	}
}

func TestResolve_FoundEmpty(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	delivery, _ := fixtureSnapshots()

	got := r.Resolve("Сезонное меню", delivery)
	if got.Kind != domain.MatchFoundEmpty {
		t.Fatalf("Kind = %v, want found_empty", got.Kind)
	}
	if got.CategoryName != "Сезонное меню" {
		t.Errorf("CategoryName = %q", got.CategoryName)
	}
	if got.Found() {
		t.Error("Found() must be false for an empty category")
	}
}

func TestResolve_PrefersNonEmptyWithinTier(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	snap := testSnapshot(fixtureTime,
		testMenu("10", "Обеды", testCategory("11", "Супы")),
		testMenu("20", "Ужины", testCategory("21", "Супы", testItem("1", "Уха", "", 400))),
	)

	got := r.Resolve("супы", snap)
	if got.Kind != domain.MatchFound || got.SourceMenuID != "20" {
		t.Errorf("got %v from menu %q, want found from menu 20", got.Kind, got.SourceMenuID)
	}
}

func TestResolve_PriorityIsStable(t *testing.T) {
	delivery, full := fixtureSnapshots()

	t.Run("delivery menu wins over bar menu", func(t *testing.T) {
		r := newTestCategoryResolver(MatchConfig{})
		for _, order := range [][]*domain.Snapshot{{delivery, full}, {full, delivery}, {full}} {
			got := r.Resolve("Салаты", order...)
			if got.SourceMenuID != "90" {
				t.Errorf("SourceMenuID = %q, want 90", got.SourceMenuID)
			}
		}
	})

	t.Run("repeated calls agree", func(t *testing.T) {
		r := newTestCategoryResolver(MatchConfig{})
		first := r.Resolve("салат", delivery, full)
		for i := 0; i < 10; i++ {
			if got := r.Resolve("салат", delivery, full); got.SourceMenuID != first.SourceMenuID || got.Via != first.Via {
				t.Fatalf("call %d returned %q via %s, first was %q via %s", i, got.SourceMenuID, got.Via, first.SourceMenuID, first.Via)
			}
		}
	})

	t.Run("configured priority beats id order", func(t *testing.T) {
		snap := testSnapshot(fixtureTime,
			testMenu("50", "Обеды", testCategory("51", "Супы", testItem("1", "Уха", "", 400))),
			testMenu("90", "Доставка", testCategory("91", "Супы", testItem("2", "Борщ", "", 300))),
		)

		byID := newTestCategoryResolver(MatchConfig{}).Resolve("Супы", snap)
		if byID.SourceMenuID != "50" {
			t.Errorf("without priority SourceMenuID = %q, want 50", byID.SourceMenuID)
		}

		prioritized := newTestCategoryResolver(MatchConfig{MenuPriority: []domain.ID{"90"}}).Resolve("Супы", snap)
		if prioritized.SourceMenuID != "90" {
			t.Errorf("with priority SourceMenuID = %q, want 90", prioritized.SourceMenuID)
		}
	})
}

func TestResolve_SubstringBothDirections(t *testing.T) {
	snap := testSnapshot(fixtureTime,
		testMenu("90", "Доставка",
			testCategory("101", "Ролл", testItem("1", "Филадельфия", "", 690)),
			testCategory("102", "Пицца и паста", testItem("2", "Карбонара", "", 520)),
		),
	)

	testCases := []struct {
		name     string
		min      int
		query    string
		wantKind domain.MatchKind
		wantName string
	}{
		{"name inside query", 0, "роллами", domain.MatchFound, "Ролл"},
		{"query inside name", 0, "и паста", domain.MatchFound, "Пицца и паста"},
		{"short name allowed by default", 0, "ролл с лососем", domain.MatchFound, "Ролл"},
		{"short name below configured minimum", 5, "роллами", domain.MatchSuggestions, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestCategoryResolver(MatchConfig{MinSubstringLength: tc.min})
			got := r.Resolve(tc.query, snap)
			if got.Kind != tc.wantKind {
				t.Fatalf("Kind = %v, want %v", got.Kind, tc.wantKind)
			}
			if tc.wantName != "" {
				if got.CategoryName != tc.wantName || got.Via != domain.ViaSubstring {
					t.Errorf("got %q via %q, want %q via substring", got.CategoryName, got.Via, tc.wantName)
				}
			}
		})
	}
}

func TestResolve_TierBeatsMenuPriority(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{BarMenuIDs: []domain.ID{"95"}})
	snap := testSnapshot(fixtureTime,
		testMenu("90", "Доставка", testCategory("101", "Ролы", testItem("1", "Калифорния", "", 590))),
		testMenu("95", "Бар", testCategory("201", "Роллы и суши", testItem("2", "Сет к пиву", "", 890))),
	)

	got := r.Resolve("роллы", snap)
	if got.Kind != domain.MatchFound {
		t.Fatalf("Kind = %v, want found", got.Kind)
	}
	if got.SourceMenuID != "95" || got.Via != domain.ViaSubstring {
		t.Errorf("got menu %q via %q, want the bar substring hit before the delivery fuzzy hit", got.SourceMenuID, got.Via)
	}

	t.Run("same tier keeps menu priority", func(t *testing.T) {
		snap.Menus["90"].Categories.Add(testCategory("102", "Роллы запечённые", testItem("3", "Дракон", "", 650)))
		got := r.Resolve("роллы", snap)
		if got.SourceMenuID != "90" {
			t.Errorf("SourceMenuID = %q, want 90", got.SourceMenuID)
		}
	})
}

func TestResolve_NestedCategories(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	parent := domain.ID("105")
	child := testCategory("106", "Лимонады", testItem("12", "Лимонад домашний", "", 250))
	child.ParentID = &parent
	snap := testSnapshot(fixtureTime, testMenu("90", "Доставка", testCategory("105", "Напитки"), child))

	got := r.Resolve("напитки", snap)
	if got.Kind != domain.MatchFound {
		t.Fatalf("Kind = %v, want found", got.Kind)
	}
	if got.CategoryName != "Напитки" {
		t.Errorf("CategoryName = %q, want Напитки", got.CategoryName)
	}
	if !reflect.DeepEqual(itemIDs(got.Items), []string{"12"}) {
		t.Errorf("Items = %v, want descendant item 12", itemIDs(got.Items))
	}
}

func TestResolve_DishFallback(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	delivery, full := fixtureSnapshots()

	got := r.Resolve("Бефстроганов", delivery, full)
	if got.Kind != domain.MatchFound {
		t.Fatalf("Kind = %v, want found", got.Kind)
	}
	if got.Via != domain.ViaDishes {
		t.Errorf("Via = %q, want %q", got.Via, domain.ViaDishes)
	}
	if got.Category == nil || !got.Category.Virtual {
		t.Error("expected a virtual category")
	}
	if !reflect.DeepEqual(itemIDs(got.Items), []string{"1"}) {
		t.Errorf("Items = %v, want [1]", itemIDs(got.Items))
	}

	t.Run("disabled without dish resolver", func(t *testing.T) {
		bare := NewCategoryResolver(MatchConfig{}, nil)
		if got := bare.Resolve("Бефстроганов", delivery, full); got.Kind == domain.MatchFound {
			t.Errorf("Kind = %v, want no match", got.Kind)
		}
	})
}

func TestResolve_Suggestions(t *testing.T) {
	r := newTestCategoryResolver(MatchConfig{})
	delivery, full := fixtureSnapshots()

	got := r.Resolve("сапы", delivery, full)
	if got.Kind != domain.MatchSuggestions {
		t.Fatalf("Kind = %v, want suggestions", got.Kind)
	}
	want := []string{"Супы", "Салаты"}
	if !reflect.DeepEqual(got.Suggestions, want) {
		t.Errorf("Suggestions = %q, want %q", got.Suggestions, want)
	}

	t.Run("capped", func(t *testing.T) {
		capped := newTestCategoryResolver(MatchConfig{MaxSuggestions: 1})
		got := capped.Resolve("сапы", delivery, full)
		if len(got.Suggestions) != 1 || got.Suggestions[0] != "Супы" {
			t.Errorf("Suggestions = %q, want [Супы]", got.Suggestions)
		}
	})
}

func TestResolve_NotFound(t *testing.T) {
	delivery, full := fixtureSnapshots()

	t.Run("samples non-empty categories", func(t *testing.T) {
		r := newTestCategoryResolver(MatchConfig{})
		got := r.Resolve("xyzxyz", delivery, full)
		if got.Kind != domain.MatchNotFound {
			t.Fatalf("Kind = %v, want not_found", got.Kind)
		}
		want := []string{"ГОРЯЧИЕ БЛЮДА", "Салаты", "Супы", "Каши", "Коктейли"}
		if !reflect.DeepEqual(got.Suggestions, want) {
			t.Errorf("Suggestions = %q, want %q", got.Suggestions, want)
		}
	})

	t.Run("sample is capped", func(t *testing.T) {
		r := newTestCategoryResolver(MatchConfig{NotFoundSample: 2})
		got := r.Resolve("xyzxyz", delivery, full)
		if len(got.Suggestions) != 2 {
			t.Errorf("len(Suggestions) = %d, want 2", len(got.Suggestions))
		}
	})

	t.Run("no snapshots", func(t *testing.T) {
		r := newTestCategoryResolver(MatchConfig{})
		got := r.Resolve("супы")
		if got.Kind != domain.MatchNotFound || len(got.Suggestions) != 0 {
			t.Errorf("got %v with %q", got.Kind, got.Suggestions)
		}
	})
}

func TestResolve_Breakfast(t *testing.T) {
	delivery, full := fixtureSnapshots()
	r := newTestCategoryResolver(MatchConfig{BreakfastMenuID: "97"})

	t.Run("generic request returns the breakfast menu", func(t *testing.T) {
		for _, query := range []string{"завтраки", "Что есть на завтрак?"} {
			got := r.Resolve(query, delivery, full)
			if got.Kind != domain.MatchFound || got.Via != domain.ViaBreakfast {
				t.Fatalf("Resolve(%q) = %v via %q, want found via breakfast", query, got.Kind, got.Via)
			}
			if got.SourceMenuID != "97" {
				t.Errorf("SourceMenuID = %q, want 97", got.SourceMenuID)
			}
			if !reflect.DeepEqual(itemIDs(got.Items), []string{"10", "11"}) {
				t.Errorf("Items = %v", itemIDs(got.Items))
			}
		}
	})

	t.Run("hidden breakfast menu falls back to the scan", func(t *testing.T) {
		got := r.Resolve("завтраки", delivery)
		if got.Via == domain.ViaBreakfast {
			t.Error("breakfast shortcut used without the breakfast menu")
		}
	})

	t.Run("specific dish is not a breakfast request", func(t *testing.T) {
		got := r.Resolve("сырники на завтрак со сметаной", delivery, full)
		if got.Via == domain.ViaBreakfast {
			t.Error("long query should not use the breakfast shortcut")
		}
	})
}
