package usecase

import (
	"sort"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// MatchConfig holds configuration shared by the category and dish resolvers
type MatchConfig struct {
	FuzzyThreshold      float64
	SuggestionThreshold float64
	MaxSuggestions      int
	NotFoundSample      int
	// MinSubstringLength is the shortest text allowed to match by containment.
	MinSubstringLength int
	// MenuPriority lists menu ids scanned first, in this order.
	MenuPriority []domain.ID
	// BarMenuIDs are menus holding alcohol; they are scanned last.
	BarMenuIDs      []domain.ID
	BreakfastMenuID domain.ID
	Vocabulary      Vocabulary

	EnableDebugLogging bool
}

func (c MatchConfig) withDefaults() MatchConfig {
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		c.FuzzyThreshold = 0.8
	}
	if c.SuggestionThreshold <= 0 || c.SuggestionThreshold > 1 {
		c.SuggestionThreshold = 0.4
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = 3
	}
	if c.NotFoundSample <= 0 {
		c.NotFoundSample = 5
	}
	c.Vocabulary = mergeVocabulary(DefaultVocabulary(), c.Vocabulary)
	return c
}

// orderedMenu is a menu in scan order.
type orderedMenu struct {
	menu *domain.Menu
	bar  bool
}

// menuOrder puts menus from several snapshots into one stable scan order:
// non-bar menus before bar menus, then snapshot order, then configured
// priority, then ascending id. A menu id present in several snapshots is
// taken from the first one.
type menuOrder struct {
	norm     *QueryNormalizer
	priority map[domain.ID]int
	bar      map[domain.ID]bool
}

func newMenuOrder(norm *QueryNormalizer, priority, bar []domain.ID) *menuOrder {
	o := &menuOrder{
		norm:     norm,
		priority: make(map[domain.ID]int, len(priority)),
		bar:      make(map[domain.ID]bool, len(bar)),
	}
	for i, id := range priority {
		if _, dup := o.priority[id]; !dup {
			o.priority[id] = i
		}
	}
	for _, id := range bar {
		o.bar[id] = true
	}
	return o
}

func (o *menuOrder) isBar(m *domain.Menu) bool {
	return o.bar[m.ID] || o.norm.IsBarLabel(o.norm.Fold(m.Name))
}

func (o *menuOrder) rank(id domain.ID) int {
	if r, ok := o.priority[id]; ok {
		return r
	}
	return len(o.priority)
}

func (o *menuOrder) arrange(snapshots []*domain.Snapshot) []orderedMenu {
	type entry struct {
		orderedMenu
		snapshot int
	}

	seen := make(map[domain.ID]bool)
	var entries []entry
	for i, snap := range snapshots {
		for _, id := range snap.MenuIDs() {
			m := snap.Menus[id]
			if m == nil || seen[id] {
				continue
			}
			seen[id] = true
			entries = append(entries, entry{orderedMenu{menu: m, bar: o.isBar(m)}, i})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.bar != b.bar {
			return !a.bar
		}
		if a.snapshot != b.snapshot {
			return a.snapshot < b.snapshot
		}
		if ra, rb := o.rank(a.menu.ID), o.rank(b.menu.ID); ra != rb {
			return ra < rb
		}
		return a.menu.ID.Less(b.menu.ID)
	})

	out := make([]orderedMenu, len(entries))
	for i, e := range entries {
		out[i] = e.orderedMenu
	}
	return out
}
