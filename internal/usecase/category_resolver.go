package usecase

import (
	"log"
	"math/rand"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// CategoryResolver maps a free-text request to one category across the
// cached snapshots.
type CategoryResolver struct {
	norm   *QueryNormalizer
	order  *menuOrder
	dishes *DishResolver

	fuzzyThreshold      float64
	suggestionThreshold float64
	maxSuggestions      int
	notFoundSample      int
	minSubstring        int
	breakfastMenuID     domain.ID
	enableDebugLogging  bool

	// shuffle randomizes the not-found sample; replaced in tests.
	shuffle func(n int, swap func(i, j int))
}

// NewCategoryResolver creates a resolver. dishes may be nil, which disables
// the dish search fallback.
func NewCategoryResolver(config MatchConfig, dishes *DishResolver) *CategoryResolver {
	config = config.withDefaults()
	norm := NewQueryNormalizer(config.Vocabulary)
	return &CategoryResolver{
		norm:                norm,
		order:               newMenuOrder(norm, config.MenuPriority, config.BarMenuIDs),
		dishes:              dishes,
		fuzzyThreshold:      config.FuzzyThreshold,
		suggestionThreshold: config.SuggestionThreshold,
		maxSuggestions:      config.MaxSuggestions,
		notFoundSample:      config.NotFoundSample,
		minSubstring:        config.MinSubstringLength,
		breakfastMenuID:     config.BreakfastMenuID,
		enableDebugLogging:  config.EnableDebugLogging,
		shuffle:             rand.Shuffle,
	}
}

// candidate is one category prepared for matching.
type candidate struct {
	menu    *domain.Menu
	cat     *domain.Category
	name    string // folded name
	display string // folded display name, may equal name
	items   []domain.Item
}

// resolveQuery is the prepared form of the user's text.
type resolveQuery struct {
	text    string // normalized, case kept
	folded  string
	cluster int
}

type matchTier struct {
	via   string
	match func(q resolveQuery, c *candidate) bool
}

func (r *CategoryResolver) tiers() []matchTier {
	return []matchTier{
		{domain.ViaID, func(q resolveQuery, c *candidate) bool {
			return q.text == c.cat.ID.String()
		}},
		{domain.ViaExact, func(q resolveQuery, c *candidate) bool {
			return q.folded == c.name || q.folded == c.display
		}},
		{domain.ViaRootWord, func(q resolveQuery, c *candidate) bool {
			return q.cluster >= 0 && (r.norm.InCluster(c.name, q.cluster) || r.norm.InCluster(c.display, q.cluster))
		}},
		{domain.ViaSubstring, func(q resolveQuery, c *candidate) bool {
			return substringMatch(q.folded, c.name, r.minSubstring) || substringMatch(q.folded, c.display, r.minSubstring)
		}},
		{domain.ViaFuzzy, func(q resolveQuery, c *candidate) bool {
			return Ratio(q.folded, c.name) > r.fuzzyThreshold || Ratio(q.folded, c.display) > r.fuzzyThreshold
		}},
	}
}

// Resolve finds the category the query names. Snapshots are scanned in the
// given order; within a snapshot menus follow the configured priority.
// Matching runs tier by tier (id, exact name, word root, substring, fuzzy);
// the first tier with a hit decides, preferring a category with items.
// Without a hit, a dish search may synthesize a virtual category; otherwise
// close names are suggested or a sample of categories is offered.
func (r *CategoryResolver) Resolve(query string, snapshots ...*domain.Snapshot) *domain.MatchResult {
	result := &domain.MatchResult{Query: query}

	text := r.norm.Normalize(query)
	if text == "" || r.norm.IsNumericNoise(text) {
		result.Kind = domain.MatchClarify
		return result
	}

	q := resolveQuery{text: text, folded: r.norm.Fold(text)}
	if canonical, ok := r.norm.Canonical(q.folded); ok {
		q.folded = canonical
		result.Canonical = canonical
	}
	q.cluster = r.norm.RootCluster(q.folded)

	menus := r.order.arrange(snapshots)

	if r.breakfastMenuID != "" && r.norm.IsBreakfastQuery(q.folded) {
		if r.breakfast(result, menus) {
			return result
		}
	}

	candidates := r.candidates(menus)

	for _, tier := range r.tiers() {
		var empty *candidate
		for _, c := range candidates {
			if !tier.match(q, c) {
				continue
			}
			if len(c.items) > 0 {
				r.found(result, c, tier.via)
				return result
			}
			if empty == nil {
				empty = c
			}
		}
		if empty != nil {
			r.found(result, empty, tier.via)
			result.Kind = domain.MatchFoundEmpty
			return result
		}
	}

	if r.dishes != nil {
		if items := r.dishes.Search(text, snapshots...); len(items) > 0 {
			result.Kind = domain.MatchFound
			result.Category = &domain.Category{Name: text, Items: items, Virtual: true}
			result.CategoryName = text
			result.Items = items
			result.Via = domain.ViaDishes
			r.debugf("Query %q answered by dish search with %d items", query, len(items))
			return result
		}
	}

	if suggestions := r.suggest(q.folded, candidates); len(suggestions) > 0 {
		result.Kind = domain.MatchSuggestions
		result.Suggestions = suggestions
		r.debugf("Query %q: suggestions %q", query, suggestions)
		return result
	}

	result.Kind = domain.MatchNotFound
	result.Suggestions = r.sample(candidates)
	r.debugf("Query %q: not found", query)
	return result
}

// breakfast answers a generic breakfast request with the whole breakfast menu.
// It fails when the menu is absent or empty so the generic scan runs instead.
func (r *CategoryResolver) breakfast(result *domain.MatchResult, menus []orderedMenu) bool {
	for _, om := range menus {
		if om.menu.ID != r.breakfastMenuID {
			continue
		}
		var items []domain.Item
		for _, cat := range om.menu.Categories.All() {
			items = append(items, cat.Items...)
		}
		items = domain.DedupeItems(items)
		if len(items) == 0 {
			return false
		}
		result.Kind = domain.MatchFound
		result.Category = &domain.Category{ID: om.menu.ID, Name: om.menu.Name, Items: items}
		result.CategoryName = om.menu.Name
		result.Items = items
		result.SourceMenuID = om.menu.ID
		result.Via = domain.ViaBreakfast
		return true
	}
	return false
}

func (r *CategoryResolver) candidates(menus []orderedMenu) []*candidate {
	var out []*candidate
	for _, om := range menus {
		for _, cat := range om.menu.Categories.All() {
			c := &candidate{
				menu:  om.menu,
				cat:   cat,
				name:  r.norm.Fold(cat.Name),
				items: om.menu.CategoryItems(cat.ID),
			}
			c.display = c.name
			if cat.DisplayName != "" {
				c.display = r.norm.Fold(cat.DisplayName)
			}
			out = append(out, c)
		}
	}
	return out
}

func (r *CategoryResolver) found(result *domain.MatchResult, c *candidate, via string) {
	result.Kind = domain.MatchFound
	result.Category = c.cat
	result.CategoryName = c.cat.Label()
	result.Items = c.items
	result.SourceMenuID = c.menu.ID
	result.Via = via
	r.debugf("Query %q matched %q in menu %s via %s (%d items)",
		result.Query, c.cat.Name, c.menu.ID, via, len(c.items))
}

// suggest returns up to maxSuggestions names of non-empty categories whose
// similarity to the query clears the suggestion threshold, best first.
func (r *CategoryResolver) suggest(folded string, candidates []*candidate) []string {
	type scored struct {
		name  string
		score float64
	}

	best := make(map[string]int)
	var list []scored
	for _, c := range candidates {
		if len(c.items) == 0 {
			continue
		}
		score := max(Ratio(folded, c.name), Ratio(folded, c.display))
		if score <= r.suggestionThreshold {
			continue
		}
		if i, ok := best[c.name]; ok {
			list[i].score = max(list[i].score, score)
			continue
		}
		best[c.name] = len(list)
		list = append(list, scored{name: c.cat.Name, score: score})
	}

	sort.SliceStable(list, func(i, j int) bool { return list[i].score > list[j].score })

	var out []string
	for _, s := range list {
		if len(out) == r.maxSuggestions {
			break
		}
		out = append(out, s.name)
	}
	return out
}

// sample returns up to notFoundSample distinct names of non-empty categories
// in random order.
func (r *CategoryResolver) sample(candidates []*candidate) []string {
	seen := make(map[string]bool)
	var names []string
	for _, c := range candidates {
		if len(c.items) == 0 || seen[c.name] {
			continue
		}
		seen[c.name] = true
		names = append(names, c.cat.Name)
	}

	r.shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })
	if len(names) > r.notFoundSample {
		names = names[:r.notFoundSample]
	}
	return names
}

func (r *CategoryResolver) debugf(format string, args ...interface{}) {
	if r.enableDebugLogging {
		log.Printf("[RESOLVE] "+format, args...)
	}
}

// substringMatch reports whether either string contains the other. The
// contained side must be at least minLen runes long; minLen <= 0 allows any length.
func substringMatch(query, name string, minLen int) bool {
	if query == "" || name == "" {
		return false
	}
	if strings.Contains(name, query) && utf8.RuneCountInString(query) >= minLen {
		return true
	}
	return strings.Contains(query, name) && utf8.RuneCountInString(name) >= minLen
}
