package usecase

import (
	"log"
	"strings"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// DishResolver finds individual items whose name or description contains
// every keyword of a free-text query.
type DishResolver struct {
	norm  *QueryNormalizer
	order *menuOrder

	enableDebugLogging bool
}

// NewDishResolver creates a dish resolver with the given configuration
func NewDishResolver(config MatchConfig) *DishResolver {
	config = config.withDefaults()
	norm := NewQueryNormalizer(config.Vocabulary)
	return &DishResolver{
		norm:               norm,
		order:              newMenuOrder(norm, config.MenuPriority, config.BarMenuIDs),
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Search returns the matching items across the snapshots, de-duplicated by
// item id, in menu priority order. The result is uncapped; callers limit it
// for display.
func (d *DishResolver) Search(query string, snapshots ...*domain.Snapshot) []domain.Item {
	rest, vegetarian := d.norm.StripVegetarian(query)
	keywords := d.norm.Keywords(rest)
	// "вегетарианский бекон" names meat explicitly; respect it.
	excludeMeat := vegetarian && !d.norm.MentionsMeat(d.norm.Fold(rest))
	if len(keywords) == 0 {
		keywords = d.norm.Keywords(query)
	}
	if len(keywords) == 0 {
		return nil
	}
	wantsAlcohol := d.norm.WantsAlcohol(keywords)

	if d.enableDebugLogging {
		log.Printf("[DISH] Query %q keywords=%q alcohol=%v meatless=%v", query, keywords, wantsAlcohol, excludeMeat)
	}

	var found []domain.Item
	for _, om := range d.order.arrange(snapshots) {
		if om.bar && !wantsAlcohol {
			continue
		}
		for _, cat := range om.menu.Categories.All() {
			if !wantsAlcohol && d.norm.IsBarLabel(d.norm.Fold(cat.Name)) {
				continue
			}
			for _, item := range cat.Items {
				text := d.norm.Fold(item.Name + " " + item.Description)
				if !containsAll(text, keywords) {
					continue
				}
				if excludeMeat && d.norm.MentionsMeat(text) {
					continue
				}
				found = append(found, item)
			}
		}
	}

	found = domain.DedupeItems(found)
	if d.enableDebugLogging {
		log.Printf("[DISH] Query %q matched %d items", query, len(found))
	}
	return found
}

func containsAll(text string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(text, kw) {
			return false
		}
	}
	return true
}
