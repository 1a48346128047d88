package catalog

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// displayRules map category name roots to an emoji prefix. First match wins.
var displayRules = []struct {
	roots []string
	emoji string
}{
	{[]string{"завтрак"}, "🍳"},
	{[]string{"салат"}, "🥗"},
	{[]string{"суп", "бульон"}, "🍲"},
	{[]string{"горяч", "основн"}, "🍽"},
	{[]string{"пицц"}, "🍕"},
	{[]string{"паст", "спагетт"}, "🍝"},
	{[]string{"бургер", "сэндвич"}, "🍔"},
	{[]string{"закуск"}, "🥟"},
	{[]string{"гарнир"}, "🍚"},
	{[]string{"рыб", "море"}, "🐟"},
	{[]string{"мяс", "стейк", "гриль"}, "🥩"},
	{[]string{"сыр"}, "🧀"},
	{[]string{"хлеб", "выпечк"}, "🥐"},
	{[]string{"десерт", "торт", "пирож"}, "🍰"},
	{[]string{"детск"}, "🧸"},
	{[]string{"соус"}, "🥫"},
	{[]string{"кофе", "чай"}, "☕"},
	{[]string{"коктейл"}, "🍸"},
	{[]string{"пив"}, "🍺"},
	{[]string{"вин"}, "🍷"},
	{[]string{"напит", "лимонад", "сок"}, "🥤"},
}

// DisplayName returns the category name with an emoji prefix, or "" when no
// rule applies or the name already starts with a pictograph.
func DisplayName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if first, _ := utf8.DecodeRuneInString(name); unicode.Is(unicode.So, first) {
		return ""
	}

	lower := strings.ToLower(name)
	for _, rule := range displayRules {
		for _, root := range rule.roots {
			if strings.Contains(lower, root) {
				return rule.emoji + " " + name
			}
		}
	}
	return ""
}
