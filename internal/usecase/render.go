package usecase

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// DefaultDishLimit caps dish lists shown to a chat user.
const DefaultDishLimit = 20

// FormatPrice renders a price in rubles, dropping zero kopecks.
func FormatPrice(price float64) string {
	if price == math.Trunc(price) {
		return strconv.FormatFloat(price, 'f', 0, 64) + " ₽"
	}
	return strings.Replace(strconv.FormatFloat(price, 'f', 2, 64), ".", ",", 1) + " ₽"
}

func formatItem(item domain.Item) string {
	line := fmt.Sprintf("• %s: %s", item.Name, FormatPrice(item.Price))
	if item.Weight != nil && *item.Weight > 0 {
		line += fmt.Sprintf(" (%s г)", strconv.FormatFloat(*item.Weight, 'f', -1, 64))
	}
	return line
}

func writeItems(b *strings.Builder, items []domain.Item, limit int) {
	if limit <= 0 {
		limit = DefaultDishLimit
	}
	for i, item := range items {
		if i == limit {
			fmt.Fprintf(b, "\n…и ещё %d", len(items)-limit)
			break
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(formatItem(item))
	}
}

// RenderMatch turns a category resolution into chat text.
func RenderMatch(result *domain.MatchResult, limit int) string {
	if result == nil {
		return ""
	}

	var b strings.Builder
	switch result.Kind {
	case domain.MatchFound:
		fmt.Fprintf(&b, "%s:\n", result.CategoryName)
		writeItems(&b, result.Items, limit)
	case domain.MatchFoundEmpty:
		fmt.Fprintf(&b, "В категории «%s» сейчас нет блюд.", result.CategoryName)
	case domain.MatchSuggestions:
		fmt.Fprintf(&b, "Не нашёл категорию «%s». Возможно, вы имели в виду: %s?",
			result.Query, strings.Join(result.Suggestions, ", "))
	case domain.MatchClarify:
		b.WriteString("Уточните, пожалуйста, какую категорию или блюдо показать.")
	default:
		if len(result.Suggestions) == 0 {
			fmt.Fprintf(&b, "Не нашёл категорию «%s».", result.Query)
			break
		}
		fmt.Fprintf(&b, "Не нашёл категорию «%s». Есть, например: %s.",
			result.Query, strings.Join(result.Suggestions, ", "))
	}
	return b.String()
}

// RenderDishes lists dish search results, capped at limit.
func RenderDishes(query string, items []domain.Item, limit int) string {
	if len(items) == 0 {
		return fmt.Sprintf("По запросу «%s» ничего не нашлось.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "По запросу «%s»:\n", query)
	writeItems(&b, items, limit)
	return b.String()
}

// RenderMenuContext renders a snapshot as compact text for the language
// model: one heading per menu, one per non-empty category, one line per item.
func RenderMenuContext(snap *domain.Snapshot) string {
	var b strings.Builder
	for _, id := range snap.MenuIDs() {
		menu := snap.Menus[id]
		if menu == nil || menu.ItemCount() == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n", menu.Name)
		for _, cat := range menu.Categories.All() {
			if len(cat.Items) == 0 {
				continue
			}
			fmt.Fprintf(&b, "### %s\n", cat.Name)
			for _, item := range cat.Items {
				fmt.Fprintf(&b, "- %s | %s", item.Name, FormatPrice(item.Price))
				if item.Weight != nil && *item.Weight > 0 {
					fmt.Fprintf(&b, " | %s г", strconv.FormatFloat(*item.Weight, 'f', -1, 64))
				}
				if item.Calories != nil {
					fmt.Fprintf(&b, " | %s ккал", strconv.FormatFloat(*item.Calories, 'f', -1, 64))
				}
				if item.Description != "" {
					fmt.Fprintf(&b, " | %s", item.Description)
				}
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}
