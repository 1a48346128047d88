package usecase

import (
	"time"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

var fixtureTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testItem(id, name, description string, price float64) domain.Item {
	return domain.Item{ID: domain.ID(id), Name: name, Description: description, Price: price}
}

func testCategory(id, name string, items ...domain.Item) *domain.Category {
	return &domain.Category{ID: domain.ID(id), Name: name, Items: items}
}

func testMenu(id, name string, cats ...*domain.Category) *domain.Menu {
	m := domain.NewMenu(domain.ID(id), name)
	for _, c := range cats {
		m.Categories.Add(c)
	}
	return m
}

func testSnapshot(at time.Time, menus ...*domain.Menu) *domain.Snapshot {
	s := domain.NewSnapshot(1, at)
	for _, m := range menus {
		s.Menus[m.ID] = m
	}
	return s
}

func deliveryMenu() *domain.Menu {
	return testMenu("90", "Доставка",
		testCategory("101", "ГОРЯЧИЕ БЛЮДА",
			testItem("1", "Бефстроганов", "говядина, сливки", 590),
			testItem("2", "Паста с грибами", "шампиньоны, сливки", 450),
		),
		testCategory("102", "Салаты",
			testItem("3", "Салат с баклажанами и томатами", "", 390),
			testItem("4", "Цезарь", "с курицей", 450),
			testItem("5", "Вегетарианский салат", "огурцы, томаты", 350),
			testItem("6", "Вегетарианский бургер", "с беконом", 500),
		),
		testCategory("103", "Супы",
			testItem("7", "Борщ", "со сметаной", 320),
		),
		testCategory("104", "Сезонное меню"),
	)
}

func barMenu() *domain.Menu {
	return testMenu("95", "Бар",
		testCategory("201", "Коктейли",
			testItem("8", "Мохито", "ром, мята", 550),
		),
		testCategory("202", "Салаты",
			testItem("9", "Салат бара", "", 300),
		),
	)
}

func breakfastMenu() *domain.Menu {
	return testMenu("97", "Завтраки",
		testCategory("301", "Каши",
			testItem("10", "Овсяная каша", "", 250),
			testItem("11", "Сырники", "со сметаной", 300),
		),
	)
}

// fixtureSnapshots returns the delivery snapshot and the full snapshot.
func fixtureSnapshots() (*domain.Snapshot, *domain.Snapshot) {
	delivery := testSnapshot(fixtureTime, deliveryMenu())
	full := testSnapshot(fixtureTime, deliveryMenu(), barMenu(), breakfastMenu())
	return delivery, full
}

func itemIDs(items []domain.Item) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID.String()
	}
	return ids
}
