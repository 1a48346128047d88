package usecase

import (
	"math"
	"sort"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// priceEpsilon absorbs float noise from the source's decimal prices.
const priceEpsilon = 1e-6

// CompareSnapshots reports which items were added, removed or changed
// between two snapshots. Items are keyed by canonical id across all menus;
// when an id appears more than once the first occurrence in menu id and
// category order wins. Nil snapshots count as empty.
func CompareSnapshots(old, current *domain.Snapshot) *domain.DiffResult {
	before := flattenSnapshot(old)
	after := flattenSnapshot(current)

	result := &domain.DiffResult{
		OldCount: len(before),
		NewCount: len(after),
	}

	for id, rec := range after {
		prev, existed := before[id]
		if !existed {
			result.Added = append(result.Added, rec)
			continue
		}
		if fields := changedFields(prev, rec); len(fields) > 0 {
			result.Changed = append(result.Changed, domain.ItemChange{
				ID:     id,
				Name:   rec.Name,
				Fields: fields,
				Old:    prev,
				New:    rec,
			})
		}
	}
	for id, rec := range before {
		if _, kept := after[id]; !kept {
			result.Removed = append(result.Removed, rec)
		}
	}

	sort.Slice(result.Added, func(i, j int) bool { return result.Added[i].ID.Less(result.Added[j].ID) })
	sort.Slice(result.Removed, func(i, j int) bool { return result.Removed[i].ID.Less(result.Removed[j].ID) })
	sort.Slice(result.Changed, func(i, j int) bool { return result.Changed[i].ID.Less(result.Changed[j].ID) })

	total := float64(result.TotalChanges())
	result.ChangePercent = math.Round(100*total/float64(max(result.OldCount, 1))*100) / 100
	return result
}

// IsSignificant applies the change threshold. The first load is always
// significant.
func IsSignificant(diff *domain.DiffResult, thresholdPercent float64, firstLoad bool) bool {
	if firstLoad {
		return true
	}
	if diff == nil {
		return false
	}
	return diff.ChangePercent >= thresholdPercent
}

func flattenSnapshot(s *domain.Snapshot) map[domain.ID]domain.ItemRecord {
	out := make(map[domain.ID]domain.ItemRecord)
	for _, menuID := range s.MenuIDs() {
		menu := s.Menus[menuID]
		if menu == nil {
			continue
		}
		for _, cat := range menu.Categories.All() {
			for _, item := range cat.Items {
				id := domain.NewID(item.ID.String())
				if id == "" {
					continue
				}
				if _, seen := out[id]; seen {
					continue
				}
				out[id] = domain.ItemRecord{
					ID:          id,
					Name:        item.Name,
					Price:       item.Price,
					Description: item.Description,
					MenuID:      menu.ID,
					Category:    cat.Name,
				}
			}
		}
	}
	return out
}

func changedFields(old, current domain.ItemRecord) []string {
	var fields []string
	if math.Abs(old.Price-current.Price) > priceEpsilon {
		fields = append(fields, "price")
	}
	if old.Name != current.Name {
		fields = append(fields, "name")
	}
	if old.Description != current.Description {
		fields = append(fields, "description")
	}
	return fields
}
