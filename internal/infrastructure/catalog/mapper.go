package catalog

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/strdr1/telegram-bot-api-sub001/internal/domain"
)

// CatchAllName is used for the synthesized category of a menu without category nodes.
const CatchAllName = "All items"

// Record is one flat nomenclature entry: either a category marker or a priced item.
type Record struct {
	ID                 domain.ID
	HierarchicalID     domain.ID
	HierarchicalParent domain.ID
	IsParent           bool
	Name               string
	Description        string
	Cost               *float64
	Images             []string
	Weight             *float64
	Calories           *float64
	Proteins           *float64
	Fats               *float64
	Carbohydrates      *float64
}

type rawRecord struct {
	ID                 domain.ID       `json:"id"`
	HierarchicalID     domain.ID       `json:"hierarchicalId"`
	HierarchicalParent domain.ID       `json:"hierarchicalParent"`
	IsParent           bool            `json:"isParent"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Cost               json.RawMessage `json:"cost"`
	Images             []string        `json:"images"`
	OutQuantity        json.RawMessage `json:"outQuantity"`
	Attributes         struct {
		Calories      json.RawMessage `json:"calories"`
		Proteins      json.RawMessage `json:"proteins"`
		Fats          json.RawMessage `json:"fats"`
		Carbohydrates json.RawMessage `json:"carbohydrates"`
	} `json:"attributes"`
}

// ParseRecord decodes a single nomenclature entry.
func ParseRecord(raw json.RawMessage) (Record, error) {
	var r rawRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}

	rec := Record{
		ID:                 r.ID,
		HierarchicalID:     r.HierarchicalID,
		HierarchicalParent: r.HierarchicalParent,
		IsParent:           r.IsParent,
		Name:               strings.TrimSpace(r.Name),
		Description:        strings.TrimSpace(r.Description),
		Images:             r.Images,
	}

	var err error
	fields := []struct {
		name string
		raw  json.RawMessage
		dst  **float64
	}{
		{"cost", r.Cost, &rec.Cost},
		{"outQuantity", r.OutQuantity, &rec.Weight},
		{"calories", r.Attributes.Calories, &rec.Calories},
		{"proteins", r.Attributes.Proteins, &rec.Proteins},
		{"fats", r.Attributes.Fats, &rec.Fats},
		{"carbohydrates", r.Attributes.Carbohydrates, &rec.Carbohydrates},
	}
	for _, f := range fields {
		if *f.dst, err = parseOptionalNumber(f.raw); err != nil {
			return Record{}, fmt.Errorf("%w: %s of %q: %v", domain.ErrMalformedRecord, f.name, rec.Name, err)
		}
	}

	return rec, nil
}

// parseOptionalNumber accepts numbers, numeric strings (comma decimals too), empty and null.
func parseOptionalNumber(raw json.RawMessage) (*float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
		if s == "" {
			return nil, nil
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// BuildMenu converts flat records into a category tree for one price list.
// Records that cannot be placed are returned as problems; they never abort the build.
func BuildMenu(list domain.PriceList, records []Record, knownIDs []domain.ID, baseURL string) (*domain.Menu, []error) {
	menu := domain.NewMenu(list.ID, list.Name)
	var problems []error

	menuIDs := make(map[domain.ID]bool, len(knownIDs)+1)
	menuIDs[list.ID] = true
	for _, id := range knownIDs {
		menuIDs[id] = true
	}

	// Pass 1: category nodes.
	for _, rec := range records {
		if !rec.IsParent || rec.Cost != nil {
			continue
		}
		id := rec.HierarchicalID
		if id == "" {
			id = rec.ID
		}
		if id == "" || rec.Name == "" {
			problems = append(problems, fmt.Errorf("%w: category without id or name", domain.ErrMalformedRecord))
			continue
		}

		cat := &domain.Category{
			ID:          id,
			Name:        rec.Name,
			DisplayName: DisplayName(rec.Name),
		}
		if parent := rec.HierarchicalParent; parent != "" && parent != id && !menuIDs[parent] {
			p := parent
			cat.ParentID = &p
		}
		menu.Categories.Add(cat)
	}

	for _, cat := range menu.Categories.All() {
		if cat.ParentID != nil {
			if _, ok := menu.Categories.Get(*cat.ParentID); !ok {
				cat.ParentID = nil
			}
		}
	}
	hasCategories := menu.Categories.Len() > 0

	// Pass 2: priced items.
	var orphans []domain.Item
	for _, rec := range records {
		if rec.Cost == nil {
			continue
		}
		item, err := toItem(rec, baseURL)
		if err != nil {
			problems = append(problems, err)
			continue
		}

		if owner, ok := menu.Categories.Get(rec.HierarchicalParent); ok && rec.HierarchicalParent != "" {
			owner.Items = append(owner.Items, item)
			continue
		}
		orphans = append(orphans, item)
	}

	if len(orphans) > 0 || !hasCategories {
		name := list.Name
		if !hasCategories || name == "" {
			name = CatchAllName
		}
		catchAll, exists := menu.Categories.Get(list.ID)
		if !exists {
			catchAll = &domain.Category{ID: list.ID, Name: name, DisplayName: DisplayName(name)}
			menu.Categories.Add(catchAll)
		}
		catchAll.Items = append(catchAll.Items, orphans...)
	}

	return menu, problems
}

func toItem(rec Record, baseURL string) (domain.Item, error) {
	id := rec.ID
	if id == "" {
		id = rec.HierarchicalID
	}
	if id == "" || rec.Name == "" {
		return domain.Item{}, fmt.Errorf("%w: item without id or name", domain.ErrMalformedRecord)
	}
	if *rec.Cost < 0 {
		return domain.Item{}, fmt.Errorf("%w: negative price for %q", domain.ErrMalformedRecord, rec.Name)
	}

	item := domain.Item{
		ID:            id,
		Name:          rec.Name,
		Price:         *rec.Cost,
		Weight:        rec.Weight,
		Calories:      rec.Calories,
		Protein:       rec.Proteins,
		Fat:           rec.Fats,
		Carbohydrates: rec.Carbohydrates,
		Description:   rec.Description,
	}
	for _, ref := range rec.Images {
		if u := ResolveImageURL(ref, baseURL); u != "" {
			item.ImageURL = u
			break
		}
	}
	return item, nil
}

// ResolveImageURL turns an image reference into an absolute URL.
// References are either direct URLs, paths relative to the API, or a base64
// JSON parameter blob carrying the URL. Anything else yields "".
func ResolveImageURL(ref, baseURL string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ref
	case strings.HasPrefix(ref, "/"):
		if baseURL == "" {
			return ""
		}
		return strings.TrimRight(baseURL, "/") + ref
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		decoded, err := enc.DecodeString(ref)
		if err != nil {
			continue
		}
		var params struct {
			URL      string `json:"url"`
			PhotoURL string `json:"photoURL"`
		}
		if err := json.Unmarshal(decoded, &params); err != nil {
			continue
		}
		for _, candidate := range []string{params.URL, params.PhotoURL} {
			if candidate != "" && candidate != ref {
				return ResolveImageURL(candidate, baseURL)
			}
		}
	}
	return ""
}
