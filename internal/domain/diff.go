package domain

// ItemRecord is the flattened view of an item used for diffing.
type ItemRecord struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	MenuID      ID      `json:"menuId"`
	Category    string  `json:"category"`
}

// ItemChange describes an item present in both snapshots whose fields differ.
type ItemChange struct {
	ID     ID         `json:"id"`
	Name   string     `json:"name"`
	Fields []string   `json:"fields"`
	Old    ItemRecord `json:"old"`
	New    ItemRecord `json:"new"`
}

// DiffResult compares two snapshots.
type DiffResult struct {
	Added         []ItemRecord `json:"added"`
	Removed       []ItemRecord `json:"removed"`
	Changed       []ItemChange `json:"changed"`
	OldCount      int          `json:"oldCount"`
	NewCount      int          `json:"newCount"`
	ChangePercent float64      `json:"changePercent"`
}

// TotalChanges returns added + removed + changed.
func (d *DiffResult) TotalChanges() int {
	if d == nil {
		return 0
	}
	return len(d.Added) + len(d.Removed) + len(d.Changed)
}
