package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ID is a canonical identifier for menus, categories and items.
// The catalog source sends ids as JSON numbers in some responses and as
// strings in others; both decode to the same decimal string.
type ID string

// NewID canonicalizes a raw identifier. Integer strings keep every digit;
// float forms such as "42.0" or "4.2e1" collapse to an integer only when
// exactly representable.
func NewID(raw string) ID {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if digits, neg, ok := splitInteger(s); ok {
		digits = strings.TrimLeft(digits, "0")
		if digits == "" {
			return "0"
		}
		if neg {
			return ID("-" + digits)
		}
		return ID(digits)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		return ID(strconv.FormatInt(int64(f), 10))
	}
	return ID(s)
}

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// splitInteger reports whether s is an optionally signed run of ASCII digits.
func splitInteger(s string) (digits string, neg bool, ok bool) {
	if s == "" {
		return "", false, false
	}
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		s, neg = s[1:], true
	}
	if s == "" {
		return "", false, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false, false
		}
	}
	return s, neg, true
}

// IDFromInt builds an ID from an integer.
func IDFromInt(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

// String returns the canonical string form.
func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = NewID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: id %s", ErrMalformedRecord, string(b))
	}
	*id = NewID(n.String())
	return nil
}

// Less orders ids numerically when both are numeric, lexically otherwise.
func (id ID) Less(other ID) bool {
	a, negA, okA := splitInteger(string(id))
	b, negB, okB := splitInteger(string(other))
	switch {
	case okA && okB:
		if negA != negB {
			return negA
		}
		if len(a) != len(b) {
			return (len(a) < len(b)) != negA
		}
		if a == b {
			return false
		}
		return (a < b) != negA
	case okA:
		return true
	case okB:
		return false
	}
	return id < other
}

// Item is a single dish. Item ids are unique within a menu but the same id
// may be listed under several categories in one fetch.
type Item struct {
	ID            ID       `json:"id"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Weight        *float64 `json:"weight,omitempty"`
	Calories      *float64 `json:"calories,omitempty"`
	Protein       *float64 `json:"protein,omitempty"`
	Fat           *float64 `json:"fat,omitempty"`
	Carbohydrates *float64 `json:"carbohydrates,omitempty"`
	Description   string   `json:"description,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	LocalImage    string   `json:"local_image,omitempty"`
}

// Category groups items inside a menu. A nil ParentID marks a top-level category.
type Category struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	ParentID    *ID    `json:"parent_id"`
	Items       []Item `json:"items"`

	// Virtual marks a category synthesized from a dish search; never persisted.
	Virtual bool `json:"-"`
}

// Label returns the display name when set, the raw name otherwise.
func (c *Category) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// Categories is an insertion-ordered mapping of category id to category.
type Categories struct {
	order []ID
	byID  map[ID]*Category
}

// Add inserts or replaces a category, keeping the original position on replace.
func (cs *Categories) Add(c *Category) {
	if cs.byID == nil {
		cs.byID = make(map[ID]*Category)
	}
	if _, exists := cs.byID[c.ID]; !exists {
		cs.order = append(cs.order, c.ID)
	}
	cs.byID[c.ID] = c
}

// Get returns the category with the given id.
func (cs *Categories) Get(id ID) (*Category, bool) {
	c, ok := cs.byID[id]
	return c, ok
}

// Len returns the number of categories.
func (cs *Categories) Len() int { return len(cs.order) }

// All returns categories in insertion order.
func (cs *Categories) All() []*Category {
	out := make([]*Category, 0, len(cs.order))
	for _, id := range cs.order {
		out = append(out, cs.byID[id])
	}
	return out
}

// MarshalJSON writes the categories as a JSON object keyed by id, in insertion order.
func (cs Categories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range cs.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(id))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(cs.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object keyed by id, preserving key order.
func (cs *Categories) UnmarshalJSON(b []byte) error {
	*cs = Categories{}
	if string(bytes.TrimSpace(b)) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: categories must be an object", ErrMalformedRecord)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var c Category
		if err := dec.Decode(&c); err != nil {
			return err
		}
		if c.ID == "" {
			c.ID = NewID(key)
		}
		cs.Add(&c)
	}

	_, err = dec.Token()
	return err
}

// Menu is one independently fetchable price-list.
type Menu struct {
	ID         ID         `json:"id"`
	Name       string     `json:"name"`
	Categories Categories `json:"categories"`
}

// NewMenu creates an empty menu.
func NewMenu(id ID, name string) *Menu {
	return &Menu{ID: id, Name: name}
}

// ItemCount returns the number of distinct item ids in the menu.
func (m *Menu) ItemCount() int {
	seen := make(map[ID]struct{})
	for _, c := range m.Categories.All() {
		for _, item := range c.Items {
			seen[item.ID] = struct{}{}
		}
	}
	return len(seen)
}

// CategoryItems returns the items of a category followed by the items of its
// descendants, de-duplicated.
func (m *Menu) CategoryItems(id ID) []Item {
	root, ok := m.Categories.Get(id)
	if !ok {
		return nil
	}

	children := make(map[ID][]*Category)
	for _, c := range m.Categories.All() {
		if c.ParentID != nil && *c.ParentID != c.ID {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	var items []Item
	visited := make(map[ID]bool)
	var walk func(c *Category)
	walk = func(c *Category) {
		if visited[c.ID] {
			return
		}
		visited[c.ID] = true
		items = append(items, c.Items...)
		for _, child := range children[c.ID] {
			walk(child)
		}
	}
	walk(root)

	return DedupeItems(items)
}

// DedupeItems removes repeated item ids, keeping the first occurrence.
func DedupeItems(items []Item) []Item {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[ID]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out
}

// SnapshotKind names one of the two cached snapshots.
type SnapshotKind string

const (
	SnapshotDelivery SnapshotKind = "delivery"
	SnapshotFull     SnapshotKind = "full"
)

// Timestamp is an ISO-8601 time that also accepts timestamps without a zone.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON parses any of the accepted layouts; unparseable values become zero.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// Snapshot is a full cache generation: every menu fetched in one refresh.
type Snapshot struct {
	Timestamp Timestamp    `json:"timestamp"`
	PointID   int          `json:"point_id"`
	Menus     map[ID]*Menu `json:"all_menus"`
}

// NewSnapshot creates an empty snapshot stamped with the given time.
func NewSnapshot(pointID int, at time.Time) *Snapshot {
	return &Snapshot{
		Timestamp: Timestamp{Time: at},
		PointID:   pointID,
		Menus:     make(map[ID]*Menu),
	}
}

// IsEmpty reports whether the snapshot holds no menus.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Menus) == 0
}

// Age returns how long ago the snapshot was taken. A missing timestamp is infinitely old.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil || s.Timestamp.IsZero() {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(s.Timestamp.Time)
}

// Menu returns a menu by id.
func (s *Snapshot) Menu(id ID) (*Menu, bool) {
	if s == nil {
		return nil, false
	}
	m, ok := s.Menus[id]
	return m, ok
}

// MenuIDs returns menu ids in ascending order.
func (s *Snapshot) MenuIDs() []ID {
	if s == nil {
		return nil
	}
	ids := make([]ID, 0, len(s.Menus))
	for id := range s.Menus {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// ItemCount returns the number of distinct items across all menus.
func (s *Snapshot) ItemCount() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, m := range s.Menus {
		total += m.ItemCount()
	}
	return total
}

// Restrict returns a shallow copy holding only the allowed menu ids.
// An empty allow-list keeps every menu.
func (s *Snapshot) Restrict(allowed []ID) *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Timestamp: s.Timestamp, PointID: s.PointID, Menus: make(map[ID]*Menu)}
	if len(allowed) == 0 {
		for id, m := range s.Menus {
			out.Menus[id] = m
		}
		return out
	}
	for _, id := range allowed {
		if m, ok := s.Menus[id]; ok {
			out.Menus[id] = m
		}
	}
	return out
}

// PriceList is one enumerable menu at the catalog source.
type PriceList struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}
