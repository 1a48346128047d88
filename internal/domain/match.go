package domain

import "encoding/json"

// MatchKind classifies a category resolution outcome.
type MatchKind int

const (
	// MatchNotFound means nothing matched and no suggestion cleared the threshold.
	MatchNotFound MatchKind = iota
	// MatchFound carries a category with at least one item.
	MatchFound
	// MatchFoundEmpty means a category matched but holds no items.
	MatchFoundEmpty
	// MatchSuggestions carries "did you mean" category names.
	MatchSuggestions
	// MatchClarify asks the caller to rephrase; the query was numeric noise.
	MatchClarify
)

func (k MatchKind) String() string {
	switch k {
	case MatchFound:
		return "found"
	case MatchFoundEmpty:
		return "found_empty"
	case MatchSuggestions:
		return "suggestions"
	case MatchClarify:
		return "clarify"
	default:
		return "not_found"
	}
}

// MarshalJSON encodes the kind by name.
func (k MatchKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Matching tiers reported in MatchResult.Via.
const (
	ViaID        = "id"
	ViaExact     = "exact"
	ViaRootWord  = "root_word"
	ViaSubstring = "substring"
	ViaFuzzy     = "fuzzy"
	ViaBreakfast = "breakfast"
	ViaDishes    = "dish_search"
)

// MatchResult is the answer of the category resolver.
type MatchResult struct {
	Kind         MatchKind `json:"kind"`
	Query        string    `json:"query"`
	Category     *Category `json:"category,omitempty"`
	CategoryName string    `json:"categoryName,omitempty"`
	Items        []Item    `json:"items,omitempty"`
	SourceMenuID ID        `json:"sourceMenuId,omitempty"`
	Suggestions  []string  `json:"suggestions,omitempty"`
	Via          string    `json:"via,omitempty"`

	// Canonical is the synonym the query was rewritten to, if any.
	Canonical string `json:"canonical,omitempty"`
}

// Found reports whether the result carries items.
func (r *MatchResult) Found() bool {
	return r != nil && r.Kind == MatchFound && len(r.Items) > 0
}
