package usecase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Compiled patterns for query normalization
var (
	// punctuationPattern matches anything that is not a letter, digit or space.
	// Unicode classes keep Cyrillic intact.
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// Vocabulary holds the hand-tuned word lists used by the resolvers.
// All entries are compared after folding (lower case, ё→е).
type Vocabulary struct {
	// Synonyms rewrites whole colloquial phrases to a canonical category label.
	Synonyms map[string]string
	// RootClusters groups word roots that name the same kind of category.
	RootClusters [][]string
	// AlcoholTerms are keyword prefixes that mean the user asks for alcohol.
	// Roots of three letters or fewer must match a whole word.
	AlcoholTerms []string
	// BarNameRoots mark menus and categories holding alcohol.
	BarNameRoots []string
	// VegetarianTerms are keyword prefixes that request meat-free dishes.
	VegetarianTerms []string
	// MeatRoots are substrings identifying meat or fish.
	MeatRoots []string
	// PluralSuffixes are dropped from keywords longer than three letters.
	PluralSuffixes []string
	// BreakfastPhrases are complete queries asking for breakfast.
	BreakfastPhrases []string
	// BreakfastRoots identify a breakfast word at the end of a short query.
	BreakfastRoots []string
	// FillerWords are ignored when counting significant query tokens.
	FillerWords []string
}

// DefaultVocabulary returns the word lists tuned against the restaurant catalog.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Synonyms: map[string]string{
			"горячее":         "горячие блюда",
			"горячие":         "горячие блюда",
			"горячка":         "горячие блюда",
			"горячие блюда":   "горячие блюда",
			"горячее блюдо":   "горячие блюда",
			"основное":        "горячие блюда",
			"основные блюда":  "горячие блюда",
			"второе":          "горячие блюда",
			"вторые блюда":    "горячие блюда",
			"первое":          "супы",
			"первые блюда":    "супы",
			"супчик":          "супы",
			"супчики":         "супы",
			"салатики":        "салаты",
			"сладкое":         "десерты",
			"десертики":       "десерты",
			"безалкогольное":  "напитки",
			"попить":          "напитки",
			"закусочки":       "закуски",
			"перекус":         "закуски",
			"детское":         "детское меню",
			"для детей":       "детское меню",
			"пиццы":           "пицца",
			"пиццу":           "пицца",
			"гарниры к блюду": "гарниры",
		},
		RootClusters: [][]string{
			{"горяч", "основн", "втор"},
			{"суп", "перв", "бульон"},
			{"десерт", "сладк"},
			{"напит", "лимонад", "морс"},
			{"закуск", "закусоч"},
			{"детск", "детей"},
		},
		AlcoholTerms: []string{
			"алкогол", "вино", "вина", "винн", "пиво", "пива", "пивн", "коктейл",
			"виск", "водк", "ром", "джин", "текил", "шампан", "игрист", "ликер",
			"коньяк", "сидр", "бар", "настойк",
		},
		BarNameRoots: []string{"бар", "барн", "алкогол", "вино", "вина", "винн", "пиво", "пивн", "коктейл", "крепк"},
		VegetarianTerms: []string{
			"вегетариан", "веган", "постн", "без мяса", "vegan", "vegetarian",
		},
		MeatRoots: []string{
			"мяс", "говя", "свин", "куриц", "курин", "цыпл", "бекон", "ветчин",
			"колбас", "сосис", "фарш", "баран", "телят", "утка", "утки", "утин",
			"индейк", "лосос", "семг", "тунц", "тунец", "рыб", "кревет", "краб",
			"кальмар", "мидии", "анчоус", "форел", "сельд", "хамон", "пепперони",
			"салями", "ростбиф", "стейк", "язык",
		},
		PluralSuffixes: []string{"ы", "и"},
		BreakfastPhrases: []string{
			"завтрак", "завтраки", "меню завтраков", "завтраки меню",
			"что на завтрак", "хочу завтрак", "покажи завтраки",
		},
		BreakfastRoots: []string{"завтрак"},
		FillerWords: []string{
			"хочу", "покажи", "покажите", "показать", "меню", "что", "есть",
			"на", "а", "какие", "какой", "мне", "пожалуйста", "можно", "у", "вас",
		},
	}
}

// mergeVocabulary replaces default lists with non-empty overrides.
func mergeVocabulary(base, override Vocabulary) Vocabulary {
	if len(override.Synonyms) > 0 {
		base.Synonyms = override.Synonyms
	}
	if len(override.RootClusters) > 0 {
		base.RootClusters = override.RootClusters
	}
	if len(override.AlcoholTerms) > 0 {
		base.AlcoholTerms = override.AlcoholTerms
	}
	if len(override.BarNameRoots) > 0 {
		base.BarNameRoots = override.BarNameRoots
	}
	if len(override.VegetarianTerms) > 0 {
		base.VegetarianTerms = override.VegetarianTerms
	}
	if len(override.MeatRoots) > 0 {
		base.MeatRoots = override.MeatRoots
	}
	if len(override.PluralSuffixes) > 0 {
		base.PluralSuffixes = override.PluralSuffixes
	}
	if len(override.BreakfastPhrases) > 0 {
		base.BreakfastPhrases = override.BreakfastPhrases
	}
	if len(override.BreakfastRoots) > 0 {
		base.BreakfastRoots = override.BreakfastRoots
	}
	if len(override.FillerWords) > 0 {
		base.FillerWords = override.FillerWords
	}
	return base
}

// QueryNormalizer cleans free text from chat and catalog labels so that both
// sides compare on the same footing.
type QueryNormalizer struct {
	vocab     Vocabulary
	synonyms  map[string]string
	breakfast map[string]bool
	fillers   map[string]bool
	// vegetarian holds each meat-free term as folded words
	vegetarian [][]string
}

// NewQueryNormalizer creates a normalizer over the given vocabulary
func NewQueryNormalizer(vocab Vocabulary) *QueryNormalizer {
	n := &QueryNormalizer{
		vocab:     vocab,
		synonyms:  make(map[string]string, len(vocab.Synonyms)),
		breakfast: make(map[string]bool, len(vocab.BreakfastPhrases)),
		fillers:   make(map[string]bool, len(vocab.FillerWords)),
	}
	for phrase, canonical := range vocab.Synonyms {
		n.synonyms[n.Fold(phrase)] = n.Fold(canonical)
	}
	for _, phrase := range vocab.BreakfastPhrases {
		n.breakfast[n.Fold(phrase)] = true
	}
	for _, w := range vocab.FillerWords {
		n.fillers[n.Fold(w)] = true
	}
	for _, term := range vocab.VegetarianTerms {
		if words := strings.Fields(n.Fold(term)); len(words) > 0 {
			n.vegetarian = append(n.vegetarian, words)
		}
	}
	return n
}

// isPictograph reports whether r is an emoji, pictograph or emoji modifier.
func isPictograph(r rune) bool {
	switch {
	case unicode.Is(unicode.So, r):
		return true
	case r == 0x200D || r == 0x20E3: // zero width joiner, keycap
		return true
	case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r >= 0xE0020 && r <= 0xE007F: // tag sequences
		return true
	}
	return false
}

// Normalize strips pictographs and underscores and collapses whitespace.
// Case is preserved.
func (n *QueryNormalizer) Normalize(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if isPictograph(r) {
			return -1
		}
		if r == '_' {
			return ' '
		}
		return r
	}, s)
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fold normalizes and lower-cases text, maps ё to е and drops punctuation.
func (n *QueryNormalizer) Fold(s string) string {
	s = strings.ToLower(n.Normalize(s))
	s = strings.ReplaceAll(s, "ё", "е")
	s = punctuationPattern.ReplaceAllString(s, " ")
	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// IsNumericNoise reports digit-only fragments shorter than three characters.
func (n *QueryNormalizer) IsNumericNoise(normalized string) bool {
	if normalized == "" || utf8.RuneCountInString(normalized) >= 3 {
		return false
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Canonical rewrites a folded query through the synonym table.
func (n *QueryNormalizer) Canonical(folded string) (string, bool) {
	canonical, ok := n.synonyms[folded]
	return canonical, ok
}

// IsBreakfastQuery recognizes generic breakfast requests: a known phrase, or a
// query of at most two significant tokens whose last token is a breakfast word.
func (n *QueryNormalizer) IsBreakfastQuery(folded string) bool {
	if n.breakfast[folded] {
		return true
	}

	var significant []string
	for _, tok := range strings.Fields(folded) {
		if !n.fillers[tok] {
			significant = append(significant, tok)
		}
	}
	if len(significant) == 0 || len(significant) > 2 {
		return false
	}
	last := significant[len(significant)-1]
	return hasAnyPrefix(last, n.vocab.BreakfastRoots)
}

// Keywords splits a dish query into folded keywords: on commas when present,
// otherwise on whitespace. Plural endings are dropped best-effort.
func (n *QueryNormalizer) Keywords(raw string) []string {
	cleaned := n.Normalize(raw)

	var parts []string
	if strings.Contains(cleaned, ",") {
		parts = strings.Split(cleaned, ",")
	} else {
		parts = strings.Fields(cleaned)
	}

	var keywords []string
	for _, part := range parts {
		kw := n.Fold(part)
		if kw == "" {
			continue
		}
		keywords = append(keywords, n.Singularize(kw))
	}

	if len(keywords) == 0 {
		if whole := n.Fold(cleaned); whole != "" {
			keywords = []string{whole}
		}
	}
	return keywords
}

// Singularize drops one trailing character from words longer than three
// letters that end in a plural suffix. It is a heuristic, not a stemmer.
func (n *QueryNormalizer) Singularize(word string) string {
	if utf8.RuneCountInString(word) <= 3 {
		return word
	}
	for _, suffix := range n.vocab.PluralSuffixes {
		if strings.HasSuffix(word, suffix) {
			_, size := utf8.DecodeLastRuneInString(word)
			return word[:len(word)-size]
		}
	}
	return word
}

// WantsAlcohol reports whether any keyword names an alcoholic drink.
func (n *QueryNormalizer) WantsAlcohol(keywords []string) bool {
	for _, kw := range keywords {
		for _, tok := range strings.Fields(kw) {
			if hasAnyPrefix(tok, n.vocab.AlcoholTerms) {
				return true
			}
		}
	}
	return false
}

// IsBarLabel reports whether a folded menu or category name marks alcohol.
func (n *QueryNormalizer) IsBarLabel(folded string) bool {
	for _, tok := range strings.Fields(folded) {
		if hasAnyPrefix(tok, n.vocab.BarNameRoots) {
			return true
		}
	}
	return false
}

// StripVegetarian removes meat-free request terms from a dish query and
// reports whether one was present. Terms may span several words; the last
// word of a term matches as a prefix. Comma separated parts are kept apart.
func (n *QueryNormalizer) StripVegetarian(raw string) (string, bool) {
	cleaned := n.Normalize(raw)
	sep := " "
	parts := []string{cleaned}
	if strings.Contains(cleaned, ",") {
		sep = ","
		parts = strings.Split(cleaned, ",")
	}

	found := false
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		words := strings.Fields(part)
		folded := make([]string, len(words))
		for i, w := range words {
			folded[i] = n.Fold(w)
		}

		var rest []string
		for i := 0; i < len(words); {
			if size := n.vegetarianAt(folded, i); size > 0 {
				found = true
				i += size
				continue
			}
			rest = append(rest, words[i])
			i++
		}
		if len(rest) > 0 {
			kept = append(kept, strings.Join(rest, " "))
		}
	}
	return strings.Join(kept, sep), found
}

// vegetarianAt returns the number of words of the meat-free term starting at
// words[i], or 0.
func (n *QueryNormalizer) vegetarianAt(words []string, i int) int {
	for _, term := range n.vegetarian {
		if i+len(term) > len(words) {
			continue
		}
		last := len(term) - 1
		matched := strings.HasPrefix(words[i+last], term[last])
		for j := 0; matched && j < last; j++ {
			matched = words[i+j] == term[j]
		}
		if matched {
			return len(term)
		}
	}
	return 0
}

// MentionsMeat reports whether folded text contains a meat or fish root.
func (n *QueryNormalizer) MentionsMeat(folded string) bool {
	for _, root := range n.vocab.MeatRoots {
		if strings.Contains(folded, root) {
			return true
		}
	}
	return false
}

// RootCluster returns the index of the first cluster with a root starting one
// of the tokens, or -1.
func (n *QueryNormalizer) RootCluster(folded string) int {
	tokens := strings.Fields(folded)
	for i, cluster := range n.vocab.RootClusters {
		for _, tok := range tokens {
			if startsWithAny(tok, cluster) {
				return i
			}
		}
	}
	return -1
}

// InCluster reports whether any token of folded starts with a root of cluster i.
func (n *QueryNormalizer) InCluster(folded string, i int) bool {
	if i < 0 || i >= len(n.vocab.RootClusters) {
		return false
	}
	for _, tok := range strings.Fields(folded) {
		if startsWithAny(tok, n.vocab.RootClusters[i]) {
			return true
		}
	}
	return false
}

func startsWithAny(word string, roots []string) bool {
	for _, root := range roots {
		if root != "" && strings.HasPrefix(word, root) {
			return true
		}
	}
	return false
}

// hasAnyPrefix reports whether word starts with one of the roots. Roots of
// three runes or fewer only match the whole word ("бар" is not "баранина").
func hasAnyPrefix(word string, roots []string) bool {
	for _, root := range roots {
		switch {
		case root == "":
			continue
		case utf8.RuneCountInString(root) <= 3:
			if word == root {
				return true
			}
		case strings.HasPrefix(word, root):
			return true
		}
	}
	return false
}
