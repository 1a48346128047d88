package usecase

// Ratio returns the normalized similarity of two strings in [0, 1]:
// (len(a)+len(b)-d) / (len(a)+len(b)) where d is the edit distance counting
// a substitution as one deletion plus one insertion. Lengths are in runes.
// Two empty strings are identical.
func Ratio(a, b string) float64 {
	r1 := []rune(a)
	r2 := []rune(b)
	total := len(r1) + len(r2)
	if total == 0 {
		return 1
	}
	d := editDistance(r1, r2, 2)
	return float64(total-d) / float64(total)
}

// levenshteinDistance calculates the classic edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	return editDistance([]rune(s1), []rune(s2), 1)
}

// editDistance computes the weighted edit distance with unit insert/delete
// cost and the given substitution cost.
func editDistance(r1, r2 []rune, substitution int) int {
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = substitution
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
