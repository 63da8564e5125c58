// Package textmatch provides the edit-distance similarity used to compare
// free-text wine fields (domaine, appellation) for suggestion dedup.
package textmatch

import "strings"

// Similarity returns a normalized similarity score in [0,1] between a and b.
// Empty input scores 0. Strings equal after lower-casing and trimming score 1.
// Otherwise the score is 1 - LevenshteinDistance/maxLen over the normalized
// strings. Pure function, safe for concurrent use.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	na := normalize(a)
	nb := normalize(b)
	if na == nb {
		return 1
	}

	ra := []rune(na)
	rb := []rune(nb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	return 1 - float64(LevenshteinDistance(na, nb))/float64(maxLen)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LevenshteinDistance is the minimum number of single-rune inserts, deletes
// and substitutions turning a into b. Two-row dynamic programming, no
// allocation beyond the rows.
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	row := make([]int, len(rb)+1)
	prevRow := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			row[j] = min(min(row[j-1]+1, prevRow[j]+1), prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(rb)]
}
