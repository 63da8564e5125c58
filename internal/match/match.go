// Package match scores freshly extracted label data against the cellar
// inventory to decide whether a scanned bottle is already known.
package match

import (
	"strings"

	"github.com/jmordret/macave/internal/domain"
)

// Scoring weights. Domaine is the strongest identity signal on a label;
// appellation and vintage are supporting evidence.
const (
	scoreDomaine     = 3
	scoreAppellation = 2
	scoreMillesime   = 2

	// minScore is the inclusion threshold: a single supporting field is
	// enough, no overlapping field is not.
	minScore = 2
)

// Candidate pairs a cellar bottle with its accumulated match score.
type Candidate struct {
	Bottle *domain.Bottle
	Score  int
}

// Score computes the match score of one candidate bottle against an
// extraction. Absent fields on either side contribute nothing.
func Score(bottle *domain.Bottle, ext *domain.WineExtraction) int {
	score := 0
	if containsEither(ext.Domaine, bottle.Domaine) {
		score += scoreDomaine
	}
	if containsEither(ext.Appellation, bottle.Appellation) {
		score += scoreAppellation
	}
	if ext.Millesime != nil && bottle.Millesime != nil && *ext.Millesime == *bottle.Millesime {
		score += scoreMillesime
	}
	return score
}

// FindMatches returns the candidates scoring at least the inclusion
// threshold, in candidate order. Pure over its inputs: identical input
// yields an identical result on every call.
//
// Field comparison is case-insensitive substring containment, not fuzzy
// similarity. A label reading "Chartogne Taillet" matches a cellar entry
// "Domaine Chartogne Taillet" and vice versa.
func FindMatches(candidates []*domain.Bottle, ext *domain.WineExtraction) []*domain.Bottle {
	var matches []*domain.Bottle
	for _, c := range candidates {
		if Score(c, ext) >= minScore {
			matches = append(matches, c)
		}
	}
	return matches
}

// Result is the classified outcome of a match pass.
type Result struct {
	Type domain.MatchType
	// Primary is set only for a single unambiguous match.
	Primary *domain.Bottle
	// Alternatives holds every scoring candidate when the match is
	// ambiguous, for user disambiguation.
	Alternatives []*domain.Bottle
}

// Classify applies the resolution policy to a match result set:
// zero matches mean the bottle is not in the cellar, exactly one match
// auto-resolves, two or more require the user to choose.
func Classify(matches []*domain.Bottle) Result {
	switch len(matches) {
	case 0:
		return Result{Type: domain.MatchNotInCave}
	case 1:
		return Result{Type: domain.MatchInCave, Primary: matches[0]}
	default:
		return Result{Type: domain.MatchUnresolved, Alternatives: matches}
	}
}

// containsEither reports whether both strings are present and one
// case-insensitively contains the other.
func containsEither(a, b *string) bool {
	if a == nil || b == nil || *a == "" || *b == "" {
		return false
	}
	la := strings.ToLower(*a)
	lb := strings.ToLower(*b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
