// Package group builds the read-side display model: cellar records
// clustered into per-day bottle groups, and deduplicated autocomplete
// suggestion lists.
package group

import (
	"fmt"
	"sort"
	"time"

	"github.com/jmordret/macave/internal/domain"
)

// BottleGroup clusters bottles sharing the same identity on the same
// calendar day. Recomputed on every query, never persisted.
type BottleGroup struct {
	Day         string
	Domaine     *string
	Cuvee       *string
	Appellation *string
	Millesime   *int
	Couleur     *domain.Couleur
	Quantity    int
	// At is the group's representative timestamp: the event time of the
	// first record seen for this key in input order.
	At      time.Time
	Bottles []*domain.Bottle
}

// GroupRecords clusters bottles by UTC calendar day plus identity fields
// and returns the groups newest first. Grouping is a pure function of the
// input: identical input yields identical groups and ordering regardless
// of the caller's local time zone.
func GroupRecords(bottles []*domain.Bottle) []*BottleGroup {
	byKey := make(map[string]*BottleGroup)
	var order []*BottleGroup

	for _, b := range bottles {
		key := groupKey(b)
		g, ok := byKey[key]
		if !ok {
			g = &BottleGroup{
				Day:         b.EventTime().UTC().Format("2006-01-02"),
				Domaine:     b.Domaine,
				Cuvee:       b.Cuvee,
				Appellation: b.Appellation,
				Millesime:   b.Millesime,
				Couleur:     b.Couleur,
				At:          b.EventTime(),
			}
			byKey[key] = g
			order = append(order, g)
		}
		g.Quantity++
		g.Bottles = append(g.Bottles, b)
	}

	// Newest first; SliceStable keeps first-seen input order for equal
	// timestamps so the result never depends on map iteration order.
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].At.After(order[j].At)
	})
	return order
}

// groupKey builds the cluster key. Missing fields count as empty strings
// so two bottles both lacking a cuvee still land in the same group.
func groupKey(b *domain.Bottle) string {
	millesime := ""
	if b.Millesime != nil {
		millesime = fmt.Sprintf("%d", *b.Millesime)
	}
	return b.EventTime().UTC().Format("2006-01-02") + "|" +
		deref(b.Domaine) + "|" +
		deref(b.Cuvee) + "|" +
		deref(b.Appellation) + "|" +
		millesime + "|" +
		string(derefCouleur(b.Couleur))
}

// UniqueSuggestions filters out nil/empty values and removes exact
// duplicates, preserving the input order. The source query hands values in
// sorted order; dedup here is case-sensitive on purpose: near-duplicate
// spellings stay distinct (merging them is a product decision, not ours).
func UniqueSuggestions(values []*string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == nil || *v == "" {
			continue
		}
		if _, dup := seen[*v]; dup {
			continue
		}
		seen[*v] = struct{}{}
		out = append(out, *v)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefCouleur(c *domain.Couleur) domain.Couleur {
	if c == nil {
		return ""
	}
	return *c
}
