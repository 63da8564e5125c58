package group

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmordret/macave/internal/domain"
)

func drunkBottle(id, domaine string, millesime int, at time.Time) *domain.Bottle {
	return &domain.Bottle{
		ID:        id,
		Domaine:   domain.StrPtr(domaine),
		Millesime: domain.IntPtr(millesime),
		Status:    domain.StatusDrunk,
		AddedAt:   at.Add(-24 * time.Hour),
		DrunkAt:   &at,
	}
}

func TestGroupRecordsSameKeyAccumulates(t *testing.T) {
	at := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	bottles := []*domain.Bottle{
		drunkBottle("1", "Roulot", 2018, at),
		drunkBottle("2", "Roulot", 2018, at.Add(30*time.Minute)),
		drunkBottle("3", "Agrapart", 2015, at.Add(time.Hour)),
	}

	groups := GroupRecords(bottles)
	require.Len(t, groups, 2)

	// Agrapart was seen later in time, so it sorts first.
	assert.Equal(t, "Agrapart", *groups[0].Domaine)
	assert.Equal(t, 1, groups[0].Quantity)

	assert.Equal(t, "Roulot", *groups[1].Domaine)
	assert.Equal(t, 2, groups[1].Quantity)
	// Representative timestamp comes from the first record seen for the key.
	assert.Equal(t, at, groups[1].At)
	assert.Equal(t, "2026-03-14", groups[1].Day)
}

func TestGroupRecordsSplitsAcrossDays(t *testing.T) {
	d1 := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	bottles := []*domain.Bottle{
		drunkBottle("1", "Roulot", 2018, d1),
		drunkBottle("2", "Roulot", 2018, d2),
	}

	groups := GroupRecords(bottles)
	require.Len(t, groups, 2)
	assert.Equal(t, "2026-03-15", groups[0].Day)
	assert.Equal(t, "2026-03-14", groups[1].Day)
}

func TestGroupRecordsUTCDayIndependentOfZone(t *testing.T) {
	// 23:30 in UTC+2 is 21:30 UTC: same UTC day regardless of wall clock.
	paris := time.FixedZone("CEST", 2*60*60)
	local := time.Date(2026, 3, 14, 23, 30, 0, 0, paris)
	utc := local.UTC()

	g1 := GroupRecords([]*domain.Bottle{drunkBottle("1", "Roulot", 2018, local)})
	g2 := GroupRecords([]*domain.Bottle{drunkBottle("1", "Roulot", 2018, utc)})
	require.Len(t, g1, 1)
	require.Len(t, g2, 1)
	assert.Equal(t, g1[0].Day, g2[0].Day)
}

func TestGroupRecordsMissingFieldsShareKey(t *testing.T) {
	at := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	b1 := &domain.Bottle{ID: "1", Status: domain.StatusDrunk, DrunkAt: &at}
	b2 := &domain.Bottle{ID: "2", Status: domain.StatusDrunk, DrunkAt: &at}

	groups := GroupRecords([]*domain.Bottle{b1, b2})
	require.Len(t, groups, 1)
	assert.Equal(t, 2, groups[0].Quantity)
}

func TestGroupRecordsCardinality(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	var bottles []*domain.Bottle
	for i := 0; i < 17; i++ {
		bottles = append(bottles, drunkBottle(
			string(rune('a'+i)),
			[]string{"Roulot", "Agrapart", "Overnoy"}[i%3],
			2015+i%4,
			base.Add(time.Duration(i)*time.Hour),
		))
	}

	groups := GroupRecords(bottles)
	total := 0
	for _, g := range groups {
		total += g.Quantity
	}
	assert.Equal(t, len(bottles), total)
}

func TestGroupRecordsIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	bottles := []*domain.Bottle{
		drunkBottle("1", "Roulot", 2018, base),
		drunkBottle("2", "Roulot", 2018, base.Add(time.Minute)),
		drunkBottle("3", "Agrapart", 2015, base.Add(time.Hour)),
	}

	first := GroupRecords(bottles)

	// Flatten the groups back out and regroup: same groups, same order.
	var flattened []*domain.Bottle
	for _, g := range first {
		flattened = append(flattened, g.Bottles...)
	}
	second := GroupRecords(flattened)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Quantity, second[i].Quantity)
		assert.Equal(t, first[i].Day, second[i].Day)
		assert.Equal(t, first[i].Domaine, second[i].Domaine)
	}
}

func TestGroupRecordsStableTieBreak(t *testing.T) {
	at := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	bottles := []*domain.Bottle{
		drunkBottle("1", "Roulot", 2018, at),
		drunkBottle("2", "Agrapart", 2015, at),
		drunkBottle("3", "Overnoy", 2019, at),
	}

	for i := 0; i < 10; i++ {
		groups := GroupRecords(bottles)
		require.Len(t, groups, 3)
		assert.Equal(t, "Roulot", *groups[0].Domaine)
		assert.Equal(t, "Agrapart", *groups[1].Domaine)
		assert.Equal(t, "Overnoy", *groups[2].Domaine)
	}
}

func TestUniqueSuggestions(t *testing.T) {
	tests := []struct {
		name     string
		values   []*string
		expected []string
	}{
		{
			name: "dedup preserves order",
			values: []*string{
				domain.StrPtr("Agrapart"), domain.StrPtr("Agrapart"),
				domain.StrPtr("Overnoy"), domain.StrPtr("Roulot"),
			},
			expected: []string{"Agrapart", "Overnoy", "Roulot"},
		},
		{
			name: "filters nil and empty",
			values: []*string{
				nil, domain.StrPtr(""), domain.StrPtr("Roulot"), nil,
			},
			expected: []string{"Roulot"},
		},
		{
			name: "case-sensitive dedup keeps near-duplicates",
			values: []*string{
				domain.StrPtr("Château Margaux"), domain.StrPtr("Chateau Margaux"),
			},
			expected: []string{"Château Margaux", "Chateau Margaux"},
		},
		{
			name:     "empty input",
			values:   nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UniqueSuggestions(tt.values))
		})
	}
}
