package web

import (
	"time"

	"github.com/jmordret/macave/internal/batch"
	"github.com/jmordret/macave/internal/domain"
	"github.com/jmordret/macave/internal/group"
)

type positionJSON struct {
	Row   int    `json:"row"`
	Depth int    `json:"depth"`
	Label string `json:"label"`
}

type bottleJSON struct {
	ID          string          `json:"id"`
	Domaine     *string         `json:"domaine"`
	Cuvee       *string         `json:"cuvee"`
	Appellation *string         `json:"appellation"`
	Millesime   *int            `json:"millesime"`
	Couleur     *domain.Couleur `json:"couleur"`
	Region      *string         `json:"region"`
	Cepage      *string         `json:"cepage"`
	ZoneID      *string         `json:"zone_id"`
	Position    *positionJSON   `json:"position"`
	Status      string          `json:"status"`
	Price       *float64        `json:"price"`
	TastingNote string          `json:"tasting_note"`
	HasPhoto    bool            `json:"has_photo"`
	AddedAt     time.Time       `json:"added_at"`
	DrunkAt     *time.Time      `json:"drunk_at"`
}

func toBottleJSON(b *domain.Bottle) bottleJSON {
	out := bottleJSON{
		ID:          b.ID,
		Domaine:     b.Domaine,
		Cuvee:       b.Cuvee,
		Appellation: b.Appellation,
		Millesime:   b.Millesime,
		Couleur:     b.Couleur,
		Region:      b.Region,
		Cepage:      b.Cepage,
		ZoneID:      b.ZoneID,
		Status:      string(b.Status),
		Price:       b.Price,
		TastingNote: b.TastingNote,
		HasPhoto:    b.PhotoKey != "",
		AddedAt:     b.AddedAt,
		DrunkAt:     b.DrunkAt,
	}
	if b.Position != nil {
		out.Position = &positionJSON{
			Row:   b.Position.Row,
			Depth: b.Position.Depth,
			Label: b.Position.String(),
		}
	}
	return out
}

func toBottlesJSON(bottles []*domain.Bottle) []bottleJSON {
	out := make([]bottleJSON, 0, len(bottles))
	for _, b := range bottles {
		out = append(out, toBottleJSON(b))
	}
	return out
}

type zoneJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type groupJSON struct {
	Day         string          `json:"day"`
	Domaine     *string         `json:"domaine"`
	Cuvee       *string         `json:"cuvee"`
	Appellation *string         `json:"appellation"`
	Millesime   *int            `json:"millesime"`
	Couleur     *domain.Couleur `json:"couleur"`
	Quantity    int             `json:"quantity"`
	At          time.Time       `json:"at"`
	BottleIDs   []string        `json:"bottle_ids"`
}

func toGroupsJSON(groups []*group.BottleGroup) []groupJSON {
	out := make([]groupJSON, 0, len(groups))
	for _, g := range groups {
		gj := groupJSON{
			Day:         g.Day,
			Domaine:     g.Domaine,
			Cuvee:       g.Cuvee,
			Appellation: g.Appellation,
			Millesime:   g.Millesime,
			Couleur:     g.Couleur,
			Quantity:    g.Quantity,
			At:          g.At,
		}
		for _, b := range g.Bottles {
			gj.BottleIDs = append(gj.BottleIDs, b.ID)
		}
		out = append(out, gj)
	}
	return out
}

type batchItemJSON struct {
	ID              string                 `json:"id"`
	Status          string                 `json:"status"`
	Extraction      *domain.WineExtraction `json:"extraction"`
	MatchType       string                 `json:"match_type"`
	MatchedBottleID string                 `json:"matched_bottle_id,omitempty"`
	PrimaryMatch    *bottleJSON            `json:"primary_match,omitempty"`
	Alternatives    []bottleJSON           `json:"alternatives,omitempty"`
	ProcessedAt     *time.Time             `json:"processed_at"`
	Ignored         bool                   `json:"ignored"`
	Error           string                 `json:"error,omitempty"`
}

type batchSessionJSON struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Label     string          `json:"label"`
	Status    string          `json:"status"`
	Items     []batchItemJSON `json:"items"`
}

func toBatchSessionJSON(v batch.SessionView) batchSessionJSON {
	out := batchSessionJSON{
		ID:        v.ID,
		CreatedAt: v.CreatedAt,
		Label:     v.Label,
		Status:    string(v.Status),
		Items:     make([]batchItemJSON, 0, len(v.Items)),
	}
	for _, it := range v.Items {
		ij := batchItemJSON{
			ID:              it.ID,
			Status:          string(it.Status),
			Extraction:      it.Extraction,
			MatchType:       string(it.MatchType),
			MatchedBottleID: it.MatchedBottleID,
			ProcessedAt:     it.ProcessedAt,
			Ignored:         it.Ignored,
			Error:           it.Err,
		}
		if it.PrimaryMatch != nil {
			pj := toBottleJSON(it.PrimaryMatch)
			ij.PrimaryMatch = &pj
		}
		for _, alt := range it.Alternatives {
			ij.Alternatives = append(ij.Alternatives, toBottleJSON(alt))
		}
		out.Items = append(out.Items, ij)
	}
	return out
}
