package domain

import "time"

// Couleur is the broad color family of a wine.
type Couleur string

const (
	CouleurRouge  Couleur = "rouge"
	CouleurBlanc  Couleur = "blanc"
	CouleurRose   Couleur = "rose"
	CouleurBulles Couleur = "bulles"
)

// BottleStatus is the lifecycle of a cellar bottle.
type BottleStatus string

const (
	StatusInStock BottleStatus = "in_stock"
	StatusDrunk   BottleStatus = "drunk"
)

// MatchType classifies the outcome of reconciling an extraction against the cellar.
type MatchType string

const (
	MatchInCave     MatchType = "in_cave"
	MatchNotInCave  MatchType = "not_in_cave"
	MatchUnresolved MatchType = "unresolved"
)

// WineExtraction is the structured record returned by the vision extraction
// service for a single label photo. Absent fields are nil, never sentinel
// strings. Immutable once produced.
type WineExtraction struct {
	Domaine     *string  `json:"domaine"`
	Cuvee       *string  `json:"cuvee"`
	Appellation *string  `json:"appellation"`
	Millesime   *int     `json:"millesime"`
	Couleur     *Couleur `json:"couleur"`
	Region      *string  `json:"region"`
	Cepage      *string  `json:"cepage"`
	Confidence  float64  `json:"confidence"`
}

// Zone is a named storage location (a rack, a shelf unit, a crate).
type Zone struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Bottle is one cellar record, in stock or already drunk.
type Bottle struct {
	ID          string
	Domaine     *string
	Cuvee       *string
	Appellation *string
	Millesime   *int
	Couleur     *Couleur
	Region      *string
	Cepage      *string
	ZoneID      *string
	Position    *Position
	Status      BottleStatus
	Price       *float64
	TastingNote string
	PhotoKey    string
	AddedAt     time.Time
	DrunkAt     *time.Time
}

// EventTime is the timestamp the bottle is displayed and grouped under:
// consumption time for drunk bottles, entry time otherwise.
func (b *Bottle) EventTime() time.Time {
	if b.DrunkAt != nil {
		return *b.DrunkAt
	}
	return b.AddedAt
}

// StrPtr returns a pointer to s. Convenience for optional fields.
func StrPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
