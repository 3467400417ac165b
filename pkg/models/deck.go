package models

import "time"

// Deck is a collection of cards studied together.
type Deck struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Policy    string    `json:"policy" db:"policy"` // scheduling policy name: "ladder" or "sm2"
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DeckRole is a member's role in a deck.
type DeckRole string

const (
	RoleOwner  DeckRole = "owner"
	RoleEditor DeckRole = "editor"
	RoleViewer DeckRole = "viewer"
)

// CanEdit reports whether the role may add or change cards.
func (r DeckRole) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

// DeckMember grants a learner access to a deck.
type DeckMember struct {
	DeckID    int64    `json:"deck_id" db:"deck_id"`
	LearnerID int64    `json:"learner_id" db:"learner_id"`
	Role      DeckRole `json:"role" db:"role"`
}

// Card is a single learnable item.
type Card struct {
	ID        int64     `json:"id" db:"id"`
	DeckID    int64     `json:"deck_id" db:"deck_id"`
	Front     string    `json:"front" db:"front"`
	Back      string    `json:"back" db:"back"`
	Example   string    `json:"example" db:"example"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
