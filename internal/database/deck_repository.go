package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/srsbot/pkg/models"
)

const (
	deckColumns = "d.id, d.owner_id, d.name, d.policy, d.created_at"
	cardColumns = "c.id, c.deck_id, c.front, c.back, c.example, c.created_at"
)

// DeckRepository handles decks, their members and their cards
type DeckRepository struct {
	db *sqlx.DB
}

// NewDeckRepository creates a new repository instance
func NewDeckRepository(db *sqlx.DB) *DeckRepository {
	return &DeckRepository{db: db}
}

// CreateDeck inserts d and makes its owner a member.
func (r *DeckRepository) CreateDeck(ctx context.Context, d *models.Deck) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO decks (owner_id, name, policy) VALUES (?, ?, ?) RETURNING id`),
		d.OwnerID, d.Name, d.Policy,
	).Scan(&d.ID)
	if err != nil {
		return conflictOr(errors.Wrap(err, "failed to create deck"), "deck %q already exists", d.Name)
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO deck_members (deck_id, learner_id, role) VALUES (?, ?, ?)`),
		d.ID, d.OwnerID, models.RoleOwner,
	)
	if err != nil {
		return errors.Wrap(err, "failed to add deck owner")
	}
	return errors.Wrap(tx.Commit(), "failed to commit deck")
}

// AddMember grants a learner access to a deck.
func (r *DeckRepository) AddMember(ctx context.Context, m models.DeckMember) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO deck_members (deck_id, learner_id, role) VALUES (?, ?, ?)`),
		m.DeckID, m.LearnerID, m.Role,
	)
	if err != nil {
		return conflictOr(errors.Wrap(err, "failed to add member"), "learner %d is already a member of deck %d", m.LearnerID, m.DeckID)
	}
	return nil
}

// Role returns the learner's role in a deck; not-found when there is none.
func (r *DeckRepository) Role(ctx context.Context, learnerID, deckID int64) (models.DeckRole, error) {
	var role models.DeckRole
	err := r.db.GetContext(ctx, &role, r.db.Rebind(`
		SELECT role FROM deck_members WHERE deck_id = ? AND learner_id = ?`), deckID, learnerID)
	if err != nil {
		return "", notFoundOr(errors.Wrap(err, "failed to get role"), "deck %d not found", deckID)
	}
	return role, nil
}

// Deck returns a deck the learner has access to.
func (r *DeckRepository) Deck(ctx context.Context, learnerID, deckID int64) (*models.Deck, error) {
	var d models.Deck
	err := r.db.GetContext(ctx, &d, r.db.Rebind(`
		SELECT `+deckColumns+`
		FROM decks d
		JOIN deck_members m ON m.deck_id = d.id
		WHERE d.id = ? AND m.learner_id = ?`), deckID, learnerID)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get deck"), "deck %d not found", deckID)
	}
	return &d, nil
}

// DeckByName returns a deck the learner has access to by its name.
func (r *DeckRepository) DeckByName(ctx context.Context, learnerID int64, name string) (*models.Deck, error) {
	var d models.Deck
	err := r.db.GetContext(ctx, &d, r.db.Rebind(`
		SELECT `+deckColumns+`
		FROM decks d
		JOIN deck_members m ON m.deck_id = d.id
		WHERE d.name = ? AND m.learner_id = ?
		ORDER BY d.id
		LIMIT 1`), name, learnerID)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get deck"), "deck %q not found", name)
	}
	return &d, nil
}

// Decks returns the decks a learner has access to.
func (r *DeckRepository) Decks(ctx context.Context, learnerID int64) ([]models.Deck, error) {
	decks := []models.Deck{}
	err := r.db.SelectContext(ctx, &decks, r.db.Rebind(`
		SELECT `+deckColumns+`
		FROM decks d
		JOIN deck_members m ON m.deck_id = d.id
		WHERE m.learner_id = ?
		ORDER BY d.id`), learnerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get decks")
	}
	return decks, nil
}

// Card returns a card from a deck the learner has access to.
func (r *DeckRepository) Card(ctx context.Context, learnerID, cardID int64) (*models.Card, error) {
	var c models.Card
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT `+cardColumns+`
		FROM cards c
		JOIN deck_members m ON m.deck_id = c.deck_id
		WHERE c.id = ? AND m.learner_id = ?`), cardID, learnerID)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get card"), "card %d not found", cardID)
	}
	return &c, nil
}

// CardByFront returns the card of a deck with the given front text.
func (r *DeckRepository) CardByFront(ctx context.Context, deckID int64, front string) (*models.Card, error) {
	var c models.Card
	err := r.db.GetContext(ctx, &c, r.db.Rebind(`
		SELECT `+cardColumns+` FROM cards c WHERE c.deck_id = ? AND c.front = ?`), deckID, front)
	if err != nil {
		return nil, notFoundOr(errors.Wrap(err, "failed to get card"), "card %q not found", front)
	}
	return &c, nil
}

// Cards returns all cards of a deck ordered by id.
func (r *DeckRepository) Cards(ctx context.Context, deckID int64) ([]models.Card, error) {
	cards := []models.Card{}
	err := r.db.SelectContext(ctx, &cards, r.db.Rebind(`
		SELECT `+cardColumns+` FROM cards c WHERE c.deck_id = ? ORDER BY c.id`), deckID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get cards")
	}
	return cards, nil
}

// CreateCard inserts c. A card with the same front in the deck is a conflict.
func (r *DeckRepository) CreateCard(ctx context.Context, c *models.Card) error {
	err := r.db.QueryRowxContext(ctx, r.db.Rebind(`
		INSERT INTO cards (deck_id, front, back, example) VALUES (?, ?, ?, ?) RETURNING id`),
		c.DeckID, c.Front, c.Back, c.Example,
	).Scan(&c.ID)
	if err != nil {
		return conflictOr(errors.Wrap(err, "failed to create card"), "card %q already exists", c.Front)
	}
	return nil
}

// UpdateCard saves the back and example of c.
func (r *DeckRepository) UpdateCard(ctx context.Context, c *models.Card) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE cards SET back = ?, example = ? WHERE id = ?`), c.Back, c.Example, c.ID)
	return errors.Wrap(err, "failed to update card")
}
