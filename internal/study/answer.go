package study

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/srsbot/internal/apperr"
	sr "github.com/example/srsbot/internal/spaced_repetition"
	"github.com/example/srsbot/pkg/models"
)

// Answer is a learner's response to a card. Quality, when set, is a 0-5 grade
// and takes precedence over Learned.
type Answer struct {
	LearnerID int64
	CardID    int64
	Learned   bool
	Quality   *int
}

// AnswerResult is the saved progress record and how the answer was counted.
type AnswerResult struct {
	Progress *models.Progress `json:"progress"`
	Kind     ItemKind         `json:"kind"`
	Day      string           `json:"day"`
}

// ApplyAnswer moves the card to its next state and counts the answer in
// today's ledger row, both in one transaction.
func (s *Service) ApplyAnswer(ctx context.Context, a Answer, now time.Time) (*AnswerResult, error) {
	out := sr.OutcomeFromLearned(a.Learned)
	if a.Quality != nil {
		if *a.Quality < 0 || *a.Quality > 5 {
			return nil, apperr.Invalid("quality must be within 0..5, got %d", *a.Quality)
		}
		out = sr.OutcomeFromQuality(sr.QualityResponse(*a.Quality))
	}

	card, err := s.store.Card(ctx, a.LearnerID, a.CardID)
	if err != nil {
		return nil, err
	}
	deck, err := s.store.Deck(ctx, a.LearnerID, card.DeckID)
	if err != nil {
		return nil, err
	}

	res := &AnswerResult{Day: s.cfg.Day(now)}
	tx := AnswerTx{LearnerID: a.LearnerID, CardID: card.ID, DeckID: card.DeckID, Day: res.Day}
	p, err := s.recorder.RecordAnswer(ctx, tx, func(p *models.Progress) Delta {
		d := Delta{Items: 1}
		if p.TimesSeen > 0 {
			res.Kind = KindReview
			d.Reviews = 1
		} else {
			res.Kind = KindNew
			d.New = 1
		}
		s.advance(p, deck.Policy, out, now)
		return d
	})
	if err != nil {
		return nil, err
	}
	res.Progress = p

	s.log.Debug("applied answer",
		"learner_id", a.LearnerID,
		"card_id", card.ID,
		"learned", out.Learned,
		"kind", res.Kind,
		"status", p.Status,
		"policy", p.Policy,
	)
	return res, nil
}

// advance applies one answer to p. The policy is pinned on the first answer
// so one card's history never mixes policies.
func (s *Service) advance(p *models.Progress, deckPolicy string, out sr.Outcome, now time.Time) {
	name := p.Policy
	if name == "" {
		name = deckPolicy
	}
	policy := s.policies.Get(name)
	switch {
	case p.Policy == "":
		p.Policy = policy.Name()
	case !s.policies.Has(p.Policy):
		s.log.Warn("pinned policy is not registered, scheduling with the default",
			"learner_id", p.LearnerID,
			"card_id", p.CardID,
			"policy", p.Policy,
			"default", policy.Name(),
		)
	}

	state, ok := sr.StateFromRecord(p.Status, p.Stage)
	if !ok {
		s.log.Warn("unrecognized progress status, treating as new",
			"learner_id", p.LearnerID,
			"card_id", p.CardID,
			"status", p.Status,
		)
	}
	cur := sr.Schedule{
		State:        state,
		EaseFactor:   p.EaseFactor,
		IntervalDays: p.IntervalDays,
		Repetitions:  p.Repetitions,
	}
	if p.DueAt.Valid {
		due := p.DueAt.Time
		cur.DueAt = &due
	}

	next := policy.Next(cur, out, now)

	p.Status, p.Stage = sr.Encode(next.State)
	p.DueAt = sql.NullTime{}
	if next.DueAt != nil {
		p.DueAt = sql.NullTime{Time: next.DueAt.UTC(), Valid: true}
	}
	p.EaseFactor = next.EaseFactor
	p.IntervalDays = next.IntervalDays
	p.Repetitions = next.Repetitions
	p.TimesSeen++
	if out.Learned {
		p.TimesCorrect++
	}
	p.LastReviewedAt = sql.NullTime{Time: now.UTC(), Valid: true}
}
