package study

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/pkg/models"
)

// memStore is an in-memory Store, Ledger and AnswerRecorder.
type memStore struct {
	mu sync.Mutex

	decks    map[int64]models.Deck
	access   map[[2]int64]bool
	cards    []models.Card
	learners map[int64]models.Learner
	progress map[[2]int64]*models.Progress
	counters map[models.CounterKey]*models.DailyCounter

	nextCardID int64
	calls      int
	dueQueries []DueQuery
	newQueries []NewQuery
}

func newMemStore() *memStore {
	return &memStore{
		decks:      map[int64]models.Deck{},
		access:     map[[2]int64]bool{},
		learners:   map[int64]models.Learner{},
		progress:   map[[2]int64]*models.Progress{},
		counters:   map[models.CounterKey]*models.DailyCounter{},
		nextCardID: 100,
	}
}

func (m *memStore) addLearner(l models.Learner) {
	m.learners[l.ID] = l
}

func (m *memStore) addDeck(d models.Deck, members ...int64) {
	m.decks[d.ID] = d
	for _, id := range members {
		m.access[[2]int64{id, d.ID}] = true
	}
}

func (m *memStore) addCards(deckID int64, n int) []int64 {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		m.nextCardID++
		m.cards = append(m.cards, models.Card{ID: m.nextCardID, DeckID: deckID, Front: "front", Back: "back"})
		ids = append(ids, m.nextCardID)
	}
	return ids
}

func (m *memStore) setProgress(p models.Progress) {
	cp := p
	m.progress[[2]int64{p.LearnerID, p.CardID}] = &cp
}

func (m *memStore) learning(learnerID, cardID int64, stage int, due time.Time) {
	m.setProgress(models.Progress{
		LearnerID: learnerID,
		CardID:    cardID,
		Status:    models.StatusLearning,
		Stage:     sql.NullInt64{Int64: int64(stage), Valid: true},
		DueAt:     sql.NullTime{Time: due, Valid: true},
		TimesSeen: 1,
	})
}

func sqlTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func (m *memStore) Deck(_ context.Context, learnerID, deckID int64) (*models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	d, ok := m.decks[deckID]
	if !ok || !m.access[[2]int64{learnerID, deckID}] {
		return nil, apperr.NotFound("deck %d not found", deckID)
	}
	return &d, nil
}

func (m *memStore) Card(_ context.Context, learnerID, cardID int64) (*models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for _, c := range m.cards {
		if c.ID == cardID && m.access[[2]int64{learnerID, c.DeckID}] {
			cp := c
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("card %d not found", cardID)
}

func (m *memStore) Learner(_ context.Context, learnerID int64) (*models.Learner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	l, ok := m.learners[learnerID]
	if !ok {
		return nil, apperr.NotFound("learner %d not found", learnerID)
	}
	return &l, nil
}

func excluded(ids []int64, id int64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func page(cs []Candidate, offset, limit int) []Candidate {
	if offset >= len(cs) || limit <= 0 {
		return nil
	}
	cs = cs[offset:]
	if limit < len(cs) {
		cs = cs[:limit]
	}
	return cs
}

func (m *memStore) FetchDue(_ context.Context, q DueQuery) ([]Candidate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.dueQueries = append(m.dueQueries, q)

	var out []Candidate
	for _, c := range m.cards {
		if c.DeckID != q.DeckID || excluded(q.ExcludeIDs, c.ID) {
			continue
		}
		p := m.progress[[2]int64{q.LearnerID, c.ID}]
		if p == nil || p.Status != models.StatusLearning || !p.DueAt.Valid || p.DueAt.Time.After(q.Now) {
			continue
		}
		cp := *p
		out = append(out, Candidate{Card: c, Progress: &cp})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.Order == OrderByWeakness && a.Progress.Accuracy() != b.Progress.Accuracy() {
			return a.Progress.Accuracy() < b.Progress.Accuracy()
		}
		if !a.Progress.DueAt.Time.Equal(b.Progress.DueAt.Time) {
			return a.Progress.DueAt.Time.Before(b.Progress.DueAt.Time)
		}
		return a.Card.ID < b.Card.ID
	})
	return page(out, q.Offset, q.Limit), len(out), nil
}

func (m *memStore) FetchNew(_ context.Context, q NewQuery) ([]Candidate, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.newQueries = append(m.newQueries, q)

	var out []Candidate
	for _, c := range m.cards {
		if c.DeckID != q.DeckID || excluded(q.ExcludeIDs, c.ID) {
			continue
		}
		p := m.progress[[2]int64{q.LearnerID, c.ID}]
		switch {
		case p == nil:
			out = append(out, Candidate{Card: c})
		case p.Status == models.StatusNew && (!p.DueAt.Valid || !p.DueAt.Time.After(q.Now)):
			cp := *p
			out = append(out, Candidate{Card: c, Progress: &cp})
		}
	}
	return page(out, q.Offset, q.Limit), len(out), nil
}

func (m *memStore) NextDueAt(_ context.Context, learnerID, deckID int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	var next *time.Time
	for _, c := range m.cards {
		if c.DeckID != deckID {
			continue
		}
		p := m.progress[[2]int64{learnerID, c.ID}]
		if p == nil || p.Status != models.StatusLearning || !p.DueAt.Valid {
			continue
		}
		if next == nil || p.DueAt.Time.Before(*next) {
			t := p.DueAt.Time
			next = &t
		}
	}
	return next, nil
}

func (m *memStore) Today(_ context.Context, key models.CounterKey) (models.DailyCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if row, ok := m.counters[key]; ok {
		return *row, nil
	}
	return models.DailyCounter{LearnerID: key.LearnerID, DeckID: key.DeckID, Day: key.Day}, nil
}

func (m *memStore) GetOrCreateToday(_ context.Context, key models.CounterKey) (*models.DailyCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreate(key), nil
}

func (m *memStore) getOrCreate(key models.CounterKey) *models.DailyCounter {
	row, ok := m.counters[key]
	if !ok {
		row = &models.DailyCounter{ID: int64(len(m.counters) + 1), LearnerID: key.LearnerID, DeckID: key.DeckID, Day: key.Day}
		m.counters[key] = row
	}
	return row
}

func (m *memStore) Increment(_ context.Context, row *models.DailyCounter, d Delta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.getOrCreate(models.CounterKey{LearnerID: row.LearnerID, DeckID: row.DeckID, Day: row.Day})
	stored.ItemsDone += d.Items
	stored.ReviewsDone += d.Reviews
	stored.NewDone += d.New
	*row = *stored
	return nil
}

func (m *memStore) RecordAnswer(_ context.Context, tx AnswerTx, mutate func(p *models.Progress) Delta) (*models.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := [2]int64{tx.LearnerID, tx.CardID}
	p := models.Progress{LearnerID: tx.LearnerID, CardID: tx.CardID, Status: models.StatusNew}
	if cur, ok := m.progress[key]; ok {
		p = *cur
	}
	d := mutate(&p)
	m.progress[key] = &p

	row := m.getOrCreate(models.CounterKey{LearnerID: tx.LearnerID, DeckID: tx.DeckID, Day: tx.Day})
	row.ItemsDone += d.Items
	row.ReviewsDone += d.Reviews
	row.NewDone += d.New

	out := p
	return &out, nil
}
