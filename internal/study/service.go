package study

import (
	"math"

	"github.com/example/srsbot/internal/apperr"
	"github.com/example/srsbot/internal/logger"
	"github.com/example/srsbot/internal/spaced_repetition"
)

// Service is the study engine.
type Service struct {
	store    Store
	ledger   Ledger
	recorder AnswerRecorder
	policies *spaced_repetition.Registry
	cfg      Config
	log      *logger.Logger
}

// NewService creates the engine. A nil registry means the default ladder only;
// a nil logger discards output.
func NewService(store Store, ledger Ledger, recorder AnswerRecorder, policies *spaced_repetition.Registry, cfg Config, log *logger.Logger) *Service {
	if policies == nil {
		policies = spaced_repetition.NewRegistry(spaced_repetition.NewLadderPolicy(spaced_repetition.DefaultLadder()))
	}
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = DefaultConfig().Location
	}
	return &Service{
		store:    store,
		ledger:   ledger,
		recorder: recorder,
		policies: policies,
		cfg:      cfg,
		log:      log,
	}
}

// Config returns the engine settings.
func (s *Service) Config() Config {
	return s.cfg
}

func optInt(v *int, def int, name string) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v < 0 {
		return 0, apperr.Invalid("%s must not be negative, got %d", name, *v)
	}
	return *v, nil
}

func optRatio(v *float64, def float64, name string) (float64, error) {
	if v == nil {
		return def, nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return 0, apperr.Invalid("%s must be within [0,1], got %v", name, *v)
	}
	return *v, nil
}

// batchLimit applies the configured bounds: 0 means the default size and
// anything above the maximum is clamped.
func (s *Service) batchLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, apperr.Invalid("limit must not be negative, got %d", limit)
	case limit == 0:
		limit = s.cfg.BatchDefault
	}
	if limit < s.cfg.BatchMin {
		limit = s.cfg.BatchMin
	}
	if limit > s.cfg.BatchMax {
		limit = s.cfg.BatchMax
	}
	return limit, nil
}

func cardIDs(cs []Candidate) []int64 {
	ids := make([]int64, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.Card.ID)
	}
	return ids
}
