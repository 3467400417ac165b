package spaced_repetition

import "time"

// Policy names stored on decks and progress records.
const (
	PolicyLadder = "ladder"
	PolicySM2    = "sm2"
)

// Outcome is a learner's answer. Quality is on the 0-5 SM-2 scale; policies that
// only care about pass/fail read Learned.
type Outcome struct {
	Learned bool
	Quality QualityResponse
}

// OutcomeFromLearned maps a binary answer to a quality grade.
func OutcomeFromLearned(learned bool) Outcome {
	if learned {
		return Outcome{Learned: true, Quality: QualityCorrectHesitation}
	}
	return Outcome{Learned: false, Quality: QualityIncorrectFamiliar}
}

// OutcomeFromQuality maps a graded answer; quality >= 3 counts as learned.
func OutcomeFromQuality(q QualityResponse) Outcome {
	if q < QualityBlackout {
		q = QualityBlackout
	}
	if q > QualityPerfect {
		q = QualityPerfect
	}
	return Outcome{Learned: q >= QualityCorrectDifficult, Quality: q}
}

// Schedule is everything a policy reads and writes on a progress record.
type Schedule struct {
	State        State
	DueAt        *time.Time
	EaseFactor   float64
	IntervalDays int
	Repetitions  int
}

// Policy computes the next schedule of a card.
type Policy interface {
	Name() string
	Next(cur Schedule, out Outcome, now time.Time) Schedule
}

// LadderPolicy adapts Ladder to the Policy interface.
type LadderPolicy struct {
	Ladder Ladder
}

func NewLadderPolicy(l Ladder) *LadderPolicy {
	return &LadderPolicy{Ladder: l}
}

func (p *LadderPolicy) Name() string { return PolicyLadder }

func (p *LadderPolicy) Next(cur Schedule, out Outcome, now time.Time) Schedule {
	next := cur
	next.State, next.DueAt = p.Ladder.Next(cur.State, out.Learned, now)
	return next
}

// Registry resolves policies by name.
type Registry struct {
	def      Policy
	policies map[string]Policy
}

// NewRegistry registers def and others; def also serves unknown names.
func NewRegistry(def Policy, others ...Policy) *Registry {
	r := &Registry{def: def, policies: map[string]Policy{def.Name(): def}}
	for _, p := range others {
		r.policies[p.Name()] = p
	}
	return r
}

// Get returns the named policy, or the default one.
func (r *Registry) Get(name string) Policy {
	if p, ok := r.policies[name]; ok {
		return p
	}
	return r.def
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.policies[name]
	return ok
}
