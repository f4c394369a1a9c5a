package placement

import (
	"errors"
	"fmt"
)

// Level is the recommended proficiency level produced by an evaluation.
type Level string

const (
	LevelBeginner             Level = "beginner"
	LevelIntermediateBeginner Level = "intermediate_beginner"
	LevelAdvancedBeginner     Level = "advanced_beginner"
)

var levelLabels = map[Level]string{
	LevelBeginner:             "Beginner",
	LevelIntermediateBeginner: "Intermediate Beginner",
	LevelAdvancedBeginner:     "Advanced Beginner",
}

// Levels returns the full enumerated set, lowest first.
func Levels() []Level {
	return []Level{LevelBeginner, LevelIntermediateBeginner, LevelAdvancedBeginner}
}

func (l Level) Valid() bool {
	_, ok := levelLabels[l]
	return ok
}

func (l Level) Label() string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return string(l)
}

func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Requirement is met when a tier has at least MinCorrect correct answers
// out of at least MinTotal questions.
type Requirement struct {
	Tier       Tier
	MinCorrect int
	MinTotal   int
}

func (r Requirement) Met(ts Tallies) bool {
	t := ts.Get(r.Tier)
	return t.Correct >= r.MinCorrect && t.Total >= r.MinTotal
}

// Rule assigns Level when every requirement is met. A rule without
// requirements always matches.
type Rule struct {
	Level    Level
	Requires []Requirement
}

func (r Rule) Matches(ts Tallies) bool {
	for _, req := range r.Requires {
		if !req.Met(ts) {
			return false
		}
	}
	return true
}

// RuleTable is evaluated in order; the first matching rule wins.
type RuleTable []Rule

// DefaultRules gates everything on near-mastery of the beginner tier
// before intermediate performance is considered.
var DefaultRules = RuleTable{
	{
		Level: LevelAdvancedBeginner,
		Requires: []Requirement{
			{Tier: TierBeginner, MinCorrect: 6, MinTotal: 7},
			{Tier: TierIntermediate, MinCorrect: 2, MinTotal: 6},
		},
	},
	{
		Level: LevelIntermediateBeginner,
		Requires: []Requirement{
			{Tier: TierBeginner, MinCorrect: 6, MinTotal: 7},
		},
	},
	{Level: LevelBeginner},
}

// Decide returns the level of the first matching rule, or LevelBeginner
// when nothing matches.
func (rt RuleTable) Decide(ts Tallies) Level {
	for _, rule := range rt {
		if rule.Matches(ts) {
			return rule.Level
		}
	}
	return LevelBeginner
}

func (rt RuleTable) Validate() error {
	if len(rt) == 0 {
		return errors.New("rule table is empty")
	}
	for i, rule := range rt {
		if !rule.Level.Valid() {
			return fmt.Errorf("rule %d: unknown level %q", i, rule.Level)
		}
		for _, req := range rule.Requires {
			if !req.Tier.Valid() {
				return fmt.Errorf("rule %d: invalid tier %d", i, int(req.Tier))
			}
			if req.MinCorrect < 0 || req.MinTotal < 0 {
				return fmt.Errorf("rule %d: negative threshold for %s", i, req.Tier)
			}
		}
	}
	return nil
}
