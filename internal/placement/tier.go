package placement

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is the difficulty classification attached to every question.
type Tier int

const (
	TierBeginner Tier = iota
	TierIntermediate
	TierAdvanced

	tierCount
)

var tierNames = [tierCount]string{"beginner", "intermediate", "advanced"}
var tierLabels = [tierCount]string{"Beginner", "Intermediate", "Advanced"}

// Tiers returns every tier in ascending difficulty.
func Tiers() []Tier {
	return []Tier{TierBeginner, TierIntermediate, TierAdvanced}
}

func (t Tier) Valid() bool {
	return t >= 0 && t < tierCount
}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Label is the human readable name used in feedback text.
func (t Tier) Label() string {
	if !t.Valid() {
		return t.String()
	}
	return tierLabels[t]
}

func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Tally is the (correct, total) pair accumulated for one tier.
type Tally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Fraction renders the tally as "correct/total".
func (t Tally) Fraction() string {
	return fmt.Sprintf("%d/%d", t.Correct, t.Total)
}

// Tallies holds one Tally per tier. Indexing by Tier keeps every tier present.
type Tallies [tierCount]Tally

func (ts Tallies) Get(t Tier) Tally {
	if !t.Valid() {
		return Tally{}
	}
	return ts[t]
}

func (ts *Tallies) record(t Tier, correct bool) {
	ts[t].Total++
	if correct {
		ts[t].Correct++
	}
}

func (ts Tallies) Total() int {
	n := 0
	for _, t := range ts {
		n += t.Total
	}
	return n
}

func (ts Tallies) Correct() int {
	n := 0
	for _, t := range ts {
		n += t.Correct
	}
	return n
}

func (ts Tallies) MarshalJSON() ([]byte, error) {
	m := make(map[string]Tally, tierCount)
	for _, t := range Tiers() {
		m[t.String()] = ts[t]
	}
	return json.Marshal(m)
}

func (ts *Tallies) UnmarshalJSON(b []byte) error {
	var m map[string]Tally
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	var out Tallies
	for name, tally := range m {
		t, err := ParseTier(name)
		if err != nil {
			return err
		}
		out[t] = tally
	}
	*ts = out
	return nil
}
