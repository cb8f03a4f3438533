package battle

import (
	"fmt"
	"math"
)

// Attribute is a card's element. Effectiveness is cyclic:
// Fire beats Earth, Earth beats Water, Water beats Fire.
type Attribute string

const (
	Fire  Attribute = "fire"
	Water Attribute = "water"
	Earth Attribute = "earth"
)

var beats = map[Attribute]Attribute{
	Fire:  Earth,
	Earth: Water,
	Water: Fire,
}

// Valid reports whether a is one of the known attributes.
func (a Attribute) Valid() bool {
	_, ok := beats[a]
	return ok
}

// Beats reports whether a has the attribute advantage over other.
func (a Attribute) Beats(other Attribute) bool {
	return beats[a] == other
}

// AdvantageMultiplier is applied to attack power when the attacker's
// attribute beats the defender's. All other pairings use 1.0.
const AdvantageMultiplier = 1.5

// Card is the value object supplied by the card generation service.
// The engine never computes name, power, or attribute itself.
type Card struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	AttackPower int       `json:"attack_power"`
	Attribute   Attribute `json:"attribute"`
	Used        bool      `json:"used"`
}

// Validate checks the fields the generation service contract promises.
func (c Card) Validate() error {
	if c.ID < 1 || c.ID > HandSize {
		return fmt.Errorf("card id %d out of range 1..%d", c.ID, HandSize)
	}
	if c.AttackPower <= 0 {
		return fmt.Errorf("card %d has non-positive attack power %d", c.ID, c.AttackPower)
	}
	if !c.Attribute.Valid() {
		return fmt.Errorf("card %d has unknown attribute %q", c.ID, c.Attribute)
	}
	return nil
}

// HandSize is the number of cards each seat receives per game.
const HandSize = 3

// ValidateHand checks a submitted hand: exactly HandSize cards with
// unique ids, each individually valid.
func ValidateHand(cards []Card) error {
	if len(cards) != HandSize {
		return fmt.Errorf("hand must contain exactly %d cards, got %d", HandSize, len(cards))
	}
	seen := make(map[int]bool, HandSize)
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate card id %d in hand", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Effectiveness labels the attribute matchup for user-facing text.
// Neutral and disadvantage share the 1.0 multiplier; only advantage
// changes the numbers.
type Effectiveness string

const (
	Advantage    Effectiveness = "advantage"
	Neutral      Effectiveness = "neutral"
	Disadvantage Effectiveness = "disadvantage"
)

// CardResult is one side's half of a resolved round.
type CardResult struct {
	Card           Card          `json:"card"`
	EffectivePower int           `json:"effective_power"`
	Effectiveness  Effectiveness `json:"effectiveness"`
}

// Outcome is the result of resolving one round. Winner is the seat
// index (0 or 1) of Cards, or -1 for a draw.
type Outcome struct {
	Cards  [2]CardResult `json:"cards"`
	Winner int           `json:"winner"`
}

// Resolve computes the outcome of one round between seat 0's card a
// and seat 1's card b. It is pure: no card state is mutated here.
func Resolve(a, b Card) Outcome {
	ra := matchup(a, b.Attribute)
	rb := matchup(b, a.Attribute)

	winner := -1
	switch {
	case ra.EffectivePower > rb.EffectivePower:
		winner = 0
	case rb.EffectivePower > ra.EffectivePower:
		winner = 1
	}
	return Outcome{Cards: [2]CardResult{ra, rb}, Winner: winner}
}

func matchup(c Card, opponent Attribute) CardResult {
	r := CardResult{Card: c, EffectivePower: c.AttackPower, Effectiveness: Neutral}
	switch {
	case c.Attribute.Beats(opponent):
		r.EffectivePower = int(math.Ceil(float64(c.AttackPower) * AdvantageMultiplier))
		r.Effectiveness = Advantage
	case opponent.Beats(c.Attribute):
		r.Effectiveness = Disadvantage
	}
	return r
}

// AttributeInfo describes one attribute for the diagnostics endpoint.
type AttributeInfo struct {
	Name     Attribute `json:"name"`
	Beats    Attribute `json:"beats"`
	BeatenBy Attribute `json:"beaten_by"`
}

// Attributes returns the effectiveness cycle in a fixed order.
func Attributes() []AttributeInfo {
	out := make([]AttributeInfo, 0, len(beats))
	for _, a := range []Attribute{Fire, Water, Earth} {
		info := AttributeInfo{Name: a, Beats: beats[a]}
		for from, to := range beats {
			if to == a {
				info.BeatenBy = from
			}
		}
		out = append(out, info)
	}
	return out
}
