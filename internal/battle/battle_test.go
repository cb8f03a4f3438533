package battle

import "testing"

func card(id, power int, attr Attribute) Card {
	return Card{ID: id, Name: "test", AttackPower: power, Attribute: attr}
}

func TestEffectivenessCycle(t *testing.T) {
	tests := []struct {
		attacker, defender Attribute
		wins               bool
	}{
		{Fire, Earth, true},
		{Earth, Water, true},
		{Water, Fire, true},
		{Earth, Fire, false},
		{Water, Earth, false},
		{Fire, Water, false},
		{Fire, Fire, false},
		{Water, Water, false},
		{Earth, Earth, false},
	}
	for _, tt := range tests {
		if got := tt.attacker.Beats(tt.defender); got != tt.wins {
			t.Errorf("%s beats %s = %v, want %v", tt.attacker, tt.defender, got, tt.wins)
		}
	}
}

func TestResolveAdvantageMultiplier(t *testing.T) {
	// ceil(50 * 1.5) = 75 for the advantaged side
	out := Resolve(card(1, 50, Fire), card(1, 50, Earth))
	if out.Cards[0].EffectivePower != 75 {
		t.Errorf("fire vs earth effective power = %d, want 75", out.Cards[0].EffectivePower)
	}
	if out.Cards[0].Effectiveness != Advantage {
		t.Errorf("effectiveness = %s, want advantage", out.Cards[0].Effectiveness)
	}
	if out.Cards[1].EffectivePower != 50 {
		t.Errorf("earth vs fire effective power = %d, want 50", out.Cards[1].EffectivePower)
	}
	if out.Cards[1].Effectiveness != Disadvantage {
		t.Errorf("effectiveness = %s, want disadvantage", out.Cards[1].Effectiveness)
	}
	if out.Winner != 0 {
		t.Errorf("winner = %d, want 0", out.Winner)
	}
}

func TestResolveCeilRounding(t *testing.T) {
	// ceil(33 * 1.5) = ceil(49.5) = 50
	out := Resolve(card(1, 33, Water), card(1, 49, Fire))
	if out.Cards[0].EffectivePower != 50 {
		t.Errorf("effective power = %d, want 50", out.Cards[0].EffectivePower)
	}
	if out.Winner != 0 {
		t.Errorf("winner = %d, want 0", out.Winner)
	}
}

func TestResolveNeutralSameAttribute(t *testing.T) {
	out := Resolve(card(1, 50, Fire), card(2, 50, Fire))
	for i, cr := range out.Cards {
		if cr.EffectivePower != 50 {
			t.Errorf("card %d effective power = %d, want 50", i, cr.EffectivePower)
		}
		if cr.Effectiveness != Neutral {
			t.Errorf("card %d effectiveness = %s, want neutral", i, cr.Effectiveness)
		}
	}
	if out.Winner != -1 {
		t.Errorf("winner = %d, want draw (-1)", out.Winner)
	}
}

func TestResolveDisadvantageIsNumericallyNeutral(t *testing.T) {
	// The losing matchup keeps multiplier 1.0; only the label differs.
	out := Resolve(card(1, 60, Earth), card(1, 80, Fire))
	if out.Cards[0].Effectiveness != Disadvantage {
		t.Errorf("effectiveness = %s, want disadvantage", out.Cards[0].Effectiveness)
	}
	if out.Cards[0].EffectivePower != 60 {
		t.Errorf("effective power = %d, want unchanged 60", out.Cards[0].EffectivePower)
	}
}

func TestResolveCommutative(t *testing.T) {
	a := card(1, 42, Water)
	b := card(2, 30, Fire)
	ab := Resolve(a, b)
	ba := Resolve(b, a)
	if ab.Cards[0].EffectivePower != ba.Cards[1].EffectivePower ||
		ab.Cards[1].EffectivePower != ba.Cards[0].EffectivePower {
		t.Fatalf("effective powers not symmetric: %+v vs %+v", ab, ba)
	}
	if ab.Winner == -1 {
		if ba.Winner != -1 {
			t.Fatalf("draw not symmetric: %d vs %d", ab.Winner, ba.Winner)
		}
	} else if ba.Winner != 1-ab.Winner {
		t.Fatalf("winner not complementary: %d vs %d", ab.Winner, ba.Winner)
	}
}

func TestValidateHand(t *testing.T) {
	valid := []Card{
		card(1, 10, Fire),
		card(2, 20, Water),
		card(3, 30, Earth),
	}
	if err := ValidateHand(valid); err != nil {
		t.Fatalf("valid hand rejected: %v", err)
	}

	tests := []struct {
		name  string
		cards []Card
	}{
		{"too few", valid[:2]},
		{"duplicate id", []Card{card(1, 10, Fire), card(1, 20, Water), card(3, 30, Earth)}},
		{"id out of range", []Card{card(1, 10, Fire), card(2, 20, Water), card(4, 30, Earth)}},
		{"zero power", []Card{card(1, 0, Fire), card(2, 20, Water), card(3, 30, Earth)}},
		{"bad attribute", []Card{{ID: 1, AttackPower: 10, Attribute: "wind"}, card(2, 20, Water), card(3, 30, Earth)}},
	}
	for _, tt := range tests {
		if err := ValidateHand(tt.cards); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestAttributes(t *testing.T) {
	infos := Attributes()
	if len(infos) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(infos))
	}
	for _, info := range infos {
		if !info.Name.Beats(info.Beats) {
			t.Errorf("%s should beat %s", info.Name, info.Beats)
		}
		if !info.BeatenBy.Beats(info.Name) {
			t.Errorf("%s should be beaten by %s", info.Name, info.BeatenBy)
		}
	}
}
