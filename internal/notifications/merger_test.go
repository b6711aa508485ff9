package notifications

import (
	"encoding/json"
	"testing"
)

func assertFrequencies(t *testing.T, got FrequencyList, want ...Frequency) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("frequencies = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frequencies = %v, want %v", got, want)
		}
	}
}

func TestEffectiveFrequencies_Defaults(t *testing.T) {
	// Never-saved preferences behave like the defaults.
	assertFrequencies(t, EffectiveFrequencies(nil, TypeLowStock, ChannelEmail), FrequencyImmediate)

	p := &Preferences{UserID: "user-1"}
	assertFrequencies(t, EffectiveFrequencies(p, TypeSuggestion, ChannelInApp), FrequencyImmediate)

	p.DefaultFrequency = FrequencyWeekly
	assertFrequencies(t, EffectiveFrequencies(p, TypeSuggestion, ChannelInApp), FrequencyWeekly)
}

func TestEffectiveFrequencies_RuleWins(t *testing.T) {
	p := &Preferences{
		UserID:           "user-1",
		DefaultFrequency: FrequencyImmediate,
		Rules: []Rule{
			{Type: TypeLowStock, Channel: ChannelEmail, Frequencies: FrequencyList{FrequencyDaily}},
		},
	}

	assertFrequencies(t, EffectiveFrequencies(p, TypeLowStock, ChannelEmail), FrequencyDaily)
	// No rule for this pairing: fall back to the default.
	assertFrequencies(t, EffectiveFrequencies(p, TypeLowStock, ChannelInApp), FrequencyImmediate)
	assertFrequencies(t, EffectiveFrequencies(p, TypeSuggestion, ChannelEmail), FrequencyImmediate)
}

func TestEffectiveFrequencies_MultiValueRule(t *testing.T) {
	p := &Preferences{
		UserID:           "user-1",
		DefaultFrequency: FrequencyImmediate,
		Rules: []Rule{
			{Type: TypeLowStock, Channel: ChannelInApp, Frequencies: FrequencyList{FrequencyDaily, FrequencyWeekly}},
		},
	}

	// A rule with several frequencies comes back whole, not truncated.
	assertFrequencies(t, EffectiveFrequencies(p, TypeLowStock, ChannelInApp), FrequencyDaily, FrequencyWeekly)
}

func TestEffectiveFrequencies_UnsubscribeAllEmail(t *testing.T) {
	p := &Preferences{
		UserID:              "user-1",
		DefaultFrequency:    FrequencyDaily,
		UnsubscribeAllEmail: true,
		Rules: []Rule{
			{Type: TypeLowStock, Channel: ChannelEmail, Frequencies: FrequencyList{FrequencyImmediate, FrequencyWeekly}},
		},
	}

	// The opt-out overrides even an explicit email rule, collapsing the whole
	// list to a single NONE.
	assertFrequencies(t, EffectiveFrequencies(p, TypeLowStock, ChannelEmail), FrequencyNone)
	assertFrequencies(t, EffectiveFrequencies(p, TypeSuggestion, ChannelEmail), FrequencyNone)
	// In-app delivery is unaffected.
	assertFrequencies(t, EffectiveFrequencies(p, TypeLowStock, ChannelInApp), FrequencyDaily)
}

func TestFrequencyList_JSON(t *testing.T) {
	// Clients send the frequency field as either a scalar or an array.
	var r Rule
	if err := json.Unmarshal([]byte(`{"type":"LOW_STOCK","channel":"EMAIL","frequency":"DAILY"}`), &r); err != nil {
		t.Fatalf("scalar: %v", err)
	}
	if len(r.Frequencies) != 1 || r.Frequencies[0] != FrequencyDaily {
		t.Fatalf("scalar decoded to %v", r.Frequencies)
	}

	if err := json.Unmarshal([]byte(`{"type":"LOW_STOCK","channel":"EMAIL","frequency":["DAILY","WEEKLY"]}`), &r); err != nil {
		t.Fatalf("array: %v", err)
	}
	if len(r.Frequencies) != 2 || r.Frequencies[0] != FrequencyDaily {
		t.Fatalf("array decoded to %v", r.Frequencies)
	}

	// A single frequency round-trips back to the scalar form.
	raw, err := json.Marshal(Rule{Type: TypeLowStock, Channel: ChannelEmail, Frequencies: FrequencyList{FrequencyDaily}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"type":"LOW_STOCK","channel":"EMAIL","frequency":"DAILY"}` {
		t.Fatalf("marshal = %s", raw)
	}
}
