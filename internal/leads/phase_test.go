package leads

import "testing"

func TestResolvePhase_FirstMatchWins(t *testing.T) {
	cases := []struct {
		name   string
		tags   []string
		status string
		want   string
	}{
		{"qualified beats temperature tag", []string{"Qualified", "Hot Lead"}, "", PhaseQualified},
		{"order independent", []string{"Hot Lead", "Qualified"}, "", PhaseQualified},
		{"downsell outranks qualified", []string{"Qualified", "Downsell Offer"}, "", PhaseDownsell},
		{"disqualified is not qualified", []string{"Disqualified"}, "", PhaseDisqualified},
		{"unqualified spelling", []string{"unqualified - budget"}, "", PhaseDisqualified},
		{"no show variants", []string{"No-Show"}, "", PhaseNoShow},
		{"booked call", []string{"Call Booked"}, "", PhaseBookedCall},
		{"follow up", []string{"needs follow up"}, "", PhaseFollowUp},
		{"closed won", []string{"Closed-Won"}, "", PhaseClosedWon},
		{"closed lost", []string{"Lost"}, "", PhaseClosedLost},
		{"status fallback", nil, "booked call tomorrow", PhaseBookedCall},
		{"unrecognized status slugs", nil, "VIP Program!!", "vip_program"},
		{"default open", nil, "", PhaseOpen},
		{"unrecognized tags ignored", []string{"Fitness", "Q4"}, "", PhaseOpen},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolvePhase(tc.tags, tc.status); got != tc.want {
				t.Errorf("ResolvePhase(%v, %q) = %q, want %q", tc.tags, tc.status, got, tc.want)
			}
		})
	}
}

func TestResolvePhase_Deterministic(t *testing.T) {
	tags := []string{"Follow Up", "No Show", "Warm"}
	first := ResolvePhase(tags, "")
	for i := 0; i < 10; i++ {
		if got := ResolvePhase(tags, ""); got != first {
			t.Fatalf("resolution not deterministic: %q vs %q", got, first)
		}
	}
	if first != PhaseNoShow {
		t.Errorf("expected no_show to outrank follow_up, got %q", first)
	}
}

func TestSlug_CapsLength(t *testing.T) {
	long := "This Is A Very Long Custom Pipeline Stage Name That Goes On And On Forever"
	slug := Slug(long)
	if len(slug) > 48 {
		t.Errorf("slug %q exceeds 48 characters (%d)", slug, len(slug))
	}
	if slug == "" {
		t.Error("slug should not be empty for non-empty input")
	}
}

func TestResolveTemperature(t *testing.T) {
	cases := []struct {
		tags []string
		want Temperature
	}{
		{[]string{"Hot Lead"}, TempHot},
		{[]string{"warm audience"}, TempWarm},
		{[]string{"COLD outreach"}, TempCold},
		{[]string{"Qualified"}, TempNone},
		{nil, TempNone},
	}
	for _, tc := range cases {
		if got := ResolveTemperature(tc.tags); got != tc.want {
			t.Errorf("ResolveTemperature(%v) = %q, want %q", tc.tags, got, tc.want)
		}
	}
}
