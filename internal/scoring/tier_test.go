package scoring

import (
	"testing"

	"github.com/hearthside/homematch/internal/criteria"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{95, "Exceptional"},
		{80, "Exceptional"},
		{79.9, "Strong"},
		{70, "Strong"},
		{65, "Interesting"},
		{60, "Interesting"},
		{59.9, "Pass"},
		{0, "Pass"},
	}
	for _, tt := range tests {
		if got := Classify(tt.percent, criteria.DefaultTiers()); got != tt.want {
			t.Errorf("Classify(%f) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestClassifyCustomBands(t *testing.T) {
	tiers := []criteria.TierThreshold{
		{MinPercent: 0, Label: "Skip"},
		{MinPercent: 90, Label: "Unicorn"},
		{MinPercent: 50, Label: "Maybe"},
	}
	if got := Classify(92, tiers); got != "Unicorn" {
		t.Errorf("got %q, want Unicorn", got)
	}
	if got := Classify(55, tiers); got != "Maybe" {
		t.Errorf("got %q, want Maybe", got)
	}
	if got := Classify(10, tiers); got != "Skip" {
		t.Errorf("got %q, want Skip", got)
	}
}

func TestClassifyBelowEveryThreshold(t *testing.T) {
	tiers := []criteria.TierThreshold{
		{MinPercent: 90, Label: "Unicorn"},
		{MinPercent: 50, Label: "Maybe"},
	}
	if got := Classify(10, tiers); got != "Maybe" {
		t.Errorf("got %q, want lowest band", got)
	}
}

func TestClassifyEmptyFallsBackToDefaults(t *testing.T) {
	if got := Classify(85, nil); got != "Exceptional" {
		t.Errorf("got %q, want Exceptional", got)
	}
}
