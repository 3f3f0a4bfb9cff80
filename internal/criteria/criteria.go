package criteria

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeRental   Mode = "rental"
	ModePurchase Mode = "purchase"
)

type RuleKind string

const (
	RuleKeyword  RuleKind = "keyword"
	RuleNumeric  RuleKind = "numeric"
	RuleFlag     RuleKind = "flag"
	RuleExternal RuleKind = "external"
)

// External score sources the scorer knows how to read.
const (
	SourceTranquility   = "tranquility"
	SourceVisualQuality = "visual_quality"
)

// Config is the full criteria configuration for one scoring mode. It is
// immutable for the duration of a scoring pass; components receive it
// explicitly rather than reading shared state.
type Config struct {
	Mode         Mode                   `yaml:"mode"`
	HardFilters  HardFilters            `yaml:"hard_filters"`
	Criteria     []Criterion            `yaml:"criteria"`
	SignalGroups map[string]SignalGroup `yaml:"signal_groups"`
	Penalties    PenaltyConfig          `yaml:"penalties"`
	Tiers        []TierThreshold        `yaml:"tiers"`
	AlertPercent float64                `yaml:"alert_percent"`

	// Presets are named partial weight overrides, applied between base
	// weights and learned multipliers.
	Presets map[string]map[string]float64 `yaml:"presets"`
}

type HardFilters struct {
	PriceMax      float64            `yaml:"price_max"`
	MinBeds       int                `yaml:"min_beds"`
	MinBaths      float64            `yaml:"min_baths"`
	MinSqft       float64            `yaml:"min_sqft"`
	Neighborhoods []string           `yaml:"neighborhoods"` // allowlist, empty = any
	Disqualifiers []ModeDisqualifier `yaml:"disqualifiers"`
	RedFlags      []RedFlag          `yaml:"red_flags"`
}

// ModeDisqualifier fails a listing when the named flag is set, but only in the
// configured mode. Mode-conditional behavior lives here, not in code branches.
type ModeDisqualifier struct {
	Mode   Mode   `yaml:"mode"`
	Flag   string `yaml:"flag"`
	Reason string `yaml:"reason"`
}

// RedFlag fails a listing on a confirmed signal. MinConfidence gates the fail:
// an absent or low-confidence signal is insufficient evidence, never a fail.
type RedFlag struct {
	Signal        string  `yaml:"signal"`
	MinConfidence float64 `yaml:"min_confidence"`
	Reason        string  `yaml:"reason"`
}

type Criterion struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
	Rule   Rule    `yaml:"rule"`
}

// Rule defines how a criterion's raw 0-10 score is computed. Exactly one
// kind-specific field set is meaningful per kind.
type Rule struct {
	Kind RuleKind `yaml:"kind"`

	// keyword
	Group         string `yaml:"group,omitempty"`
	NegativeGroup string `yaml:"negative_group,omitempty"`

	// numeric
	Attribute string  `yaml:"attribute,omitempty"`
	Threshold float64 `yaml:"threshold,omitempty"`

	// flag
	Flag string `yaml:"flag,omitempty"`

	// external
	Source string `yaml:"source,omitempty"`
}

// SignalGroup defines one NLP keyword category. The keyword lists are the
// contract with the upstream extractor; the scorer only consumes hit counts.
// SuppressedBy names the correlated positive group that disables a negative
// group entirely when it hits in the same text.
type SignalGroup struct {
	Keywords     []string `yaml:"keywords"`
	Multiplier   float64  `yaml:"multiplier"`
	SuppressedBy string   `yaml:"suppressed_by,omitempty"`
}

type TierThreshold struct {
	MinPercent float64 `yaml:"min_percent"`
	Label      string  `yaml:"label"`
}

type PenaltyConfig struct {
	// ClampAtZero keeps total points from going negative after deductions.
	ClampAtZero  bool          `yaml:"clamp_at_zero"`
	Price        *PriceSoftCap `yaml:"price,omitempty"`
	RecurringFee *FeeBands     `yaml:"recurring_fee,omitempty"`
}

// PriceSoftCap deducts nothing at or below IdealPrice, rising linearly to
// MaxDeduction at the hard-filter ceiling.
type PriceSoftCap struct {
	IdealPrice   float64 `yaml:"ideal_price"`
	MaxDeduction float64 `yaml:"max_deduction"`
}

// FeeBands is the stepped recurring-fee penalty. Below LowBand the fee is
// flagged informationally; above NormalMax and Band1Max fixed deductions
// apply, waivable when the compensating amenity is present.
type FeeBands struct {
	LowBand        float64 `yaml:"low_band"`
	NormalMax      float64 `yaml:"normal_max"`
	Band1Max       float64 `yaml:"band1_max"`
	Band1Deduction float64 `yaml:"band1_deduction"`
	Band2Deduction float64 `yaml:"band2_deduction"`
	WaiverAmenity  string  `yaml:"waiver_amenity,omitempty"`
}

// DefaultTiers returns the standard banding.
func DefaultTiers() []TierThreshold {
	return []TierThreshold{
		{MinPercent: 80, Label: "Exceptional"},
		{MinPercent: 70, Label: "Strong"},
		{MinPercent: 60, Label: "Interesting"},
		{MinPercent: 0, Label: "Pass"},
	}
}

// Load reads and validates a criteria configuration. Any validation error is
// fatal to the caller: scoring against a half-understood configuration is
// worse than not starting.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse criteria config: %w", err)
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the load-time invariants: every declared criterion has a
// well-formed scoring rule (so anything counted toward achievable points is
// actually scoreable), weights are non-negative, and referenced signal groups
// and presets exist.
func (c *Config) Validate() error {
	if c.Mode != ModeRental && c.Mode != ModePurchase {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if len(c.Criteria) == 0 {
		return fmt.Errorf("no criteria defined")
	}

	names := make(map[string]bool, len(c.Criteria))
	for _, cr := range c.Criteria {
		if cr.Name == "" {
			return fmt.Errorf("criterion with empty name")
		}
		if names[cr.Name] {
			return fmt.Errorf("duplicate criterion %q", cr.Name)
		}
		names[cr.Name] = true
		if cr.Weight < 0 {
			return fmt.Errorf("criterion %q: negative weight %f", cr.Name, cr.Weight)
		}
		if err := c.validateRule(cr.Name, cr.Rule); err != nil {
			return err
		}
	}

	for preset, overrides := range c.Presets {
		for name, w := range overrides {
			if !names[name] {
				return fmt.Errorf("preset %q overrides unknown criterion %q", preset, name)
			}
			if w < 0 {
				return fmt.Errorf("preset %q: negative weight for %q", preset, name)
			}
		}
	}

	for i, t := range c.Tiers {
		if t.Label == "" {
			return fmt.Errorf("tier %d has no label", i)
		}
	}

	for _, rf := range c.HardFilters.RedFlags {
		if rf.Signal == "" {
			return fmt.Errorf("red flag with empty signal name")
		}
		if rf.MinConfidence < 0 || rf.MinConfidence > 1 {
			return fmt.Errorf("red flag %q: min_confidence %f out of [0,1]", rf.Signal, rf.MinConfidence)
		}
	}

	return nil
}

func (c *Config) validateRule(name string, r Rule) error {
	switch r.Kind {
	case RuleKeyword:
		if r.Group == "" {
			return fmt.Errorf("criterion %q: keyword rule needs a group", name)
		}
		if _, ok := c.SignalGroups[r.Group]; !ok {
			return fmt.Errorf("criterion %q: unknown signal group %q", name, r.Group)
		}
		if r.NegativeGroup != "" {
			if _, ok := c.SignalGroups[r.NegativeGroup]; !ok {
				return fmt.Errorf("criterion %q: unknown negative group %q", name, r.NegativeGroup)
			}
		}
	case RuleNumeric:
		if r.Attribute == "" {
			return fmt.Errorf("criterion %q: numeric rule needs an attribute", name)
		}
		if r.Threshold <= 0 {
			return fmt.Errorf("criterion %q: numeric rule needs a positive threshold", name)
		}
	case RuleFlag:
		if r.Flag == "" {
			return fmt.Errorf("criterion %q: flag rule needs a flag name", name)
		}
	case RuleExternal:
		if r.Source != SourceTranquility && r.Source != SourceVisualQuality {
			return fmt.Errorf("criterion %q: unknown external source %q", name, r.Source)
		}
	default:
		return fmt.Errorf("criterion %q: no scoring rule defined (kind %q)", name, r.Kind)
	}
	return nil
}
