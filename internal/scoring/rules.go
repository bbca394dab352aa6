package scoring

import (
	"arcam/internal/config"
	"arcam/internal/devices"
)

// Strategy tags explain how a device was chosen.
const (
	StrategyStoredPreference = "stored-preference"
	StrategyEnhancedScoring  = "enhanced-scoring"
	StrategyAvoidTelephoto   = "avoid-telephoto-keywords"
	StrategyFallbackAny      = "fallback-any-camera"
	StrategyFacingHint       = "facing-hint"
	StrategyMinimalFallback  = "minimal-fallback"
)

// Rule is one row of the scoring table: every matched indicator applies Weight.
type Rule struct {
	Name       string
	Indicators []string
	Weight     int
	// PerMatch applies Weight once per matched indicator instead of once.
	PerMatch bool
}

// RuleSet is the complete policy.
type RuleSet struct {
	Base    int
	Exclude []string
	Generic []string
	// Label rules run in order against every candidate.
	Label []Rule
	// Positional weights.
	GenericFirstBonus int
	FirstBonus        int
	LastPenalty       int
}

// DefaultRules returns the built-in policy.
func DefaultRules() RuleSet {
	return FromConfig(config.DefaultScoring())
}

// FromConfig builds a RuleSet from the [scoring] section.
func FromConfig(s config.Scoring) RuleSet {
	fold := func(values []string) []string {
		out := make([]string, 0, len(values))
		for _, v := range values {
			if f := devices.FoldLabel(v); f != "" {
				out = append(out, f)
			}
		}
		return out
	}
	return RuleSet{
		Base:    s.Base,
		Exclude: fold(s.Exclude),
		Generic: fold(s.Generic),
		Label: []Rule{
			{Name: "telephoto", Indicators: fold(s.Telephoto), Weight: s.TelephotoPenalty, PerMatch: true},
			{Name: "ultrawide", Indicators: fold(s.UltraWide), Weight: s.UltraWidePenalty, PerMatch: true},
			{Name: "primary", Indicators: fold(s.Primary), Weight: s.PrimaryBonus},
		},
		GenericFirstBonus: s.GenericFirstBonus,
		FirstBonus:        s.FirstBonus,
		LastPenalty:       s.LastPenalty,
	}
}

func (r RuleSet) rule(name string) (Rule, bool) {
	for _, rule := range r.Label {
		if rule.Name == name {
			return rule, true
		}
	}
	return Rule{}, false
}
