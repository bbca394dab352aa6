package scoring

import (
	"fmt"
	"sort"
	"strings"

	"arcam/internal/devices"
)

// ScoredCandidate is a device with its score. It only lives for one selection.
type ScoredCandidate struct {
	Device   devices.CaptureDevice `json:"device"`
	Score    int                   `json:"score"`
	Strategy string                `json:"strategy"`
	// Hits lists the rules that fired, e.g. "telephoto:tele(-50)".
	Hits []string `json:"hits,omitempty"`
}

// Engine applies a RuleSet.
type Engine struct {
	rules RuleSet
}

// NewEngine returns an engine for rules.
func NewEngine(rules RuleSet) *Engine {
	return &Engine{rules: rules}
}

// Rules exposes the active policy.
func (e *Engine) Rules() RuleSet {
	return e.rules
}

// IsFront reports whether a label unambiguously names a front/selfie sensor.
func (e *Engine) IsFront(label string) bool {
	return devices.ContainsAny(devices.FoldLabel(label), e.rules.Exclude)
}

// HasTelephoto reports whether a label carries any telephoto indicator.
func (e *Engine) HasTelephoto(label string) bool {
	rule, ok := e.rules.rule("telephoto")
	if !ok {
		return false
	}
	return devices.ContainsAny(devices.FoldLabel(label), rule.Indicators)
}

// Candidates filters out front-facing devices, preserving order.
func (e *Engine) Candidates(devs []devices.CaptureDevice) []devices.CaptureDevice {
	out := make([]devices.CaptureDevice, 0, len(devs))
	for _, dev := range devs {
		if dev.Labeled() && e.IsFront(dev.Label) {
			continue
		}
		out = append(out, dev)
	}
	return out
}

// Score ranks devs, best first. Ties keep enumeration order. The result is
// empty only when no candidate survives the front-camera filter.
func (e *Engine) Score(devs []devices.CaptureDevice) []ScoredCandidate {
	cands := e.Candidates(devs)
	out := make([]ScoredCandidate, 0, len(cands))
	for idx, dev := range cands {
		out = append(out, e.scoreOne(dev, idx, len(cands)))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func (e *Engine) scoreOne(dev devices.CaptureDevice, idx, total int) ScoredCandidate {
	c := ScoredCandidate{Device: dev, Score: e.rules.Base, Strategy: StrategyEnhancedScoring}
	folded := devices.FoldLabel(dev.Label)

	for _, rule := range e.rules.Label {
		matched := matches(folded, rule.Indicators)
		if len(matched) == 0 {
			continue
		}
		if rule.PerMatch {
			for _, ind := range matched {
				c.Score += rule.Weight
				c.Hits = append(c.Hits, fmt.Sprintf("%s:%s(%+d)", rule.Name, ind, rule.Weight))
			}
			continue
		}
		c.Score += rule.Weight
		c.Hits = append(c.Hits, fmt.Sprintf("%s:%s(%+d)", rule.Name, matched[0], rule.Weight))
	}

	if idx == 0 && e.isGeneric(folded) {
		c.Score += e.rules.GenericFirstBonus
		c.Hits = append(c.Hits, fmt.Sprintf("generic-first(%+d)", e.rules.GenericFirstBonus))
	}
	if idx == 0 && total >= 2 {
		c.Score += e.rules.FirstBonus
		c.Hits = append(c.Hits, fmt.Sprintf("first(%+d)", e.rules.FirstBonus))
	}
	if idx == total-1 && total >= 3 {
		c.Score += e.rules.LastPenalty
		c.Hits = append(c.Hits, fmt.Sprintf("last(%+d)", e.rules.LastPenalty))
	}
	return c
}

func (e *Engine) isGeneric(folded string) bool {
	return folded == "" || devices.ContainsAny(folded, e.rules.Generic)
}

func matches(folded string, indicators []string) []string {
	if folded == "" {
		return nil
	}
	var out []string
	for _, ind := range indicators {
		if ind != "" && strings.Contains(folded, ind) {
			out = append(out, ind)
		}
	}
	return out
}

// Winner returns the top candidate when its score is strictly positive.
func Winner(cands []ScoredCandidate) (ScoredCandidate, bool) {
	if len(cands) == 0 || cands[0].Score <= 0 {
		return ScoredCandidate{}, false
	}
	return cands[0], true
}

// Explain renders the rule hits of c for diagnostics.
func Explain(c ScoredCandidate) []string {
	if len(c.Hits) == 0 {
		return []string{fmt.Sprintf("base(%d)", c.Score)}
	}
	return append([]string(nil), c.Hits...)
}
