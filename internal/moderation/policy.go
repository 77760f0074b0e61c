package moderation

import (
	"fmt"

	"github.com/bencyrus/safeupload/internal/oracle"
)

// DefaultToxicityThreshold flags text when any toxicity score exceeds it.
const DefaultToxicityThreshold = 0.7

// TextPolicy decides whether analyzed text is unsafe.
type TextPolicy struct {
	ToxicityThreshold float64
}

// IsBad reports whether text should be rejected: PII (unless allowPII),
// negative sentiment, or any toxicity score above the threshold. When the
// toxicity check did not run it counts as not toxic.
func (p TextPolicy) IsBad(a oracle.TextAnalysis, allowPII bool) bool {
	if a.HasPII && !allowPII {
		return true
	}
	if a.Sentiment == oracle.SentimentNegative {
		return true
	}
	return p.toxic(a)
}

func (p TextPolicy) toxic(a oracle.TextAnalysis) bool {
	if !a.ToxicityAvailable {
		return false
	}
	threshold := p.ToxicityThreshold
	if threshold <= 0 {
		threshold = DefaultToxicityThreshold
	}
	for _, l := range a.ToxicLabels {
		if l.Score > threshold {
			return true
		}
	}
	return false
}

// LabelPolicy decides whether a set of image or video labels is unsafe.
type LabelPolicy interface {
	// MinConfidence is passed to scanners so they can drop weak labels early.
	MinConfidence() float64
	IsBad(labels []oracle.Label) bool
}

// ThresholdPolicy flags content when any label's confidence exceeds
// Threshold, regardless of category.
type ThresholdPolicy struct {
	Threshold float64
}

func (p ThresholdPolicy) MinConfidence() float64 { return p.Threshold }

func (p ThresholdPolicy) IsBad(labels []oracle.Label) bool {
	for _, l := range labels {
		if l.Confidence > p.Threshold {
			return true
		}
	}
	return false
}

// BlockedCategories are the top-level moderation categories FilteredPolicy
// acts on.
var BlockedCategories = []string{
	"Explicit Nudity", "Suggestive", "Violence",
	"Visually Disturbing", "Weapons", "Drugs",
	"Alcohol", "Tobacco", "Hate Symbols", "Self-Harm",
}

// FilteredPolicy only flags labels in a blocked category whose confidence is
// at least Threshold.
type FilteredPolicy struct {
	Threshold float64
	blocked   map[string]struct{}
}

// NewFilteredPolicy blocks the given parent categories, or
// BlockedCategories when none are given.
func NewFilteredPolicy(threshold float64, categories ...string) FilteredPolicy {
	if len(categories) == 0 {
		categories = BlockedCategories
	}
	blocked := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		blocked[c] = struct{}{}
	}
	return FilteredPolicy{Threshold: threshold, blocked: blocked}
}

func (p FilteredPolicy) MinConfidence() float64 { return p.Threshold }

func (p FilteredPolicy) IsBad(labels []oracle.Label) bool {
	return len(p.Flagged(labels)) > 0
}

// Flagged describes each blocked label as "Parent/Name (97.1%)".
func (p FilteredPolicy) Flagged(labels []oracle.Label) []string {
	var out []string
	for _, l := range labels {
		category, name := l.Parent, l.Parent+"/"+l.Name
		if category == "" {
			// top-level labels carry the category as their own name
			category, name = l.Name, l.Name
		}
		if _, ok := p.blocked[category]; !ok || l.Confidence < p.Threshold {
			continue
		}
		out = append(out, fmt.Sprintf("%s (%.1f%%)", name, l.Confidence))
	}
	return out
}

var (
	_ LabelPolicy = ThresholdPolicy{}
	_ LabelPolicy = FilteredPolicy{}
)
