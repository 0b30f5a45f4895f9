// Package risk evaluates per-category threshold rules over a user's
// latest readings and folds them into a single weighted risk score
// with a bucketed mitigation plan.
package risk

import (
	"sort"
	"time"

	"github.com/vitalgrid/healthwatch/pkg/health"
)

// Comparison is the direction a rule checks.
type Comparison string

const (
	AtOrAbove Comparison = "gte"
	AtOrBelow Comparison = "lte"
)

// Rule is one threshold check within a category. Rule tables are
// ordered most severe first; evaluation never averages, because one
// critical reading must not be diluted by otherwise-normal readings.
type Rule struct {
	Kind        health.MetricKind
	Op          Comparison
	Threshold   float64
	Level       health.RiskLevel
	Probability float64
	Factor      string
	Mitigations []string
}

func (r Rule) triggered(value float64) bool {
	if r.Op == AtOrBelow {
		return value <= r.Threshold
	}
	return value >= r.Threshold
}

// Aggregator holds the per-category rule tables. Stateless after
// construction and safe for concurrent use.
type Aggregator struct {
	rules map[health.RiskCategory][]Rule
}

// NewAggregator builds an aggregator over explicit rule tables; pass
// DefaultRules() for the stock set.
func NewAggregator(rules map[health.RiskCategory][]Rule) *Aggregator {
	return &Aggregator{rules: rules}
}

var levelWeight = map[health.RiskLevel]float64{
	health.RiskLow:      1,
	health.RiskModerate: 2,
	health.RiskHigh:     3,
	health.RiskCritical: 4,
}

// baselineProbability is reported for a category with no triggered
// rules.
const baselineProbability = 0.1

// Assess evaluates every category against the latest reading per
// metric kind and aggregates the weighted overall risk.
func (a *Aggregator) Assess(latest map[health.MetricKind]float64) health.OverallRisk {
	categories := make([]health.RiskCategory, 0, len(a.rules))
	for c := range a.rules {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	assessments := make([]health.RiskAssessment, 0, len(categories))
	var scoreSum float64
	for _, category := range categories {
		assessment := a.assessCategory(category, latest)
		assessments = append(assessments, assessment)
		scoreSum += levelWeight[assessment.Level] * assessment.Probability
	}

	score := 0.0
	if len(assessments) > 0 {
		score = scoreSum / float64(len(assessments))
	}

	return health.OverallRisk{
		Level:       overallLevel(score),
		Score:       score,
		Categories:  assessments,
		Plan:        buildPlan(assessments),
		GeneratedAt: time.Now().UTC(),
	}
}

// assessCategory walks the ordered rules and keeps the highest
// triggered level and the maximum triggered probability.
func (a *Aggregator) assessCategory(category health.RiskCategory, latest map[health.MetricKind]float64) health.RiskAssessment {
	assessment := health.RiskAssessment{
		Category:    category,
		Level:       health.RiskLow,
		Probability: baselineProbability,
	}

	maxProb := 0.0
	seenMitigations := map[string]bool{}
	for _, rule := range a.rules[category] {
		value, ok := latest[rule.Kind]
		if !ok || !rule.triggered(value) {
			continue
		}
		if levelWeight[rule.Level] > levelWeight[assessment.Level] {
			assessment.Level = rule.Level
		}
		if rule.Probability > maxProb {
			maxProb = rule.Probability
		}
		assessment.ContributingFactors = append(assessment.ContributingFactors, rule.Factor)
		for _, m := range rule.Mitigations {
			if !seenMitigations[m] {
				seenMitigations[m] = true
				assessment.Mitigation = append(assessment.Mitigation, m)
			}
		}
	}
	if maxProb > 0 {
		assessment.Probability = maxProb
	}
	return assessment
}

func overallLevel(score float64) health.RiskLevel {
	switch {
	case score >= 3.5:
		return health.RiskCritical
	case score >= 2.5:
		return health.RiskHigh
	case score >= 1.5:
		return health.RiskModerate
	default:
		return health.RiskLow
	}
}

// buildPlan buckets each category's top two mitigation actions by that
// category's level: critical actions are immediate, high are
// short-term, the rest long-term. Actions are deduplicated across the
// whole plan.
func buildPlan(assessments []health.RiskAssessment) health.MitigationPlan {
	var plan health.MitigationPlan
	seen := map[string]bool{}

	add := func(bucket *[]string, actions []string) {
		for i, action := range actions {
			if i >= 2 {
				break
			}
			if seen[action] {
				continue
			}
			seen[action] = true
			*bucket = append(*bucket, action)
		}
	}

	for _, a := range assessments {
		switch a.Level {
		case health.RiskCritical:
			add(&plan.Immediate, a.Mitigation)
		case health.RiskHigh:
			add(&plan.ShortTerm, a.Mitigation)
		default:
			add(&plan.LongTerm, a.Mitigation)
		}
	}
	return plan
}
