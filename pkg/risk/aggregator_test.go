package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalgrid/healthwatch/pkg/health"
)

func findCategory(t *testing.T, overall health.OverallRisk, category health.RiskCategory) health.RiskAssessment {
	t.Helper()
	for _, a := range overall.Categories {
		if a.Category == category {
			return a
		}
	}
	t.Fatalf("category %s missing from assessment", category)
	return health.RiskAssessment{}
}

func TestAssessAllNormalIsLow(t *testing.T) {
	aggregator := NewAggregator(DefaultRules())

	overall := aggregator.Assess(map[health.MetricKind]float64{
		health.KindHeartRate:  68,
		health.KindSystolicBP: 118,
		health.KindGlucose:    95,
		health.KindSpO2:       98,
		health.KindSleepHours: 7.5,
		health.KindSteps:      9000,
	})

	assert.Equal(t, health.RiskLow, overall.Level)
	for _, category := range overall.Categories {
		assert.Equal(t, health.RiskLow, category.Level)
		assert.Equal(t, 0.1, category.Probability)
		assert.Empty(t, category.ContributingFactors)
	}
}

func TestCriticalReadingNotDiluted(t *testing.T) {
	aggregator := NewAggregator(DefaultRules())

	// 185 systolic trips the critical, high, and moderate rules at
	// once; the category must report the highest level and the maximum
	// probability, never an average.
	overall := aggregator.Assess(map[health.MetricKind]float64{
		health.KindSystolicBP: 185,
		health.KindHeartRate:  65,
	})

	cardio := findCategory(t, overall, health.RiskCardiovascular)
	assert.Equal(t, health.RiskCritical, cardio.Level)
	assert.Equal(t, 0.9, cardio.Probability)
	assert.Contains(t, cardio.ContributingFactors, "systolic blood pressure at hypertensive crisis level")
}

func TestOverallScoreWeighting(t *testing.T) {
	rules := map[health.RiskCategory][]Rule{
		health.RiskCardiovascular: {{
			Kind: health.KindSystolicBP, Op: AtOrAbove, Threshold: 180,
			Level: health.RiskCritical, Probability: 1.0,
			Factor: "crisis", Mitigations: []string{"act"},
		}},
		health.RiskMetabolic: {{
			Kind: health.KindGlucose, Op: AtOrAbove, Threshold: 250,
			Level: health.RiskCritical, Probability: 1.0,
			Factor: "crisis", Mitigations: []string{"act"},
		}},
	}
	aggregator := NewAggregator(rules)

	overall := aggregator.Assess(map[health.MetricKind]float64{
		health.KindSystolicBP: 190,
		health.KindGlucose:    300,
	})

	// Both categories critical at probability 1: score (4+4)/2 = 4.
	assert.InDelta(t, 4.0, overall.Score, 1e-9)
	assert.Equal(t, health.RiskCritical, overall.Level)
}

func TestLowIsBadRules(t *testing.T) {
	aggregator := NewAggregator(DefaultRules())

	overall := aggregator.Assess(map[health.MetricKind]float64{
		health.KindSpO2: 87,
	})

	resp := findCategory(t, overall, health.RiskRespiratory)
	assert.Equal(t, health.RiskCritical, resp.Level)
	assert.Equal(t, 0.95, resp.Probability)
}

func TestMitigationPlanBuckets(t *testing.T) {
	aggregator := NewAggregator(DefaultRules())

	overall := aggregator.Assess(map[health.MetricKind]float64{
		health.KindSystolicBP: 185, // cardiovascular critical
		health.KindGlucose:    190, // metabolic high
		health.KindSleepHours: 5.5, // lifestyle moderate
	})

	require.NotEmpty(t, overall.Plan.Immediate)
	assert.Contains(t, overall.Plan.Immediate, "seek urgent medical evaluation")
	require.NotEmpty(t, overall.Plan.ShortTerm)
	assert.Contains(t, overall.Plan.ShortTerm, "review recent meals with a dietitian")
	require.NotEmpty(t, overall.Plan.LongTerm)
	assert.Contains(t, overall.Plan.LongTerm, "set a consistent bedtime")
}

func TestMitigationPlanDeduplicates(t *testing.T) {
	rules := map[health.RiskCategory][]Rule{
		health.RiskCardiovascular: {{
			Kind: health.KindSystolicBP, Op: AtOrAbove, Threshold: 180,
			Level: health.RiskCritical, Probability: 0.9,
			Factor: "a", Mitigations: []string{"shared action", "unique a"},
		}},
		health.RiskRespiratory: {{
			Kind: health.KindSpO2, Op: AtOrBelow, Threshold: 88,
			Level: health.RiskCritical, Probability: 0.9,
			Factor: "b", Mitigations: []string{"shared action", "unique b"},
		}},
	}
	aggregator := NewAggregator(rules)

	overall := aggregator.Assess(map[health.MetricKind]float64{
		health.KindSystolicBP: 190,
		health.KindSpO2:       85,
	})

	count := 0
	for _, action := range overall.Plan.Immediate {
		if action == "shared action" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAssessDeterministicOrder(t *testing.T) {
	aggregator := NewAggregator(DefaultRules())
	readings := map[health.MetricKind]float64{
		health.KindSystolicBP: 150,
		health.KindGlucose:    150,
	}

	first := aggregator.Assess(readings)
	second := aggregator.Assess(readings)

	require.Equal(t, len(first.Categories), len(second.Categories))
	for i := range first.Categories {
		assert.Equal(t, first.Categories[i].Category, second.Categories[i].Category)
		assert.Equal(t, first.Categories[i].Level, second.Categories[i].Level)
	}
}
