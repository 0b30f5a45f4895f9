package risk

import "github.com/vitalgrid/healthwatch/pkg/health"

// DefaultRules is the stock rule set, ordered most severe first within
// each category. Thresholds mirror prior operational defaults and are
// not clinically validated; deployments should review them.
func DefaultRules() map[health.RiskCategory][]Rule {
	return map[health.RiskCategory][]Rule{
		health.RiskCardiovascular: {
			{
				Kind: health.KindSystolicBP, Op: AtOrAbove, Threshold: 180,
				Level: health.RiskCritical, Probability: 0.9,
				Factor: "systolic blood pressure at hypertensive crisis level",
				Mitigations: []string{
					"seek urgent medical evaluation",
					"recheck blood pressure within 15 minutes",
				},
			},
			{
				Kind: health.KindDiastolicBP, Op: AtOrAbove, Threshold: 120,
				Level: health.RiskCritical, Probability: 0.85,
				Factor: "diastolic blood pressure at hypertensive crisis level",
				Mitigations: []string{
					"seek urgent medical evaluation",
					"recheck blood pressure within 15 minutes",
				},
			},
			{
				Kind: health.KindSystolicBP, Op: AtOrAbove, Threshold: 160,
				Level: health.RiskHigh, Probability: 0.7,
				Factor: "stage 2 hypertension reading",
				Mitigations: []string{
					"schedule a blood pressure review with a clinician",
					"reduce sodium intake",
				},
			},
			{
				Kind: health.KindHeartRate, Op: AtOrAbove, Threshold: 130,
				Level: health.RiskHigh, Probability: 0.6,
				Factor: "sustained resting tachycardia",
				Mitigations: []string{
					"schedule a cardiac rhythm check",
					"avoid stimulants until reviewed",
				},
			},
			{
				Kind: health.KindSystolicBP, Op: AtOrAbove, Threshold: 140,
				Level: health.RiskModerate, Probability: 0.5,
				Factor: "stage 1 hypertension reading",
				Mitigations: []string{
					"track blood pressure daily for two weeks",
					"increase aerobic activity",
				},
			},
			{
				Kind: health.KindHeartRate, Op: AtOrAbove, Threshold: 100,
				Level: health.RiskModerate, Probability: 0.4,
				Factor: "elevated resting heart rate",
				Mitigations: []string{
					"track resting heart rate for a week",
					"review caffeine and sleep habits",
				},
			},
		},
		health.RiskMetabolic: {
			{
				Kind: health.KindGlucose, Op: AtOrAbove, Threshold: 250,
				Level: health.RiskCritical, Probability: 0.9,
				Factor: "severe hyperglycemia",
				Mitigations: []string{
					"contact care team about glucose reading",
					"check ketones if symptomatic",
				},
			},
			{
				Kind: health.KindGlucose, Op: AtOrBelow, Threshold: 55,
				Level: health.RiskCritical, Probability: 0.9,
				Factor: "severe hypoglycemia",
				Mitigations: []string{
					"take fast-acting carbohydrate now",
					"recheck glucose in 15 minutes",
				},
			},
			{
				Kind: health.KindGlucose, Op: AtOrAbove, Threshold: 180,
				Level: health.RiskHigh, Probability: 0.65,
				Factor: "post-meal glucose above target",
				Mitigations: []string{
					"review recent meals with a dietitian",
					"increase post-meal activity",
				},
			},
			{
				Kind: health.KindGlucose, Op: AtOrAbove, Threshold: 140,
				Level: health.RiskModerate, Probability: 0.45,
				Factor: "glucose trending above target range",
				Mitigations: []string{
					"log meals alongside glucose readings",
					"schedule an HbA1c test",
				},
			},
		},
		health.RiskRespiratory: {
			{
				Kind: health.KindSpO2, Op: AtOrBelow, Threshold: 88,
				Level: health.RiskCritical, Probability: 0.95,
				Factor: "oxygen saturation critically low",
				Mitigations: []string{
					"seek immediate medical attention",
					"recheck with a stationary pulse oximeter",
				},
			},
			{
				Kind: health.KindSpO2, Op: AtOrBelow, Threshold: 92,
				Level: health.RiskHigh, Probability: 0.7,
				Factor: "oxygen saturation below normal range",
				Mitigations: []string{
					"rest and repeat the measurement",
					"contact care team if it persists",
				},
			},
			{
				Kind: health.KindRespiratoryRate, Op: AtOrAbove, Threshold: 28,
				Level: health.RiskHigh, Probability: 0.6,
				Factor: "respiratory rate markedly elevated",
				Mitigations: []string{
					"rest and repeat the measurement",
					"contact care team if it persists",
				},
			},
			{
				Kind: health.KindSpO2, Op: AtOrBelow, Threshold: 94,
				Level: health.RiskModerate, Probability: 0.5,
				Factor: "oxygen saturation at lower edge of normal",
				Mitigations: []string{
					"track saturation twice daily",
				},
			},
			{
				Kind: health.KindRespiratoryRate, Op: AtOrAbove, Threshold: 22,
				Level: health.RiskModerate, Probability: 0.4,
				Factor: "respiratory rate mildly elevated",
				Mitigations: []string{
					"track respiratory rate at rest",
				},
			},
		},
		health.RiskLifestyle: {
			{
				Kind: health.KindSleepHours, Op: AtOrBelow, Threshold: 4,
				Level: health.RiskHigh, Probability: 0.6,
				Factor: "severe sleep deprivation",
				Mitigations: []string{
					"prioritize a full night of sleep",
					"review sleep hygiene",
				},
			},
			{
				Kind: health.KindSleepHours, Op: AtOrBelow, Threshold: 6,
				Level: health.RiskModerate, Probability: 0.4,
				Factor: "short sleep duration",
				Mitigations: []string{
					"set a consistent bedtime",
				},
			},
			{
				Kind: health.KindSteps, Op: AtOrBelow, Threshold: 2000,
				Level: health.RiskModerate, Probability: 0.35,
				Factor: "low daily activity",
				Mitigations: []string{
					"add a daily 20 minute walk",
				},
			},
		},
	}
}
