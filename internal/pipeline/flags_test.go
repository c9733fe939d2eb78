package pipeline

import (
	"reflect"
	"testing"
)

func TestFlagRisk_NoFindings(t *testing.T) {
	seg := &Segmentation{WholeTumorML: 20, EnhancingML: 5, NecroticML: 2}
	gen := &GenotypePrediction{Markers: map[string]float64{
		MarkerIDHWildtype:       0.4,
		MarkerEGFRAmplification: 0.3,
	}}

	flags := FlagRisk(seg, gen)
	if flags.HighRisk || flags.RequiresUrgentReview {
		t.Errorf("no threshold exceeded but flags = %+v", flags)
	}
	if len(flags.RiskFactors) != 0 {
		t.Errorf("expected no risk factors, got %v", flags.RiskFactors)
	}
}

func TestFlagRisk_VolumeThresholds(t *testing.T) {
	seg := &Segmentation{WholeTumorML: 60, EnhancingML: 25, NecroticML: 12}
	flags := FlagRisk(seg, nil)

	if !flags.HighRisk {
		t.Error("HighRisk should be set")
	}
	if !flags.RequiresUrgentReview {
		t.Error("RequiresUrgentReview should be set for a large necrotic core")
	}
	if flags.UrgencyReason == "" {
		t.Error("urgent review must carry a reason")
	}

	// One tag per triggered threshold, in table order.
	want := []string{
		"Large tumor volume (>50 mL)",
		"Significant tumor enhancement (>20 mL)",
		"Large necrotic core (>10 mL)",
	}
	if !reflect.DeepEqual(flags.RiskFactors, want) {
		t.Errorf("risk factors = %v, want %v", flags.RiskFactors, want)
	}
}

func TestFlagRisk_GenotypeThresholds(t *testing.T) {
	gen := &GenotypePrediction{Markers: map[string]float64{
		MarkerIDHWildtype:       0.8,
		MarkerEGFRAmplification: 0.7,
	}}
	flags := FlagRisk(nil, gen)

	if !flags.HighRisk {
		t.Error("HighRisk should be set")
	}
	if flags.RequiresUrgentReview {
		t.Error("genotype thresholds alone should not trigger urgent review")
	}
	if len(flags.RiskFactors) != 2 {
		t.Errorf("expected 2 risk factors, got %v", flags.RiskFactors)
	}
}

func TestFlagRisk_NilInputs(t *testing.T) {
	flags := FlagRisk(nil, nil)
	if flags.HighRisk || flags.RequiresUrgentReview || len(flags.RiskFactors) != 0 {
		t.Errorf("nil inputs should produce empty flags, got %+v", flags)
	}
}
