package pipeline

import (
	"time"

	"github.com/cortexa/neurogate/internal/study"
)

// Molecular marker names reported by genotype prediction. The markers are
// independent probabilities, not mutually exclusive classes; only the IDH
// pair is modeled as complementary.
const (
	MarkerIDHMutation       = "idh_mutation"
	MarkerIDHWildtype       = "idh_wildtype"
	MarkerMGMTMethylation   = "mgmt_methylation"
	MarkerEGFRAmplification = "egfr_amplification"
)

// MarkerNames lists the reported markers in presentation order.
var MarkerNames = []string{
	MarkerIDHMutation,
	MarkerIDHWildtype,
	MarkerMGMTMethylation,
	MarkerEGFRAmplification,
}

// Stage names used as keys in Result.StageErrors.
const (
	StageSegmentation   = "segmentation"
	StageGenotype       = "genotype_prediction"
	StageExplainability = "explainability"
)

// Segmentation holds per-region tumor volumes and derived visualizations.
// The region volumes always satisfy WholeTumorML >= EnhancingML + NecroticML;
// the remainder is interpreted as edema.
type Segmentation struct {
	WholeTumorML float64 `json:"whole_tumor_volume_ml"`
	EnhancingML  float64 `json:"enhancing_tumor_volume_ml"`
	NecroticML   float64 `json:"necrotic_core_volume_ml"`
	Confidence   float64 `json:"confidence_score"`

	// PNG-encoded visualizations.
	Overlay     []byte `json:"segmentation_map,omitempty"`
	RegionGrid  []byte `json:"tumor_region_grid,omitempty"`
	Composition []byte `json:"composition_chart,omitempty"`
}

// EdemaML returns the derived edema volume.
func (s *Segmentation) EdemaML() float64 {
	return s.WholeTumorML - s.EnhancingML - s.NecroticML
}

// GenotypePrediction maps molecular marker names to probabilities in [0,1].
type GenotypePrediction struct {
	Markers    map[string]float64 `json:"markers"`
	Confidence float64            `json:"prediction_confidence"`
}

// Explainability carries the human-readable account of the analysis.
type Explainability struct {
	Text              string                            `json:"explanation_text"`
	ImportantFeatures []string                          `json:"important_features"`
	AttentionMaps     map[study.SequenceType][]byte     `json:"attention_maps,omitempty"`
}

// ClinicalFlags is the risk assessment over the combined segmentation and
// genotype outputs.
type ClinicalFlags struct {
	HighRisk             bool     `json:"high_risk"`
	RequiresUrgentReview bool     `json:"requires_urgent_review"`
	UrgencyReason        string   `json:"urgency_reason,omitempty"`
	RiskFactors          []string `json:"risk_factors"`
}

// Result is the assembled output of one analysis run. Sub-records may be nil
// when their stage failed or was disabled; StageErrors records what went
// wrong per stage so partial results stay reportable.
type Result struct {
	StudyID            string              `json:"study_id"`
	Timestamp          time.Time           `json:"timestamp"`
	ValidationBypassed bool                `json:"validation_bypassed"`
	Segmentation       *Segmentation       `json:"segmentation,omitempty"`
	Genotype           *GenotypePrediction `json:"genotype_prediction,omitempty"`
	Explainability     *Explainability     `json:"explainability,omitempty"`
	ClinicalFlags      *ClinicalFlags      `json:"clinical_flags,omitempty"`
	StageErrors        map[string]string   `json:"stage_errors,omitempty"`
	ProcessingSeconds  float64             `json:"processing_time_seconds"`
}
