package pipeline

// Risk thresholds over the combined segmentation and genotype outputs.
const (
	wholeTumorHighRiskML = 50.0
	enhancingHighRiskML  = 20.0
	necroticUrgentML     = 10.0
	idhWildtypeHighRisk  = 0.7
	egfrHighRisk         = 0.6
)

// riskThreshold is one row of the flagging table. Thresholds are evaluated
// in declaration order and each triggered row contributes one risk-factor
// tag.
type riskThreshold struct {
	tag     string
	urgent  bool
	reason  string
	exceeds func(seg *Segmentation, gen *GenotypePrediction) bool
}

var riskThresholds = []riskThreshold{
	{
		tag: "Large tumor volume (>50 mL)",
		exceeds: func(seg *Segmentation, _ *GenotypePrediction) bool {
			return seg != nil && seg.WholeTumorML > wholeTumorHighRiskML
		},
	},
	{
		tag: "Significant tumor enhancement (>20 mL)",
		exceeds: func(seg *Segmentation, _ *GenotypePrediction) bool {
			return seg != nil && seg.EnhancingML > enhancingHighRiskML
		},
	},
	{
		tag:    "Large necrotic core (>10 mL)",
		urgent: true,
		reason: "large necrotic core may indicate high-grade glioma",
		exceeds: func(seg *Segmentation, _ *GenotypePrediction) bool {
			return seg != nil && seg.NecroticML > necroticUrgentML
		},
	},
	{
		tag: "IDH-wildtype likely (worse prognosis)",
		exceeds: func(_ *Segmentation, gen *GenotypePrediction) bool {
			return gen != nil && gen.Markers[MarkerIDHWildtype] > idhWildtypeHighRisk
		},
	},
	{
		tag: "EGFR amplification likely",
		exceeds: func(_ *Segmentation, gen *GenotypePrediction) bool {
			return gen != nil && gen.Markers[MarkerEGFRAmplification] > egfrHighRisk
		},
	},
}

// FlagRisk evaluates the fixed threshold table. Any triggered threshold sets
// HighRisk; the urgent subset additionally sets RequiresUrgentReview with its
// reason. Pure function: nil sub-results simply skip their thresholds.
func FlagRisk(seg *Segmentation, gen *GenotypePrediction) ClinicalFlags {
	var flags ClinicalFlags
	for _, th := range riskThresholds {
		if !th.exceeds(seg, gen) {
			continue
		}
		flags.HighRisk = true
		flags.RiskFactors = append(flags.RiskFactors, th.tag)
		if th.urgent && !flags.RequiresUrgentReview {
			flags.RequiresUrgentReview = true
			flags.UrgencyReason = th.reason
		}
	}
	return flags
}
