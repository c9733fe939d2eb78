package pipeline

import "fmt"

// Important-feature thresholds, expressed as fractions of whole-tumor volume.
const (
	enhancingFeatureFraction = 1.0 / 3.0
	necroticFeatureFraction  = 1.0 / 5.0
)

// BuildExplanation renders the deterministic explanation text for a pair of
// stage outputs. Either argument may be nil when its stage failed; the text
// then covers only what succeeded.
func BuildExplanation(seg *Segmentation, gen *GenotypePrediction) string {
	var out string

	if seg != nil {
		out = fmt.Sprintf(
			"Tumor identified with total volume of %.1f mL. Enhancing component: %.1f mL. Necrotic core: %.1f mL. Surrounding edema: %.1f mL.",
			seg.WholeTumorML, seg.EnhancingML, seg.NecroticML, seg.EdemaML())
	}

	if gen != nil {
		idhMut := gen.Markers[MarkerIDHMutation]
		var idhStatus string
		if idhMut > 0.5 {
			idhStatus = fmt.Sprintf("IDH-mutant (probability %.0f%%)", idhMut*100)
		} else {
			idhStatus = fmt.Sprintf("IDH-wildtype (probability %.0f%%)", gen.Markers[MarkerIDHWildtype]*100)
		}

		mgmt := gen.Markers[MarkerMGMTMethylation]
		mgmtStatus := "unlikely"
		if mgmt > 0.5 {
			mgmtStatus = "likely"
		}

		if out != "" {
			out += " "
		}
		out += fmt.Sprintf(
			"Predicted genotype: %s. MGMT promoter methylation %s (probability %.0f%%). EGFR amplification probability: %.0f%%.",
			idhStatus, mgmtStatus, mgmt*100, gen.Markers[MarkerEGFRAmplification]*100)
	}

	return out
}

// ImportantFeatures derives the ranked feature tags from simple thresholds
// over the stage outputs.
func ImportantFeatures(seg *Segmentation, gen *GenotypePrediction) []string {
	var features []string

	if seg != nil {
		if seg.WholeTumorML > 0 && seg.EnhancingML > seg.WholeTumorML*enhancingFeatureFraction {
			features = append(features, "large enhancing tumor component")
		}
		if seg.WholeTumorML > 0 && seg.NecroticML > seg.WholeTumorML*necroticFeatureFraction {
			features = append(features, "significant necrotic core")
		}
		features = append(features, "tumor location in detected region")
	}

	if gen != nil {
		features = append(features,
			"signal intensity patterns",
			"T2/FLAIR signal characteristics",
			"tumor heterogeneity index")
	}

	return features
}
