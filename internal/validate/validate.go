// Package validate is the medical gatekeeper: it decides whether an
// assembled study is complete enough for analysis. No inference may run on a
// study whose verdict fails, except through an explicit bypass.
package validate

import (
	"fmt"

	"github.com/cortexa/neurogate/internal/study"
)

// AllowedModality is the single modality code this system accepts.
const AllowedModality = "MR"

// Slice-count thresholds per required sequence. Below MinSlices the study is
// rejected; between MinSlices and RecommendedSlices a non-blocking warning
// is raised.
const (
	MinSlices         = 5
	RecommendedSlices = 10
)

// RequiredSequences lists the sequence types a study must contain, in the
// order they are checked and reported.
var RequiredSequences = []study.SequenceType{
	study.SequenceT1,
	study.SequenceT1c,
	study.SequenceT2,
	study.SequenceFLAIR,
}

// sequenceRationale explains why each required sequence is needed. The text
// is part of the rejection message shown to the uploader.
var sequenceRationale = map[study.SequenceType]string{
	study.SequenceT1:    "baseline anatomy for tumor localization",
	study.SequenceT1c:   "contrast enhancement delineates the active tumor margin",
	study.SequenceT2:    "tissue characterization and edema extent",
	study.SequenceFLAIR: "fluid suppression separates edema from CSF",
}

// Rationale explains why a required sequence is part of the protocol.
func Rationale(seq study.SequenceType) string {
	return sequenceRationale[seq]
}

// Verdict is the structured outcome of validation. Pass is true exactly when
// Errors is empty; Warnings never affect Pass.
type Verdict struct {
	Pass     bool                        `json:"pass"`
	Errors   []string                    `json:"errors"`
	Warnings []string                    `json:"warnings"`
	Required map[study.SequenceType]bool `json:"required_sequences"`
}

// Validate evaluates a study against the fixed rule set. It is a pure
// function: no side effects, safe for any number of concurrent callers, and
// repeated calls on the same study yield identical verdicts.
func Validate(s *study.Study) Verdict {
	v := Verdict{
		Required: make(map[study.SequenceType]bool, len(RequiredSequences)),
	}

	// Rule 1: every series must carry the allowed modality.
	if len(s.Series) == 0 {
		v.Errors = append(v.Errors, "study contains no series")
	}
	for _, ser := range s.Series {
		if ser.Modality != AllowedModality {
			v.Errors = append(v.Errors, fmt.Sprintf(
				"series %q has modality %q, expected %q: this system only accepts MRI studies",
				ser.Description, ser.Modality, AllowedModality))
		}
	}

	// Rule 2: all required sequence types must be present. The presence map
	// is filled for every required type regardless of outcome.
	for _, seq := range RequiredSequences {
		present := s.RecordCountByType(seq) > 0
		v.Required[seq] = present
		if !present {
			v.Errors = append(v.Errors, fmt.Sprintf(
				"missing required sequence %s: %s", seq, sequenceRationale[seq]))
		}
	}

	// Rule 3: each present required sequence needs enough slices.
	for _, seq := range RequiredSequences {
		count := s.RecordCountByType(seq)
		if count == 0 {
			continue
		}
		switch {
		case count < MinSlices:
			v.Errors = append(v.Errors, fmt.Sprintf(
				"sequence %s has only %d slices, minimum %d required for reliable analysis",
				seq, count, MinSlices))
		case count < RecommendedSlices:
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"sequence %s has only %d slices, %d+ recommended for optimal quality",
				seq, count, RecommendedSlices))
		}
	}

	v.Pass = len(v.Errors) == 0
	return v
}

// Summary renders a human-readable validation report.
func (v Verdict) Summary() string {
	var out string
	if v.Pass {
		out = "validation PASSED: all required sequences present, study is ready for analysis"
	} else {
		out = fmt.Sprintf("validation FAILED with %d error(s):", len(v.Errors))
		for i, e := range v.Errors {
			out += fmt.Sprintf("\n  %d. %s", i+1, e)
		}
	}
	if len(v.Warnings) > 0 {
		out += fmt.Sprintf("\n%d warning(s):", len(v.Warnings))
		for i, w := range v.Warnings {
			out += fmt.Sprintf("\n  %d. %s", i+1, w)
		}
	}
	return out
}
