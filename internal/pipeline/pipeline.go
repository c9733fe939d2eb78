// Package pipeline runs the gated multi-stage analysis over a validated
// study: segmentation, genotype prediction, explainability and clinical
// flagging. The numerical models sit behind capability interfaces so a test
// double and a real model are interchangeable.
package pipeline

import (
	"context"

	"github.com/cortexa/neurogate/internal/study"
)

// Segmenter produces per-region tumor volumes from the enhancement-bearing,
// structural and fluid-sensitive series of a study.
type Segmenter interface {
	Segment(ctx context.Context, s *study.Study) (*Segmentation, error)
}

// GenotypePredictor produces molecular marker probabilities for a study.
type GenotypePredictor interface {
	PredictGenotype(ctx context.Context, s *study.Study) (*GenotypePrediction, error)
}

// Explainer constructs the human-readable account of an analysis. It reads
// the earlier stages' outputs, either of which may be nil when its stage
// failed.
type Explainer interface {
	Explain(ctx context.Context, s *study.Study, seg *Segmentation, gen *GenotypePrediction) (*Explainability, error)
}

// Options selects which sub-pipelines run. Clinical flagging always runs
// over whatever the enabled stages produced.
type Options struct {
	RunSegmentation   bool `yaml:"run_segmentation" json:"run_segmentation"`
	RunGenotype       bool `yaml:"run_genotype_prediction" json:"run_genotype_prediction"`
	RunExplainability bool `yaml:"generate_explanations" json:"generate_explanations"`
}

// DefaultOptions enables every stage.
func DefaultOptions() Options {
	return Options{RunSegmentation: true, RunGenotype: true, RunExplainability: true}
}
