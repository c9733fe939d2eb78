package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/cortexa/neurogate/internal/study"
	"github.com/cortexa/neurogate/internal/validate"
)

// Orchestrator executes the four sub-pipelines for one study and assembles a
// single Result. It is stateless and safe for concurrent use across studies.
type Orchestrator struct {
	segmenter Segmenter
	genotyper GenotypePredictor
	explainer Explainer
}

// NewOrchestrator wires the three model capabilities into an orchestrator.
func NewOrchestrator(seg Segmenter, gen GenotypePredictor, expl Explainer) *Orchestrator {
	return &Orchestrator{segmenter: seg, genotyper: gen, explainer: expl}
}

// Analyze runs all stages with default options.
func (o *Orchestrator) Analyze(ctx context.Context, s *study.Study, verdict validate.Verdict, bypass bool) (*Result, error) {
	return o.AnalyzeWithOptions(ctx, s, verdict, bypass, DefaultOptions())
}

// AnalyzeWithOptions runs the gated pipeline. The validation gate is checked
// here, at the moment of invocation, regardless of what the caller already
// checked: no sub-pipeline runs on a failing verdict without an explicit
// bypass. Stage failures are recorded per stage in the Result instead of
// aborting the run; the contract is best-effort complete, always report what
// succeeded.
func (o *Orchestrator) AnalyzeWithOptions(ctx context.Context, s *study.Study, verdict validate.Verdict, bypass bool, opts Options) (*Result, error) {
	if !verdict.Pass && !bypass {
		return nil, &validate.GateError{StudyID: s.ID, Verdict: verdict}
	}

	start := time.Now()
	res := &Result{
		StudyID:            s.ID,
		Timestamp:          start.UTC(),
		ValidationBypassed: bypass && !verdict.Pass,
		StageErrors:        map[string]string{},
	}

	// Stages 1 and 2 are mutually independent and run concurrently. Each
	// failure lands in its own stage slot; neither blocks the other.
	var (
		wg           sync.WaitGroup
		seg          *Segmentation
		gen          *GenotypePrediction
		segErr, genErr error
	)
	if opts.RunSegmentation {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seg, segErr = o.segmenter.Segment(ctx, s)
		}()
	}
	if opts.RunGenotype {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gen, genErr = o.genotyper.PredictGenotype(ctx, s)
		}()
	}
	wg.Wait()

	if segErr != nil {
		res.StageErrors[StageSegmentation] = segErr.Error()
	} else if seg != nil {
		clampVolumes(seg)
		res.Segmentation = seg
	}
	if genErr != nil {
		res.StageErrors[StageGenotype] = genErr.Error()
	} else {
		res.Genotype = gen
	}

	// Stage 3 consumes stages 1-2 read-only.
	if opts.RunExplainability {
		expl, err := o.explainer.Explain(ctx, s, res.Segmentation, res.Genotype)
		if err != nil {
			res.StageErrors[StageExplainability] = err.Error()
		} else {
			res.Explainability = expl
		}
	}

	// Stage 4 is a pure function and always runs.
	flags := FlagRisk(res.Segmentation, res.Genotype)
	res.ClinicalFlags = &flags

	if len(res.StageErrors) == 0 {
		res.StageErrors = nil
	}
	res.ProcessingSeconds = time.Since(start).Seconds()
	return res, nil
}

// clampVolumes enforces the segmentation inequality
// whole >= enhancing + necrotic, which downstream stages rely on when they
// derive edema by subtraction.
func clampVolumes(seg *Segmentation) {
	if seg.EnhancingML < 0 {
		seg.EnhancingML = 0
	}
	if seg.NecroticML < 0 {
		seg.NecroticML = 0
	}
	if min := seg.EnhancingML + seg.NecroticML; seg.WholeTumorML < min {
		seg.WholeTumorML = min
	}
}
