package tests

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cortexa/neurogate/internal/dicomtest"
	"github.com/cortexa/neurogate/internal/ingest"
	"github.com/cortexa/neurogate/internal/pipeline"
	"github.com/cortexa/neurogate/internal/registry"
	"github.com/cortexa/neurogate/internal/study"
	"github.com/cortexa/neurogate/internal/validate"
)

// ingestStudy runs the disk-to-study half of the flow on a fixture study.
func ingestStudy(t *testing.T, specs []dicomtest.SeriesSpec) *study.Study {
	t.Helper()
	dir := t.TempDir()
	if _, err := dicomtest.WriteStudy(dir, specs); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	records, _, err := ingest.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	s, err := study.Assemble(records)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return s
}

// TestIntegration_FullFlow drives ingest, assembly, validation, registry and
// the analysis pipeline end to end in-process.
func TestIntegration_FullFlow(t *testing.T) {
	s := ingestStudy(t, dicomtest.BrainStudy("1.2.840.8800", 15))

	verdict := validate.Validate(s)
	if !verdict.Pass {
		t.Fatalf("complete study failed validation: %v", verdict.Errors)
	}
	if len(verdict.Warnings) != 0 {
		t.Fatalf("15-slice series should not warn: %v", verdict.Warnings)
	}

	reg := registry.New()
	reg.Put(s)
	if err := reg.AttachVerdict(s.ID, verdict); err != nil {
		t.Fatalf("AttachVerdict: %v", err)
	}

	guard, err := reg.BeginAnalysis(s.ID, false)
	if err != nil {
		t.Fatalf("BeginAnalysis: %v", err)
	}

	model := pipeline.NewMockModel()
	orch := pipeline.NewOrchestrator(model, model, model)
	result, err := orch.Analyze(context.Background(), s, verdict, false)
	if err != nil {
		guard.Fail()
		t.Fatalf("Analyze: %v", err)
	}
	guard.Complete(result)

	if result.Segmentation == nil || result.Genotype == nil ||
		result.Explainability == nil || result.ClinicalFlags == nil {
		t.Fatal("all four sub-records should be populated")
	}
	if result.ValidationBypassed {
		t.Fatal("gated run must not be marked bypassed")
	}
	seg := result.Segmentation
	if seg.WholeTumorML < seg.EnhancingML+seg.NecroticML {
		t.Fatalf("volume inequality violated: whole %.2f < enhancing %.2f + necrotic %.2f",
			seg.WholeTumorML, seg.EnhancingML, seg.NecroticML)
	}
	if len(result.Explainability.AttentionMaps) != 4 {
		t.Fatalf("got %d attention maps, want one per required sequence", len(result.Explainability.AttentionMaps))
	}

	snap, err := reg.Get(s.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.State != registry.StateAnalyzed {
		t.Fatalf("final state = %s, want analyzed", snap.State)
	}
	if snap.Result != result {
		t.Fatal("registry should hold the completed result")
	}
}

// TestIntegration_GateRejectsIncomplete checks that an incomplete upload is
// stopped at both gates: the registry and the orchestrator.
func TestIntegration_GateRejectsIncomplete(t *testing.T) {
	specs := dicomtest.BrainStudy("1.2.840.8801", 15)[:2] // T1 and T1c only
	s := ingestStudy(t, specs)

	verdict := validate.Validate(s)
	if verdict.Pass {
		t.Fatal("incomplete study should fail validation")
	}

	reg := registry.New()
	reg.Put(s)
	if err := reg.AttachVerdict(s.ID, verdict); err != nil {
		t.Fatalf("AttachVerdict: %v", err)
	}

	var gateErr *validate.GateError
	if _, err := reg.BeginAnalysis(s.ID, false); !errors.As(err, &gateErr) {
		t.Fatalf("registry gate error = %v, want GateError", err)
	}

	model := pipeline.NewMockModel()
	orch := pipeline.NewOrchestrator(model, model, model)
	if _, err := orch.Analyze(context.Background(), s, verdict, false); !errors.As(err, &gateErr) {
		t.Fatalf("orchestrator gate error = %v, want GateError", err)
	}
}

// TestIntegration_BypassFlow runs a failing study through the bypass path.
func TestIntegration_BypassFlow(t *testing.T) {
	specs := dicomtest.BrainStudy("1.2.840.8802", 15)[:3] // missing FLAIR
	s := ingestStudy(t, specs)

	verdict := validate.Validate(s)
	if verdict.Pass {
		t.Fatal("study missing FLAIR should fail validation")
	}

	reg := registry.New()
	reg.Put(s)
	if err := reg.AttachVerdict(s.ID, verdict); err != nil {
		t.Fatalf("AttachVerdict: %v", err)
	}
	guard, err := reg.BeginAnalysis(s.ID, true)
	if err != nil {
		t.Fatalf("BeginAnalysis with bypass: %v", err)
	}
	if !guard.Bypassed {
		t.Fatal("guard should record the bypass")
	}

	model := pipeline.NewMockModel()
	orch := pipeline.NewOrchestrator(model, model, model)
	result, err := orch.Analyze(context.Background(), s, verdict, true)
	if err != nil {
		guard.Fail()
		t.Fatalf("Analyze with bypass: %v", err)
	}
	guard.Complete(result)

	if !result.ValidationBypassed {
		t.Fatal("result must carry the bypass marker")
	}
	// Attention maps only cover the sequences actually present.
	if got := len(result.Explainability.AttentionMaps); got != 3 {
		t.Fatalf("got %d attention maps, want 3 for the present sequences", got)
	}
}

// TestIntegration_ResultJSONRoundTrip checks that a result survives the
// report encoding, including the text-keyed attention map.
func TestIntegration_ResultJSONRoundTrip(t *testing.T) {
	s := ingestStudy(t, dicomtest.BrainStudy("1.2.840.8803", 15))
	verdict := validate.Validate(s)

	model := pipeline.NewMockModel()
	orch := pipeline.NewOrchestrator(model, model, model)
	result, err := orch.Analyze(context.Background(), s, verdict, false)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var decoded pipeline.Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if decoded.StudyID != result.StudyID {
		t.Fatalf("study ID lost: %q != %q", decoded.StudyID, result.StudyID)
	}
	if decoded.Segmentation.WholeTumorML != result.Segmentation.WholeTumorML {
		t.Fatal("segmentation volumes lost in round trip")
	}
	for seq := range result.Explainability.AttentionMaps {
		if _, ok := decoded.Explainability.AttentionMaps[seq]; !ok {
			t.Fatalf("attention map for %s lost in round trip", seq)
		}
	}
}

// TestIntegration_SameStudyTwice verifies a re-upload gets a fresh internal
// identity while keeping the DICOM study UID.
func TestIntegration_SameStudyTwice(t *testing.T) {
	specs := dicomtest.BrainStudy("1.2.840.8804", 15)
	first := ingestStudy(t, specs)
	second := ingestStudy(t, specs)

	if first.StudyUID != second.StudyUID {
		t.Fatalf("study UIDs differ: %q vs %q", first.StudyUID, second.StudyUID)
	}
	if first.ID == second.ID {
		t.Fatal("each upload should get its own identifier")
	}

	reg := registry.New()
	reg.Put(first)
	reg.Put(second)
	if got := len(reg.List()); got != 2 {
		t.Fatalf("registry holds %d entries, want 2", got)
	}
}
