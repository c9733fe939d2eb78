package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/cortexa/neurogate/internal/ingest"
	"github.com/cortexa/neurogate/internal/pipeline"
	"github.com/cortexa/neurogate/internal/registry"
	"github.com/cortexa/neurogate/internal/study"
	"github.com/cortexa/neurogate/internal/validate"
)

// version is set at build time via -ldflags
var version = "dev"

// Exit codes: 0 analysis (or validation) succeeded, 1 operational error,
// 2 the validation gate rejected the study.
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	inputDir := flag.String("input", "", "Directory of DICOM files for one study (required)")
	outputDir := flag.String("output", "", "Output directory for the report and visualizations (default: 'analysis_output')")
	bypass := flag.Bool("bypass", false, "Run the analysis even when validation fails (recorded in the report)")
	configFile := flag.String("config", "", "Load run configuration from YAML file")
	saveConfigFile := flag.String("save-config", "", "Save effective configuration to YAML file")
	validateOnly := flag.Bool("validate-only", false, "Validate the study and exit without analysis")
	listSequences := flag.Bool("list-sequences", false, "Print the required MRI sequences and exit")
	showVersion := flag.Bool("version", false, "Show version")
	help := flag.Bool("help", false, "Show help message")

	flag.Parse()

	if *showVersion {
		fmt.Printf("neurogate %s\n", version)
		return exitOK
	}

	if *help {
		printHelp()
		return exitOK
	}

	if *listSequences {
		fmt.Println("Required MRI sequences:")
		for _, seq := range validate.RequiredSequences {
			fmt.Printf("  %-6s %s\n", seq, validate.Rationale(seq))
		}
		fmt.Printf("\nModality: %s only. Minimum %d slices per sequence (%d+ recommended).\n",
			validate.AllowedModality, validate.MinSlices, validate.RecommendedSlices)
		return exitOK
	}

	cfg := defaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = loadConfig(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
	}
	if *bypass {
		cfg.Bypass = true
	}
	if *outputDir != "" {
		cfg.Output = *outputDir
	}

	if *inputDir == "" {
		fmt.Fprintf(os.Stderr, "Error: --input is required\n")
		printUsage()
		return exitError
	}

	if *saveConfigFile != "" {
		if err := saveConfig(cfg, *saveConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save config: %v\n", err)
		} else {
			fmt.Printf("Configuration saved to %s\n", *saveConfigFile)
		}
	}

	fmt.Println("neurogate")
	fmt.Println("=========")
	fmt.Println()

	records, stats, err := ingest.ReadDir(*inputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		return exitError
	}
	fmt.Printf("Ingested %d of %d files (%s), %d skipped\n",
		stats.FilesParsed, stats.FilesSeen, humanize.Bytes(uint64(stats.Bytes)), stats.FilesSkipped)

	s, err := study.Assemble(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error assembling study: %v\n", err)
		return exitError
	}
	fmt.Printf("Study %s: %d series, %d instances\n", s.StudyUID, len(s.Series), s.RecordCount())
	for _, ser := range s.Series {
		fmt.Printf("  %-6s %s (%d slices)\n", ser.SequenceType, ser.Description, len(ser.Records))
	}
	fmt.Println()

	reg := registry.New()
	reg.Put(s)

	verdict := validate.Validate(s)
	if err := reg.AttachVerdict(s.ID, verdict); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	fmt.Println(verdict.Summary())
	fmt.Println()

	if *validateOnly {
		if verdict.Pass {
			return exitOK
		}
		return exitRejected
	}

	guard, err := reg.BeginAnalysis(s.ID, cfg.Bypass)
	if err != nil {
		var gateErr *validate.GateError
		if errors.As(err, &gateErr) {
			fmt.Fprintln(os.Stderr, "Analysis rejected: study did not pass validation (use --bypass to override)")
			return exitRejected
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	if guard.Bypassed {
		fmt.Println("WARNING: validation bypassed, results carry a bypass marker")
		fmt.Println()
	}

	model := pipeline.NewMockModel()
	orch := pipeline.NewOrchestrator(model, model, model)
	result, err := orch.AnalyzeWithOptions(context.Background(), s, verdict, cfg.Bypass, cfg.Pipeline)
	if err != nil {
		guard.Fail()
		fmt.Fprintf(os.Stderr, "Error running analysis: %v\n", err)
		return exitError
	}
	guard.Complete(result)

	if err := writeOutputs(cfg.Output, s, verdict, result); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing outputs: %v\n", err)
		return exitError
	}

	printFindings(result)
	fmt.Printf("\n✓ Analysis complete in %.2fs\n", result.ProcessingSeconds)
	fmt.Printf("  Report directory: %s\n", cfg.Output)
	return exitOK
}

// report is the on-disk JSON document for one analysis run.
type report struct {
	StudyUID string           `json:"study_uid"`
	StudyID  string           `json:"study_id"`
	Verdict  validate.Verdict `json:"validation"`
	Result   *pipeline.Result `json:"result"`
}

// writeOutputs writes report.json plus every PNG visualization the pipeline
// produced. Image bytes are stripped from the JSON and referenced by file.
func writeOutputs(dir string, s *study.Study, verdict validate.Verdict, result *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	writePNG := func(name string, data []byte) error {
		if len(data) == 0 {
			return nil
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	}

	if seg := result.Segmentation; seg != nil {
		if err := writePNG("segmentation_overlay.png", seg.Overlay); err != nil {
			return err
		}
		if err := writePNG("tumor_region_grid.png", seg.RegionGrid); err != nil {
			return err
		}
		if err := writePNG("composition_chart.png", seg.Composition); err != nil {
			return err
		}
	}
	if expl := result.Explainability; expl != nil {
		for seq, data := range expl.AttentionMaps {
			if err := writePNG(fmt.Sprintf("attention_%s.png", seq), data); err != nil {
				return err
			}
		}
	}

	// Copy the result without the embedded image payloads.
	slim := *result
	if seg := slim.Segmentation; seg != nil {
		segCopy := *seg
		segCopy.Overlay, segCopy.RegionGrid, segCopy.Composition = nil, nil, nil
		slim.Segmentation = &segCopy
	}
	if expl := slim.Explainability; expl != nil {
		explCopy := *expl
		explCopy.AttentionMaps = nil
		slim.Explainability = &explCopy
	}

	data, err := json.MarshalIndent(report{
		StudyUID: s.StudyUID,
		StudyID:  s.ID,
		Verdict:  verdict,
		Result:   &slim,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(dir, "report.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printFindings(result *pipeline.Result) {
	if seg := result.Segmentation; seg != nil {
		fmt.Println("Segmentation:")
		fmt.Printf("  Whole tumor: %.1f mL (enhancing %.1f, necrotic %.1f, edema %.1f)\n",
			seg.WholeTumorML, seg.EnhancingML, seg.NecroticML, seg.EdemaML())
		fmt.Printf("  Confidence: %.2f\n", seg.Confidence)
	}
	if gen := result.Genotype; gen != nil {
		fmt.Println("Genotype prediction:")
		for _, name := range pipeline.MarkerNames {
			fmt.Printf("  %-20s %.2f\n", name, gen.Markers[name])
		}
	}
	if flags := result.ClinicalFlags; flags != nil {
		switch {
		case flags.RequiresUrgentReview:
			fmt.Printf("Clinical flags: URGENT REVIEW (%s)\n", flags.UrgencyReason)
		case flags.HighRisk:
			fmt.Println("Clinical flags: high risk")
		default:
			fmt.Println("Clinical flags: no high-risk findings")
		}
		for _, rf := range flags.RiskFactors {
			fmt.Printf("  - %s\n", rf)
		}
	}
	if len(result.StageErrors) > 0 {
		fmt.Println("Stage errors (partial result):")
		for stage, msg := range result.StageErrors {
			fmt.Printf("  %s: %s\n", stage, msg)
		}
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "\nUsage:")
	fmt.Fprintln(os.Stderr, "  neurogate --input <DIR> [options]")
	fmt.Fprintln(os.Stderr, "\nOptions:")
	flag.PrintDefaults()
}

func printHelp() {
	fmt.Println("neurogate")
	fmt.Println("=========")
	fmt.Println()
	fmt.Println("Validation-gated analysis of brain MRI studies.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  neurogate --input <DIR> [options]")
	fmt.Println()
	fmt.Println("Required arguments:")
	fmt.Println("  --input <DIR>         Directory of DICOM files for one study")
	fmt.Println()
	fmt.Println("Optional arguments:")
	fmt.Println("  --output <DIR>        Output directory (default: 'analysis_output')")
	fmt.Println("  --bypass              Run analysis even when validation fails")
	fmt.Println("                        The bypass is recorded in the report")
	fmt.Println("  --config <FILE>       Load run configuration from YAML file")
	fmt.Println("  --save-config <FILE>  Save effective configuration to YAML file")
	fmt.Println("  --validate-only       Validate the study and exit")
	fmt.Println("  --list-sequences      Print the required MRI sequences and exit")
	fmt.Println("  --version             Show version")
	fmt.Println("  --help                Show this help message")
	fmt.Println()
	fmt.Println("Exit codes:")
	fmt.Println("  0  analysis (or validation) succeeded")
	fmt.Println("  1  operational error")
	fmt.Println("  2  the validation gate rejected the study")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Validate a study without running analysis")
	fmt.Println("  neurogate --input ./study_dir --validate-only")
	fmt.Println()
	fmt.Println("  # Full analysis with report and visualizations")
	fmt.Println("  neurogate --input ./study_dir --output ./results")
	fmt.Println()
	fmt.Println("  # Research use on an incomplete study")
	fmt.Println("  neurogate --input ./study_dir --bypass")
	fmt.Println()
	fmt.Println("Output:")
	fmt.Println("  report.json               validation verdict and analysis result")
	fmt.Println("  segmentation_overlay.png  tumor regions over the central slice")
	fmt.Println("  tumor_region_grid.png     2x2 panel of anatomy, mask, overlay, attention")
	fmt.Println("  composition_chart.png     per-region volume bar chart")
	fmt.Println("  attention_<SEQ>.png       per-sequence attention heatmap")
}
