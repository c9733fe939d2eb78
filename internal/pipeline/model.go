package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	randv2 "math/rand/v2"

	"github.com/cortexa/neurogate/internal/study"
)

// MockModel is a deterministic stand-in for the real segmentation and
// genotype networks. All randomness is seeded from the study UID, so the
// same study always produces the same volumes, probabilities and images.
// It implements Segmenter, GenotypePredictor and Explainer.
type MockModel struct {
	// Size of the synthetic image grid, in pixels per side.
	Size int
	// VoxelVolumeML converts region pixel counts to milliliters.
	VoxelVolumeML float64
}

// NewMockModel returns a mock model with the default grid.
func NewMockModel() *MockModel {
	return &MockModel{Size: 128, VoxelVolumeML: 0.016}
}

// seedFor derives a deterministic RNG seed from the study UID.
func seedFor(s *study.Study, salt string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s.StudyUID))
	_, _ = h.Write([]byte(salt))
	return h.Sum64()
}

// synthBrain generates a phantom brain image: an elliptical head with
// brighter white matter, dark ventricles and pixel noise.
func (m *MockModel) synthBrain(rng *randv2.Rand) []uint8 {
	size := m.Size
	img := make([]uint8, size*size)
	cx, cy := float64(size)/2, float64(size)/2

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy

			inside := func(rx, ry float64) bool {
				return dx*dx/(rx*rx)+dy*dy/(ry*ry) < 1
			}

			v := 0.0
			switch {
			case inside(float64(size)*0.06, float64(size)*0.15):
				v = 40 // ventricles
			case inside(float64(size)*0.28, float64(size)*0.32):
				v = 180 // white matter
			case inside(float64(size)*0.38, float64(size)*0.42):
				v = 120 // cortex
			}
			if v > 0 {
				v += (rng.Float64() - 0.5) * 16
			}
			img[y*size+x] = uint8(math.Max(0, math.Min(255, v)))
		}
	}
	return img
}

// synthSegmentation places an irregular three-region tumor inside the brain
// mask: a necrotic center, an enhancing ring and surrounding edema.
func (m *MockModel) synthSegmentation(brain []uint8, rng *randv2.Rand) []uint8 {
	size := m.Size
	seg := make([]uint8, size*size)

	// Tumor center sits off-center inside the brain.
	cx := float64(size)/2 + float64(rng.IntN(size/3)-size/6)
	cy := float64(size)/2 + float64(rng.IntN(size/4)-size/8)

	coreR := float64(rng.IntN(size/8-size/12) + size/12)
	enhanceR := coreR + float64(rng.IntN(6)+4)
	edemaR := enhanceR + float64(rng.IntN(10)+8)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			idx := y*size + x
			if brain[idx] <= 20 {
				continue // outside the brain
			}
			dx := float64(x) - cx
			dy := float64(y) - cy
			// Slightly elliptical distance plus jitter for irregular margins.
			dist := math.Sqrt(dx*dx*1.1 + dy*dy/1.2)
			dist += (rng.Float64() - 0.5) * 3

			switch {
			case dist < coreR/2:
				seg[idx] = regionNecrotic
			case dist < enhanceR:
				seg[idx] = regionEnhancing
			case dist < edemaR:
				seg[idx] = regionEdema
			}
		}
	}
	return seg
}

// synthAttention produces a normalized pseudo-attention map concentrated
// around the brighter brain tissue.
func (m *MockModel) synthAttention(brain []uint8, rng *randv2.Rand) []float64 {
	size := m.Size
	heat := make([]float64, size*size)
	maxVal := 0.0
	for i, v := range brain {
		h := float64(v)/255 + rng.Float64()*0.3
		if v <= 20 {
			h = 0
		}
		heat[i] = h
		if h > maxVal {
			maxVal = h
		}
	}
	if maxVal > 0 {
		for i := range heat {
			heat[i] /= maxVal
		}
	}
	return heat
}

// Segment produces the per-region volumes and visualizations for a study.
func (m *MockModel) Segment(ctx context.Context, s *study.Study) (*Segmentation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := randv2.New(randv2.NewPCG(seedFor(s, "segmentation"), 1))
	brain := m.synthBrain(rng)
	seg := m.synthSegmentation(brain, rng)
	heat := m.synthAttention(brain, rng)

	var necrotic, edema, enhancing int
	for _, label := range seg {
		switch label {
		case regionNecrotic:
			necrotic++
		case regionEdema:
			edema++
		case regionEnhancing:
			enhancing++
		}
	}

	overlay, err := encodePNG(renderOverlay(brain, seg, m.Size))
	if err != nil {
		return nil, err
	}
	grid, err := encodePNG(renderRegionGrid(brain, seg, heat, m.Size))
	if err != nil {
		return nil, err
	}
	composition, err := encodePNG(renderComposition(seg))
	if err != nil {
		return nil, err
	}

	return &Segmentation{
		WholeTumorML: float64(necrotic+edema+enhancing) * m.VoxelVolumeML,
		EnhancingML:  float64(enhancing) * m.VoxelVolumeML,
		NecroticML:   float64(necrotic) * m.VoxelVolumeML,
		Confidence:   0.82 + rng.Float64()*0.13,
		Overlay:      overlay,
		RegionGrid:   grid,
		Composition:  composition,
	}, nil
}

// PredictGenotype produces the marker probabilities for a study. The IDH
// pair is complementary; the remaining markers are independent.
func (m *MockModel) PredictGenotype(ctx context.Context, s *study.Study) (*GenotypePrediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := randv2.New(randv2.NewPCG(seedFor(s, "genotype"), 1))
	idhMut := 0.3 + rng.Float64()*0.4

	return &GenotypePrediction{
		Markers: map[string]float64{
			MarkerIDHMutation:       idhMut,
			MarkerIDHWildtype:       1.0 - idhMut,
			MarkerMGMTMethylation:   0.4 + rng.Float64()*0.4,
			MarkerEGFRAmplification: 0.2 + rng.Float64()*0.4,
		},
		Confidence: 0.70 + rng.Float64()*0.20,
	}, nil
}

// Explain assembles the explanation text, feature tags and one attention map
// per classified sequence.
func (m *MockModel) Explain(ctx context.Context, s *study.Study, seg *Segmentation, gen *GenotypePrediction) (*Explainability, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maps := make(map[study.SequenceType][]byte)
	for _, ser := range s.Series {
		if ser.SequenceType == study.SequenceUnknown {
			continue
		}
		if _, done := maps[ser.SequenceType]; done {
			continue
		}
		rng := randv2.New(randv2.NewPCG(seedFor(s, "attention_"+ser.SequenceType.String()), 1))
		brain := m.synthBrain(rng)
		heat := m.synthAttention(brain, rng)
		img, err := encodePNG(renderAttention(brain, heat, m.Size))
		if err != nil {
			return nil, fmt.Errorf("render attention map for %s: %w", ser.SequenceType, err)
		}
		maps[ser.SequenceType] = img
	}

	return &Explainability{
		Text:              BuildExplanation(seg, gen),
		ImportantFeatures: ImportantFeatures(seg, gen),
		AttentionMaps:     maps,
	}, nil
}
