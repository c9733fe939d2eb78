// Package dicomtest writes small synthetic DICOM series to disk for tests.
// Files carry just enough metadata for the ingest layer plus a tiny pixel
// frame so the full parse path is exercised.
package dicomtest

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// mrImageStorage is the SOP class for MR Image Storage.
const mrImageStorage = "1.2.840.10008.5.1.4.1.1.4"

// SeriesSpec describes one series to write. Zero values get sensible
// defaults: Modality "MR", 16x16 pixels, 5 slices.
type SeriesSpec struct {
	StudyUID         string
	SeriesUID        string
	Modality         string
	Description      string
	PatientID        string
	StudyDate        string
	StudyDescription string
	Slices           int
	Rows             int
	Columns          int
}

func (s *SeriesSpec) applyDefaults() {
	if s.Modality == "" {
		s.Modality = "MR"
	}
	if s.Slices == 0 {
		s.Slices = 5
	}
	if s.Rows == 0 {
		s.Rows = 16
	}
	if s.Columns == 0 {
		s.Columns = 16
	}
	if s.StudyUID == "" {
		s.StudyUID = DeterministicUID(s.Description + "_study")
	}
	if s.SeriesUID == "" {
		s.SeriesUID = DeterministicUID(s.StudyUID + "_" + s.Description)
	}
}

// DeterministicUID derives a DICOM UID from a seed string. The same seed
// always yields the same UID.
func DeterministicUID(seed string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return fmt.Sprintf("1.2.826.0.1.3680043.8.498.%d", h.Sum64())
}

func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}

// WriteSeries writes spec.Slices DICOM files into dir and returns their
// paths. Instance numbers run from 1.
func WriteSeries(dir string, spec SeriesSpec) ([]string, error) {
	spec.applyDefaults()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create fixture directory: %w", err)
	}

	paths := make([]string, 0, spec.Slices)
	for n := 1; n <= spec.Slices; n++ {
		sopUID := DeterministicUID(fmt.Sprintf("%s_instance_%d", spec.SeriesUID, n))

		pixels := spec.Rows * spec.Columns
		nativeFrame := frame.NewNativeFrame[uint16](16, spec.Rows, spec.Columns, pixels, 1)
		for i := 0; i < pixels; i++ {
			nativeFrame.RawData[i] = uint16((i + n) % 4096)
		}

		elements := []*dicom.Element{
			mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
			mustNewElement(tag.StudyInstanceUID, []string{spec.StudyUID}),
			mustNewElement(tag.SeriesInstanceUID, []string{spec.SeriesUID}),
			mustNewElement(tag.SOPInstanceUID, []string{sopUID}),
			mustNewElement(tag.SOPClassUID, []string{mrImageStorage}),
			mustNewElement(tag.Modality, []string{spec.Modality}),
			mustNewElement(tag.SeriesDescription, []string{spec.Description}),
			mustNewElement(tag.InstanceNumber, []string{fmt.Sprintf("%d", n)}),
			mustNewElement(tag.Rows, []int{spec.Rows}),
			mustNewElement(tag.Columns, []int{spec.Columns}),
			mustNewElement(tag.BitsAllocated, []int{16}),
			mustNewElement(tag.BitsStored, []int{12}),
			mustNewElement(tag.HighBit, []int{11}),
			mustNewElement(tag.PixelRepresentation, []int{0}),
			mustNewElement(tag.SamplesPerPixel, []int{1}),
			mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
			mustNewElement(tag.PixelData, dicom.PixelDataInfo{
				Frames: []*frame.Frame{
					{
						Encapsulated: false,
						NativeData:   nativeFrame,
					},
				},
			}),
		}
		if spec.PatientID != "" {
			elements = append(elements, mustNewElement(tag.PatientID, []string{spec.PatientID}))
		}
		if spec.StudyDate != "" {
			elements = append(elements, mustNewElement(tag.StudyDate, []string{spec.StudyDate}))
		}
		if spec.StudyDescription != "" {
			elements = append(elements, mustNewElement(tag.StudyDescription, []string{spec.StudyDescription}))
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%03d.dcm", sanitize(spec.Description), n))
		if err := writeDatasetToFile(path, dicom.Dataset{Elements: elements}); err != nil {
			return nil, fmt.Errorf("write fixture %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteStudy writes every series of one study into dir and returns all
// generated paths in series order.
func WriteStudy(dir string, specs []SeriesSpec) ([]string, error) {
	var all []string
	for _, spec := range specs {
		paths, err := WriteSeries(dir, spec)
		if err != nil {
			return nil, err
		}
		all = append(all, paths...)
	}
	return all, nil
}

// BrainStudy returns the four conventional glioma protocol series for one
// study UID, suitable for a passing validation fixture.
func BrainStudy(studyUID string, slicesPerSeries int) []SeriesSpec {
	descs := []string{"T1_weighted_axial", "T1c_post_contrast", "T2_weighted_axial", "T2_FLAIR"}
	specs := make([]SeriesSpec, 0, len(descs))
	for i, desc := range descs {
		specs = append(specs, SeriesSpec{
			StudyUID:         studyUID,
			SeriesUID:        fmt.Sprintf("%s.%d", studyUID, i+1),
			Modality:         "MR",
			Description:      desc,
			PatientID:        "PID000042",
			StudyDate:        "20240115",
			StudyDescription: "Brain MRI",
			Slices:           slicesPerSeries,
		})
	}
	return specs
}

func sanitize(s string) string {
	if s == "" {
		return "series"
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func writeDatasetToFile(filename string, ds dicom.Dataset, opts ...dicom.WriteOption) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return dicom.Write(f, ds, opts...)
}
