// Package ingest reads DICOM files from disk and flattens them into raw
// per-instance records for study assembly. Files that do not parse as
// DICOM, or that lack the study and series identifiers, are counted and
// skipped rather than failing the whole upload.
package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/cortexa/neurogate/internal/study"
)

// Stats summarizes one ingest pass.
type Stats struct {
	FilesSeen    int
	FilesParsed  int
	FilesSkipped int
	Bytes        int64
}

// ReadDir walks dir recursively and parses every regular file as DICOM.
func ReadDir(dir string) ([]study.RawRecord, Stats, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, Stats{}, fmt.Errorf("walk %s: %w", dir, err)
	}
	return ReadFiles(paths)
}

// ReadFiles parses the given files as DICOM instances. Pixel data is not
// loaded; only the metadata the assembler needs is extracted.
func ReadFiles(paths []string) ([]study.RawRecord, Stats, error) {
	var (
		records []study.RawRecord
		stats   Stats
	)
	for _, path := range paths {
		stats.FilesSeen++

		ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
		if err != nil {
			stats.FilesSkipped++
			continue
		}

		rec := study.RawRecord{
			StudyUID:          stringValue(ds, tag.StudyInstanceUID),
			SeriesUID:         stringValue(ds, tag.SeriesInstanceUID),
			Modality:          stringValue(ds, tag.Modality),
			SeriesDescription: stringValue(ds, tag.SeriesDescription),
			InstanceNumber:    intValue(ds, tag.InstanceNumber),
			Rows:              intValue(ds, tag.Rows),
			Columns:           intValue(ds, tag.Columns),
			PatientID:         stringValue(ds, tag.PatientID),
			StudyDate:         stringValue(ds, tag.StudyDate),
			StudyDescription:  stringValue(ds, tag.StudyDescription),
			Path:              path,
		}
		if rec.StudyUID == "" || rec.SeriesUID == "" {
			stats.FilesSkipped++
			continue
		}

		if info, err := os.Stat(path); err == nil {
			stats.Bytes += info.Size()
		}

		stats.FilesParsed++
		records = append(records, rec)
	}
	return records, stats, nil
}

// stringValue returns the first string of an element, or "".
func stringValue(ds dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return ""
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
	case string:
		return strings.TrimSpace(v)
	}
	return ""
}

// intValue returns the first integer of an element, tolerating the IS
// string representation, or 0.
func intValue(ds dicom.Dataset, t tag.Tag) int {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return 0
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case int:
		return v
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(strings.TrimSpace(v[0])); err == nil {
				return n
			}
		}
	}
	return 0
}
