package study

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	// ErrIncompleteInput is returned when no records were provided.
	ErrIncompleteInput = errors.New("no records to assemble")

	// ErrInconsistentStudy is returned when the records span more than one
	// study identifier. A study is built from exactly one upload batch.
	ErrInconsistentStudy = errors.New("records belong to more than one study")

	// ErrMalformedRecord is returned when a record is missing a required
	// attribute.
	ErrMalformedRecord = errors.New("malformed record")
)

// Assemble groups a flat sequence of raw records into a hierarchical study.
// Series appear in first-seen order; within a series, records are ordered by
// instance number ascending with ties kept in ingestion order, so assembly
// is deterministic for any permutation of the input.
func Assemble(records []RawRecord) (*Study, error) {
	if len(records) == 0 {
		return nil, ErrIncompleteInput
	}

	studyUID := records[0].StudyUID
	for i, r := range records {
		if r.SeriesUID == "" {
			return nil, fmt.Errorf("record %d has no series identifier: %w", i, ErrMalformedRecord)
		}
		if r.StudyUID != studyUID {
			return nil, fmt.Errorf("record %d has study %q, batch has %q: %w", i, r.StudyUID, studyUID, ErrInconsistentStudy)
		}
	}

	st := &Study{
		ID:       uuid.NewString(),
		StudyUID: studyUID,
	}

	// Group by series UID, preserving first-seen order.
	index := make(map[string]int)
	for _, r := range records {
		if st.PatientID == "" {
			st.PatientID = r.PatientID
		}
		if st.StudyDate == "" {
			st.StudyDate = r.StudyDate
		}
		if st.Description == "" {
			st.Description = r.StudyDescription
		}

		i, ok := index[r.SeriesUID]
		if !ok {
			i = len(st.Series)
			index[r.SeriesUID] = i
			st.Series = append(st.Series, Series{
				UID:          r.SeriesUID,
				Modality:     r.Modality,
				Description:  r.SeriesDescription,
				SequenceType: ClassifySequence(r.SeriesDescription),
			})
		}
		st.Series[i].Records = append(st.Series[i].Records, Record{
			SeriesUID:      r.SeriesUID,
			InstanceNumber: r.InstanceNumber,
			Rows:           r.Rows,
			Columns:        r.Columns,
			Path:           r.Path,
		})
	}

	for i := range st.Series {
		recs := st.Series[i].Records
		sort.SliceStable(recs, func(a, b int) bool {
			return recs[a].InstanceNumber < recs[b].InstanceNumber
		})
	}

	return st, nil
}
