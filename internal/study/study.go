package study

// RawRecord is the per-file attribute tuple produced by the record ingestor.
// No semantic judgment has been applied to it yet.
type RawRecord struct {
	StudyUID         string
	SeriesUID        string
	Modality         string
	SeriesDescription string
	InstanceNumber   int
	Rows             int
	Columns          int
	Path             string

	// Study-level attributes carried on every record; the assembler takes
	// the first non-empty value it sees.
	PatientID        string
	StudyDate        string
	StudyDescription string
}

// Record is one imaging slice's metadata, immutable once assembled.
type Record struct {
	SeriesUID      string
	InstanceNumber int
	Rows           int
	Columns        int
	Path           string
}

// Series is an ordered set of records sharing a SeriesInstanceUID.
type Series struct {
	UID          string
	Modality     string
	Description  string
	SequenceType SequenceType
	Records      []Record
}

// RecordCount returns the number of slices in the series.
func (s *Series) RecordCount() int {
	return len(s.Records)
}

// Study is an ordered set of series sharing a StudyInstanceUID. ID is a
// unique identifier generated at assembly time; re-uploading the same files
// produces a new Study with a new ID.
type Study struct {
	ID          string
	StudyUID    string
	PatientID   string
	StudyDate   string
	Description string
	Series      []Series
}

// SeriesByType returns all series classified as the given sequence type,
// in assembly order.
func (s *Study) SeriesByType(t SequenceType) []Series {
	var out []Series
	for _, ser := range s.Series {
		if ser.SequenceType == t {
			out = append(out, ser)
		}
	}
	return out
}

// RecordCountByType returns the total slice count across all series of the
// given sequence type.
func (s *Study) RecordCountByType(t SequenceType) int {
	count := 0
	for _, ser := range s.Series {
		if ser.SequenceType == t {
			count += len(ser.Records)
		}
	}
	return count
}

// RecordCount returns the total slice count across the whole study.
func (s *Study) RecordCount() int {
	count := 0
	for _, ser := range s.Series {
		count += len(ser.Records)
	}
	return count
}
