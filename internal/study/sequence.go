package study

import (
	"fmt"
	"strings"
)

// SequenceType classifies an MRI series by its acquisition sequence.
type SequenceType int

const (
	SequenceUnknown SequenceType = iota
	SequenceT1
	SequenceT1c
	SequenceT2
	SequenceFLAIR
)

// String returns the clinical short name of the sequence type.
func (s SequenceType) String() string {
	switch s {
	case SequenceT1:
		return "T1"
	case SequenceT1c:
		return "T1c"
	case SequenceT2:
		return "T2"
	case SequenceFLAIR:
		return "FLAIR"
	default:
		return "unknown"
	}
}

// ParseSequenceType parses a string into a SequenceType.
func ParseSequenceType(s string) (SequenceType, error) {
	switch strings.ToUpper(s) {
	case "T1":
		return SequenceT1, nil
	case "T1C", "T1CE":
		return SequenceT1c, nil
	case "T2":
		return SequenceT2, nil
	case "FLAIR":
		return SequenceFLAIR, nil
	default:
		return SequenceUnknown, fmt.Errorf("invalid sequence type: %s (valid: T1, T1c, T2, FLAIR)", s)
	}
}

// MarshalText implements encoding.TextMarshaler so sequence types render as
// their clinical names in JSON objects and map keys.
func (s SequenceType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SequenceType) UnmarshalText(text []byte) error {
	if string(text) == "unknown" {
		*s = SequenceUnknown
		return nil
	}
	parsed, err := ParseSequenceType(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// classRule binds a sequence type to the description keywords that identify it.
type classRule struct {
	Type     SequenceType
	Keywords []string
}

// classificationRules is evaluated top-down; the first matching rule wins.
// T1c must precede T1 because post-contrast descriptions ("T1 post gad")
// also contain the plain T1 keyword, and FLAIR must precede T2 for the
// same reason ("T2 FLAIR").
var classificationRules = []classRule{
	{SequenceT1c, []string{"t1c", "t1ce", "t1+c", "t1_post", "t1 post", "t1_gad", "t1 gad", "contrast", "post_contrast"}},
	{SequenceFLAIR, []string{"flair", "fl air", "t2_flair"}},
	{SequenceT2, []string{"t2", "t2w", "t2_weighted", "t2-weighted"}},
	{SequenceT1, []string{"t1", "t1w", "t1_weighted", "t1-weighted"}},
}

// ClassifySequence detects the sequence type from a free-text series
// description using case-insensitive substring matching.
func ClassifySequence(description string) SequenceType {
	desc := strings.ToLower(description)
	for _, rule := range classificationRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, kw) {
				return rule.Type
			}
		}
	}
	return SequenceUnknown
}
