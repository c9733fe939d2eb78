package validate

import "fmt"

// GateError is the policy rejection raised when analysis is requested for a
// study whose verdict failed and no bypass was given. The verdict it carries
// is the actionable detail and must never be swallowed.
type GateError struct {
	StudyID string
	Verdict Verdict
}

func (e *GateError) Error() string {
	return fmt.Sprintf("study %s failed validation, analysis blocked: %s", e.StudyID, e.Verdict.Summary())
}
