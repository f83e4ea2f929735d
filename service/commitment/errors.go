package commitment

import (
	"errors"

	"github.com/KAsare1/commonthread-server/service/eligibility"
)

var (
	ErrVolunteerNotFound   = errors.New("volunteer profile not found")
	ErrOpportunityNotFound = errors.New("opportunity not found")
	ErrBusinessNotFound    = errors.New("business not found")
	ErrCommitmentNotFound  = errors.New("commitment not found")
	ErrOpportunityFull     = eligibility.ErrOpportunityFull
	ErrOpportunityClosed   = errors.New("this opportunity is no longer accepting volunteers")
	ErrForbidden           = errors.New("not authorized to access this commitment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrStatusConflict      = errors.New("commitment was modified by another request")
	ErrNotEditable         = errors.New("only pending commitments can be edited")
)

// ValidationError wraps a malformed request. Nothing is written when it is returned.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
