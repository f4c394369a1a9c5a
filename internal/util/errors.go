package util

import "errors"

var (
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidSubmission   = errors.New("invalid submission")
	ErrTestNotFound        = errors.New("test not found or not published")
	ErrDuplicateSubmission = errors.New("placement test already submitted")
	ErrPersistenceFailure  = errors.New("failed to persist result")
	ErrResultNotFound      = errors.New("result not found")
	ErrTestNotEditable     = errors.New("only draft tests can be edited")
	ErrInvalidTransition   = errors.New("invalid test status transition")
	ErrInvalidTest         = errors.New("invalid test definition")
)
