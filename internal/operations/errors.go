package operations

import "errors"

const (
	ErrMissingStudentID    = "missing_student_id"
	ErrMissingGroupID      = "missing_group_id"
	ErrMissingSubjectID    = "missing_subject_id"
	ErrMissingProfessorID  = "missing_professor_id"
	ErrMissingMentorID     = "missing_mentor_id"
	ErrNameTooShort        = "name_too_short"
	ErrInvalidYear         = "invalid_year"
	ErrGroupNotFound       = "group_not_found"
	ErrUserNotFound        = "user_not_found"
	ErrStudentWithoutGroup = "student_without_group"
	ErrServerError         = "server_error"
)

// Error carries a stable code for the HTTP boundary to translate, wrapping
// the underlying cause when one exists.
type Error struct {
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func CodeOf(err error) string {
	var opErr *Error
	if errors.As(err, &opErr) {
		return opErr.Code
	}
	return ""
}

func storeError(err error) error {
	return &Error{Code: ErrServerError, Err: err}
}
