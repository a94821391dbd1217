package operations

import (
	"context"
	"errors"

	"gradebook/server/internal/model"
)

// AssignLecture binds a professor to (group, subject). The pair is the
// natural key: a second assignment overwrites the professor in place.
func AssignLecture(ctx context.Context, store Store, groupID, subjectID, professorID string) error {
	if groupID == "" {
		return &Error{Code: ErrMissingGroupID}
	}
	if subjectID == "" {
		return &Error{Code: ErrMissingSubjectID}
	}
	if professorID == "" {
		return &Error{Code: ErrMissingProfessorID}
	}
	if err := store.UpsertLecture(ctx, groupID, subjectID, professorID); err != nil {
		return storeError(err)
	}
	return nil
}

// ListLectures returns all lectures, filtered by exact professor and/or
// group match when given (AND-combined).
func ListLectures(ctx context.Context, store Store, professorID, groupID string) ([]model.Lecture, error) {
	lectures, err := store.ListLectures(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	if professorID == "" && groupID == "" {
		return lectures, nil
	}
	filtered := make([]model.Lecture, 0, len(lectures))
	for _, lecture := range lectures {
		if professorID != "" && lecture.ProfessorID != professorID {
			continue
		}
		if groupID != "" && lecture.GroupID != groupID {
			continue
		}
		filtered = append(filtered, lecture)
	}
	return filtered, nil
}

// IsProfessorAuthorized reports whether the professor holds the lecture
// assignment for the subject in the student's primary group. A missing
// lecture is false, not an error; a student with no group is an error.
func IsProfessorAuthorized(ctx context.Context, store Store, studentID, subjectID, professorID string) (bool, error) {
	if studentID == "" {
		return false, &Error{Code: ErrMissingStudentID}
	}
	if subjectID == "" {
		return false, &Error{Code: ErrMissingSubjectID}
	}
	if professorID == "" {
		return false, &Error{Code: ErrMissingProfessorID}
	}
	group, err := store.GetPrimaryGroupByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, &Error{Code: ErrStudentWithoutGroup}
		}
		return false, storeError(err)
	}
	lecture, err := store.GetLectureByPair(ctx, group.ID, subjectID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, nil
		}
		return false, storeError(err)
	}
	return lecture.ProfessorID == professorID, nil
}

// CanSubmitGrades reports whether the professor teaches any subject to the
// student's primary group. Gate for wholesale grades updates, where no single
// subject identifies the submission.
func CanSubmitGrades(ctx context.Context, store Store, studentID, professorID string) (bool, error) {
	if studentID == "" {
		return false, &Error{Code: ErrMissingStudentID}
	}
	if professorID == "" {
		return false, &Error{Code: ErrMissingProfessorID}
	}
	group, err := store.GetPrimaryGroupByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return false, &Error{Code: ErrStudentWithoutGroup}
		}
		return false, storeError(err)
	}
	lectures, err := store.ListLectures(ctx)
	if err != nil {
		return false, storeError(err)
	}
	for _, lecture := range lectures {
		if lecture.GroupID == group.ID && lecture.ProfessorID == professorID {
			return true, nil
		}
	}
	return false, nil
}
