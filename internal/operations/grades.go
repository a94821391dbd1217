package operations

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"gradebook/server/internal/model"
)

// GetGrades returns the student's grades record, materializing it on first
// access: one empty entry per subject of the student's resolved year. Losing
// the materialization race to a concurrent caller degrades to a re-read.
func GetGrades(ctx context.Context, store Store, studentID string) (model.Grades, error) {
	if studentID == "" {
		return model.Grades{}, &Error{Code: ErrMissingStudentID}
	}
	record, err := store.GetGradesByStudent(ctx, studentID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Grades{}, storeError(err)
	}

	subjects, err := ListSubjects(ctx, store, SubjectSelector{StudentID: studentID})
	if err != nil {
		return model.Grades{}, err
	}
	record = model.Grades{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Grades:    make([]model.GradeEntry, 0, len(subjects)),
		Absences:  []json.RawMessage{},
	}
	for _, subject := range subjects {
		record.Grades = append(record.Grades, model.GradeEntry{
			SubjectID: subject.ID,
			Values:    []float64{},
			Locked:    0,
		})
	}
	inserted, err := store.InsertGrades(ctx, record)
	if err != nil {
		return model.Grades{}, storeError(err)
	}
	if !inserted {
		record, err = store.GetGradesByStudent(ctx, studentID)
		if err != nil {
			return model.Grades{}, storeError(err)
		}
	}
	return record, nil
}

// UpdateGrades replaces the student's grades and absences wholesale. It is a
// pure upsert on the student id and never resolves subjects: the stored
// record is exactly the supplied payload.
func UpdateGrades(ctx context.Context, store Store, studentID string, grades []model.GradeEntry, absences []json.RawMessage) error {
	if studentID == "" {
		return &Error{Code: ErrMissingStudentID}
	}
	if grades == nil {
		grades = []model.GradeEntry{}
	}
	if absences == nil {
		absences = []json.RawMessage{}
	}
	record := model.Grades{
		ID:        uuid.NewString(),
		StudentID: studentID,
		Grades:    grades,
		Absences:  absences,
	}
	if err := store.UpsertGrades(ctx, record); err != nil {
		return storeError(err)
	}
	return nil
}
