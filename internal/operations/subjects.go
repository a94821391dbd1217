package operations

import (
	"context"
	"errors"

	"gradebook/server/internal/model"
)

// SubjectSelector narrows a subject listing: an explicit year, a group, or a
// student (resolved through the student's primary group). The zero value
// selects everything.
type SubjectSelector struct {
	Year      int
	GroupID   string
	StudentID string
}

// ResolveYear turns a selector into a concrete year; 0 means unfiltered.
func ResolveYear(ctx context.Context, store Store, sel SubjectSelector) (int, error) {
	if sel.Year != 0 {
		if !ValidYear(sel.Year) {
			return 0, &Error{Code: ErrInvalidYear}
		}
		return sel.Year, nil
	}
	if sel.GroupID != "" {
		group, err := store.GetGroup(ctx, sel.GroupID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return 0, &Error{Code: ErrGroupNotFound}
			}
			return 0, storeError(err)
		}
		return group.Year, nil
	}
	if sel.StudentID != "" {
		group, err := store.GetPrimaryGroupByStudent(ctx, sel.StudentID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return 0, &Error{Code: ErrStudentWithoutGroup}
			}
			return 0, storeError(err)
		}
		return group.Year, nil
	}
	return 0, nil
}

// ListSubjects returns subjects in insertion order, filtered to the
// selector's resolved year when one applies.
func ListSubjects(ctx context.Context, store Store, sel SubjectSelector) ([]model.Subject, error) {
	year, err := ResolveYear(ctx, store, sel)
	if err != nil {
		return nil, err
	}
	subjects, err := store.ListSubjects(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	if year == 0 {
		return subjects, nil
	}
	filtered := make([]model.Subject, 0, len(subjects))
	for _, subject := range subjects {
		if subject.Year == year {
			filtered = append(filtered, subject)
		}
	}
	return filtered, nil
}

func ValidYear(year int) bool {
	return year >= 1 && year <= 8
}
