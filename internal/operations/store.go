package operations

import (
	"context"

	"gradebook/server/internal/model"
)

// Store is the persistence boundary the operations depend on. The pgx
// repository is the production implementation; tests substitute an in-memory
// fake. Lookups return model.ErrNotFound when no record matches.
type Store interface {
	GetUserByID(ctx context.Context, userID string) (model.User, error)

	CreateGroup(ctx context.Context, group model.Group) (model.Group, error)
	GetGroup(ctx context.Context, groupID string) (model.Group, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
	GetPrimaryGroupByStudent(ctx context.Context, studentID string) (model.Group, error)
	AddGroupStudent(ctx context.Context, groupID, studentID string) error
	RemoveGroupStudent(ctx context.Context, groupID, studentID string) error

	ListSubjects(ctx context.Context) ([]model.Subject, error)

	UpsertLecture(ctx context.Context, groupID, subjectID, professorID string) error
	GetLectureByPair(ctx context.Context, groupID, subjectID string) (model.Lecture, error)
	ListLectures(ctx context.Context) ([]model.Lecture, error)

	GetGradesByStudent(ctx context.Context, studentID string) (model.Grades, error)
	InsertGrades(ctx context.Context, record model.Grades) (bool, error)
	UpsertGrades(ctx context.Context, record model.Grades) error
}
