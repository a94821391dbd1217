package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gradebook/server/internal/model"
)

//go:embed schema.sql
var schema string

type Store struct {
	pool *pgxpool.Pool
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Bootstrap applies the schema. Every statement is idempotent.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Users

const userColumns = `id::text, email, password_hash, role, name, gender, location, website, picture_url, password_reset_token, password_reset_expiry, created_at, updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Profile.Name,
		&user.Profile.Gender,
		&user.Profile.Location,
		&user.Profile.Website,
		&user.Profile.PictureURL,
		&user.PasswordResetToken,
		&user.PasswordResetExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return model.User{}, mapError(err)
	}
	user.Role = model.Role(role)
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	user.ID = uuid.NewString()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, name, gender, location, website, picture_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, user.ID, user.Email, user.PasswordHash, string(user.Role), user.Profile.Name, user.Profile.Gender,
		user.Profile.Location, user.Profile.Website, user.Profile.PictureURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return model.User{}, mapError(err)
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByResetToken(ctx context.Context, tokenHash string, now time.Time) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE password_reset_token = $1 AND password_reset_expiry > $2
	`, tokenHash, now)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, role string) ([]model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`
	args := []interface{}{}
	if role != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at, id`
		args = append(args, role)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, mapError(rows.Err())
}

func (s *Store) UpdateUserProfile(ctx context.Context, userID string, profile model.Profile) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET name = $1, gender = $2, location = $3, website = $4, picture_url = $5, updated_at = $6
		WHERE id = $7
	`, profile.Name, profile.Gender, profile.Location, profile.Website, profile.PictureURL, time.Now().UTC(), userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserRole(ctx context.Context, userID string, role model.Role) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET role = $1, updated_at = $2 WHERE id = $3
	`, string(role), time.Now().UTC(), userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, password_reset_token = NULL, password_reset_expiry = NULL, updated_at = $2
		WHERE id = $3
	`, passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *Store) SetPasswordReset(ctx context.Context, userID, tokenHash string, expiry time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_reset_token = $1, password_reset_expiry = $2, updated_at = $3 WHERE id = $4
	`, tokenHash, expiry, time.Now().UTC(), userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Groups

func (s *Store) CreateGroup(ctx context.Context, group model.Group) (model.Group, error) {
	group.ID = uuid.NewString()
	group.CreatedAt = time.Now().UTC()
	group.StudentIDs = []string{}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (id, name, year, mentor_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, group.ID, group.Name, group.Year, group.MentorID, group.CreatedAt)
	if err != nil {
		return model.Group{}, mapError(err)
	}
	return group, nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (model.Group, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, name, year, mentor_id::text, created_at FROM groups WHERE id = $1
	`, groupID)
	var group model.Group
	if err := row.Scan(&group.ID, &group.Name, &group.Year, &group.MentorID, &group.CreatedAt); err != nil {
		return model.Group{}, mapError(err)
	}
	students, err := s.listGroupStudents(ctx, group.ID)
	if err != nil {
		return model.Group{}, err
	}
	group.StudentIDs = students
	return group, nil
}

func (s *Store) ListGroups(ctx context.Context) ([]model.Group, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, year, mentor_id::text, created_at FROM groups ORDER BY created_at, id
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	groups := make([]model.Group, 0)
	for rows.Next() {
		var group model.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Year, &group.MentorID, &group.CreatedAt); err != nil {
			return nil, mapError(err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	for i := range groups {
		students, err := s.listGroupStudents(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].StudentIDs = students
	}
	return groups, nil
}

// GetPrimaryGroupByStudent resolves the student's primary group: the oldest
// group containing the student, with the group id as tie-break.
func (s *Store) GetPrimaryGroupByStudent(ctx context.Context, studentID string) (model.Group, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT g.id::text, g.name, g.year, g.mentor_id::text, g.created_at
		FROM groups g
		JOIN group_students gs ON gs.group_id = g.id
		WHERE gs.student_id = $1
		ORDER BY g.created_at, g.id
		LIMIT 1
	`, studentID)
	var group model.Group
	if err := row.Scan(&group.ID, &group.Name, &group.Year, &group.MentorID, &group.CreatedAt); err != nil {
		return model.Group{}, mapError(err)
	}
	students, err := s.listGroupStudents(ctx, group.ID)
	if err != nil {
		return model.Group{}, err
	}
	group.StudentIDs = students
	return group, nil
}

func (s *Store) listGroupStudents(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT student_id::text FROM group_students WHERE group_id = $1 ORDER BY added_at, student_id
	`, groupID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	students := make([]string, 0)
	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			return nil, mapError(err)
		}
		students = append(students, studentID)
	}
	return students, mapError(rows.Err())
}

// AddGroupStudent has set semantics: adding an existing member is a no-op.
func (s *Store) AddGroupStudent(ctx context.Context, groupID, studentID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO group_students (group_id, student_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, student_id) DO NOTHING
	`, groupID, studentID, time.Now().UTC())
	return mapError(err)
}

func (s *Store) RemoveGroupStudent(ctx context.Context, groupID, studentID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM group_students WHERE group_id = $1 AND student_id = $2
	`, groupID, studentID)
	return mapError(err)
}

// Subjects

func (s *Store) CreateSubject(ctx context.Context, subject model.Subject) (model.Subject, error) {
	subject.ID = uuid.NewString()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subjects (id, name, year, created_at) VALUES ($1, $2, $3, $4)
	`, subject.ID, subject.Name, subject.Year, time.Now().UTC())
	if err != nil {
		return model.Subject{}, mapError(err)
	}
	return subject, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, name, year FROM subjects ORDER BY created_at, id
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	subjects := make([]model.Subject, 0)
	for rows.Next() {
		var subject model.Subject
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.Year); err != nil {
			return nil, mapError(err)
		}
		subjects = append(subjects, subject)
	}
	return subjects, mapError(rows.Err())
}

// Lectures

// UpsertLecture is keyed on (group_id, subject_id); an existing assignment
// keeps its row identity and only the professor changes.
func (s *Store) UpsertLecture(ctx context.Context, groupID, subjectID, professorID string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO lectures (id, group_id, subject_id, professor_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (group_id, subject_id)
		DO UPDATE SET professor_id = EXCLUDED.professor_id, updated_at = EXCLUDED.updated_at
	`, uuid.NewString(), groupID, subjectID, professorID, now)
	return mapError(err)
}

func (s *Store) GetLectureByPair(ctx context.Context, groupID, subjectID string) (model.Lecture, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, group_id::text, subject_id::text, professor_id::text
		FROM lectures
		WHERE group_id = $1 AND subject_id = $2
	`, groupID, subjectID)
	var lecture model.Lecture
	if err := row.Scan(&lecture.ID, &lecture.GroupID, &lecture.SubjectID, &lecture.ProfessorID); err != nil {
		return model.Lecture{}, mapError(err)
	}
	return lecture, nil
}

func (s *Store) ListLectures(ctx context.Context) ([]model.Lecture, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, group_id::text, subject_id::text, professor_id::text
		FROM lectures ORDER BY created_at, id
	`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	lectures := make([]model.Lecture, 0)
	for rows.Next() {
		var lecture model.Lecture
		if err := rows.Scan(&lecture.ID, &lecture.GroupID, &lecture.SubjectID, &lecture.ProfessorID); err != nil {
			return nil, mapError(err)
		}
		lectures = append(lectures, lecture)
	}
	return lectures, mapError(rows.Err())
}

// Grades

func (s *Store) GetGradesByStudent(ctx context.Context, studentID string) (model.Grades, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id::text, student_id::text, grades, absences FROM grades WHERE student_id = $1
	`, studentID)
	var record model.Grades
	var gradesRaw, absencesRaw []byte
	if err := row.Scan(&record.ID, &record.StudentID, &gradesRaw, &absencesRaw); err != nil {
		return model.Grades{}, mapError(err)
	}
	if err := json.Unmarshal(gradesRaw, &record.Grades); err != nil {
		return model.Grades{}, err
	}
	if err := json.Unmarshal(absencesRaw, &record.Absences); err != nil {
		return model.Grades{}, err
	}
	return record, nil
}

// InsertGrades inserts only when no record exists for the student. The bool
// reports whether this call created the record; false means a concurrent
// writer got there first and the caller should re-read.
func (s *Store) InsertGrades(ctx context.Context, record model.Grades) (bool, error) {
	gradesRaw, err := json.Marshal(record.Grades)
	if err != nil {
		return false, err
	}
	absencesRaw, err := json.Marshal(record.Absences)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO grades (id, student_id, grades, absences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (student_id) DO NOTHING
	`, record.ID, record.StudentID, gradesRaw, absencesRaw, now)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpsertGrades replaces the grades and absences wholesale.
func (s *Store) UpsertGrades(ctx context.Context, record model.Grades) error {
	gradesRaw, err := json.Marshal(record.Grades)
	if err != nil {
		return err
	}
	absencesRaw, err := json.Marshal(record.Absences)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO grades (id, student_id, grades, absences, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (student_id)
		DO UPDATE SET grades = EXCLUDED.grades, absences = EXCLUDED.absences, updated_at = EXCLUDED.updated_at
	`, record.ID, record.StudentID, gradesRaw, absencesRaw, now)
	return mapError(err)
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return model.ErrDuplicate
	}
	return err
}
