package model

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by the store when no record matches.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by the store on a uniqueness violation.
var ErrDuplicate = errors.New("duplicate record")

type Role string

const (
	RoleUnknown    Role = "unknown"
	RoleStudent    Role = "student"
	RoleProfessor  Role = "professor"
	RoleHeadmaster Role = "headmaster"
)

func ParseRole(value string) (Role, error) {
	role := Role(strings.TrimSpace(strings.ToLower(value)))
	switch role {
	case RoleUnknown, RoleStudent, RoleProfessor, RoleHeadmaster:
		return role, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role %q", value)
	}
}

type Profile struct {
	Name       string `json:"name"`
	Gender     string `json:"gender"`
	Location   string `json:"location"`
	Website    string `json:"website"`
	PictureURL string `json:"pictureUrl"`
}

type User struct {
	ID                  string
	Email               string
	PasswordHash        string
	Role                Role
	Profile             Profile
	PasswordResetToken  *string
	PasswordResetExpiry *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Avatar returns the user's explicit picture URL when set, otherwise a
// gravatar derived from the email.
func (u User) Avatar(size int) string {
	if u.Profile.PictureURL != "" {
		return u.Profile.PictureURL
	}
	if size <= 0 {
		size = 200
	}
	if u.Email == "" {
		return fmt.Sprintf("https://gravatar.com/avatar/?s=%d&d=retro", size)
	}
	sum := md5.Sum([]byte(u.Email))
	return fmt.Sprintf("https://gravatar.com/avatar/%s?s=%d&d=retro", hex.EncodeToString(sum[:]), size)
}

type Group struct {
	ID         string
	Name       string
	Year       int
	MentorID   string
	StudentIDs []string
	CreatedAt  time.Time
}

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Year int    `json:"year"`
}

type Lecture struct {
	ID          string `json:"id"`
	GroupID     string `json:"groupId"`
	SubjectID   string `json:"subjectId"`
	ProfessorID string `json:"professorId"`
}

type GradeEntry struct {
	SubjectID string    `json:"subjectId"`
	Values    []float64 `json:"values"`
	Locked    int       `json:"locked"`
}

// Grades is lazily materialized per student; the absences element shape is
// owned by the client and stored opaquely.
type Grades struct {
	ID        string            `json:"id"`
	StudentID string            `json:"studentId"`
	Grades    []GradeEntry      `json:"grades"`
	Absences  []json.RawMessage `json:"absences"`
}
