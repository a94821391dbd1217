package operations

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"gradebook/server/internal/model"
)

func CreateGroup(ctx context.Context, store Store, name string, year int, mentorID string) (model.Group, error) {
	if len(strings.TrimSpace(name)) < 2 {
		return model.Group{}, &Error{Code: ErrNameTooShort}
	}
	if !ValidYear(year) {
		return model.Group{}, &Error{Code: ErrInvalidYear}
	}
	if mentorID == "" {
		return model.Group{}, &Error{Code: ErrMissingMentorID}
	}
	group, err := store.CreateGroup(ctx, model.Group{
		Name:     strings.TrimSpace(name),
		Year:     year,
		MentorID: mentorID,
	})
	if err != nil {
		return model.Group{}, storeError(err)
	}
	return group, nil
}

func FindGroup(ctx context.Context, store Store, groupID string) (model.Group, error) {
	if groupID == "" {
		return model.Group{}, &Error{Code: ErrMissingGroupID}
	}
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Group{}, &Error{Code: ErrGroupNotFound}
		}
		return model.Group{}, storeError(err)
	}
	return group, nil
}

// AddStudent requires both the group and the user to exist. Membership has
// set semantics, so re-adding a member is a no-op.
func AddStudent(ctx context.Context, store Store, groupID, studentID string) error {
	if err := checkMembershipArgs(ctx, store, groupID, studentID); err != nil {
		return err
	}
	if err := store.AddGroupStudent(ctx, groupID, studentID); err != nil {
		return storeError(err)
	}
	return nil
}

// RemoveStudent removes the member, preserving the relative order of the
// remaining members. Removing a non-member is a no-op.
func RemoveStudent(ctx context.Context, store Store, groupID, studentID string) error {
	if err := checkMembershipArgs(ctx, store, groupID, studentID); err != nil {
		return err
	}
	if err := store.RemoveGroupStudent(ctx, groupID, studentID); err != nil {
		return storeError(err)
	}
	return nil
}

func checkMembershipArgs(ctx context.Context, store Store, groupID, studentID string) error {
	if groupID == "" {
		return &Error{Code: ErrMissingGroupID}
	}
	if studentID == "" {
		return &Error{Code: ErrMissingStudentID}
	}
	if _, err := store.GetGroup(ctx, groupID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return &Error{Code: ErrGroupNotFound}
		}
		return storeError(err)
	}
	if _, err := store.GetUserByID(ctx, studentID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return &Error{Code: ErrUserNotFound}
		}
		return storeError(err)
	}
	return nil
}

type MemberView struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Avatar string `json:"avatar"`
}

type GroupView struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Year     int          `json:"year"`
	Mentor   MemberView   `json:"mentor"`
	Students []MemberView `json:"students"`
}

// ListGroupViews composes every group with its mentor's and members' profile
// views. The per-user lookups fan out concurrently and join on a barrier;
// any failed lookup fails the whole aggregate.
func ListGroupViews(ctx context.Context, store Store) ([]GroupView, error) {
	groups, err := store.ListGroups(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	views := make([]GroupView, len(groups))
	eg, ctx := errgroup.WithContext(ctx)
	for i, group := range groups {
		views[i] = GroupView{
			ID:       group.ID,
			Name:     group.Name,
			Year:     group.Year,
			Students: make([]MemberView, len(group.StudentIDs)),
		}
		i := i
		mentorID := group.MentorID
		eg.Go(func() error {
			mentor, err := lookupMember(ctx, store, mentorID)
			if err != nil {
				return err
			}
			views[i].Mentor = mentor
			return nil
		})
		for j, studentID := range group.StudentIDs {
			i, j, studentID := i, j, studentID
			eg.Go(func() error {
				member, err := lookupMember(ctx, store, studentID)
				if err != nil {
					return err
				}
				views[i].Students[j] = member
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

func lookupMember(ctx context.Context, store Store, userID string) (MemberView, error) {
	user, err := store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return MemberView{}, &Error{Code: ErrUserNotFound}
		}
		return MemberView{}, storeError(err)
	}
	return MemberView{
		ID:     user.ID,
		Email:  user.Email,
		Name:   user.Profile.Name,
		Gender: user.Profile.Gender,
		Avatar: user.Avatar(60),
	}, nil
}
