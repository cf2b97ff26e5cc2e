// Package repository declares the storage interfaces. Services depend on these
// interfaces only; internal/repository/sqlite and internal/repository/postgres
// provide the implementations.
//
// TRANSACTION BOUNDARIES:
// Every method that must be atomic (CreatePending, Transition, Accept) owns its
// transaction internally. Callers never hold a transaction across calls, so the
// store is the single place where the matching invariants are enforced.
package repository

import (
	"context"

	"github.com/sakif/mentor-match/internal/model"
)

// MentorOrder selects the ordering of ListMentors.
type MentorOrder string

const (
	OrderByID    MentorOrder = ""
	OrderByName  MentorOrder = "name"
	OrderBySkill MentorOrder = "skill"
)

// MentorFilter narrows ListMentors. An empty Skill means "any skill".
type MentorFilter struct {
	Skill   string
	OrderBy MentorOrder
}

// UserRepository persists user accounts.
type UserRepository interface {
	// CreateUser inserts a user, assigning ID and timestamps.
	// Returns an apperror.ErrConflict error if the email is taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateProfile writes the mutable profile fields (name, bio, skills,
	// experience, hourly rate, profile image). Email and role are never written.
	UpdateProfile(ctx context.Context, user *model.User) error
	// ListMentors returns active mentors only.
	ListMentors(ctx context.Context, filter MentorFilter) ([]model.User, error)
}

// MatchRepository persists matching requests and enforces their lifecycle.
type MatchRepository interface {
	// CreatePending inserts req as pending, assigning ID and timestamps. In the
	// same transaction it checks that the mentor exists, is a mentor and is
	// active (apperror.ErrNotFound otherwise) and that the mentee has no pending
	// request (apperror.PendingRequestExists otherwise).
	CreatePending(ctx context.Context, req *model.MatchRequest) error

	GetMatchRequest(ctx context.Context, id string) (*model.MatchRequest, error)
	ListByMentor(ctx context.Context, mentorID string) ([]model.MatchRequest, error)
	ListByMentee(ctx context.Context, menteeID string) ([]model.MatchRequest, error)

	// Transition moves a pending request to a terminal status for one actor.
	// The row must match the actor's side of the request and still be pending,
	// otherwise apperror.ErrNotFound is returned.
	Transition(ctx context.Context, t TransitionParams) (*model.MatchRequest, error)

	// Accept marks the request accepted and rejects every other pending request
	// that shares its mentor or its mentee, atomically. It returns the accepted
	// request and the IDs of the requests it rejected.
	Accept(ctx context.Context, id, mentorID string) (*model.MatchRequest, []string, error)
}

// Side says which participant column an actor must match.
type Side int

const (
	SideMentor Side = iota
	SideMentee
)

// TransitionParams describes a single-row status change.
type TransitionParams struct {
	ID      string
	ActorID string
	Side    Side
	To      model.MatchStatus
}
