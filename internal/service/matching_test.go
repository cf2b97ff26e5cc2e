package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
)

type matchFixture struct {
	svc     *MatchService
	mentorA model.Caller
	mentorB model.Caller
	mentee1 model.Caller
	mentee2 model.Caller
	mentee3 model.Caller
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	db := newTestDB(t)
	auths := newTestAuthService(t, db)
	return &matchFixture{
		svc:     NewMatchService(db, discardLogger()),
		mentorA: callerOf(signup(t, auths, "a@example.com", model.RoleMentor)),
		mentorB: callerOf(signup(t, auths, "b@example.com", model.RoleMentor)),
		mentee1: callerOf(signup(t, auths, "e1@example.com", model.RoleMentee)),
		mentee2: callerOf(signup(t, auths, "e2@example.com", model.RoleMentee)),
		mentee3: callerOf(signup(t, auths, "e3@example.com", model.RoleMentee)),
	}
}

func (f *matchFixture) create(t *testing.T, mentee, mentor model.Caller) *model.MatchRequest {
	t.Helper()
	r, err := f.svc.Create(context.Background(), mentee, mentor.UserID, "please mentor me")
	require.NoError(t, err)
	return r
}

func (f *matchFixture) status(t *testing.T, who model.Caller, id string) model.MatchStatus {
	t.Helper()
	r, err := f.svc.Get(context.Background(), who, id)
	require.NoError(t, err)
	return r.Status
}

// ===== CREATE TESTS =====

func TestCreate(t *testing.T) {
	f := newMatchFixture(t)

	r := f.create(t, f.mentee1, f.mentorA)

	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, f.mentee1.UserID, r.MenteeID)
	assert.Equal(t, f.mentorA.UserID, r.MentorID)
	assert.Equal(t, "please mentor me", r.Message)
}

func TestCreate_Errors(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		caller   model.Caller
		mentorID string
		message  string
		want     error
	}{
		{"mentor cannot send", f.mentorB, f.mentorA.UserID, "", apperror.ErrForbidden},
		{"malformed mentor id", f.mentee1, "not-an-id", "", apperror.ErrValidation},
		{"message too long", f.mentee1, f.mentorA.UserID, strings.Repeat("x", 501), apperror.ErrValidation},
		{"target is a mentee", f.mentee1, f.mentee2.UserID, "", apperror.ErrNotFound},
		{"unknown mentor", f.mentee1, "cv1nrsbk1ugs7ql8s0rg", "", apperror.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.caller, tt.mentorID, tt.message)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreate_MessageAtLimit(t *testing.T) {
	f := newMatchFixture(t)

	_, err := f.svc.Create(context.Background(), f.mentee1, f.mentorA.UserID, strings.Repeat("가", 500))
	assert.NoError(t, err, "500 characters is allowed even when multibyte")
}

func TestCreate_SecondPendingConflicts(t *testing.T) {
	f := newMatchFixture(t)
	first := f.create(t, f.mentee1, f.mentorA)

	_, err := f.svc.Create(context.Background(), f.mentee1, f.mentorB.UserID, "")
	require.ErrorIs(t, err, apperror.ErrConflict)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, first.ID, appErr.Extra["currentRequestId"])
	assert.Equal(t, f.mentorA.UserID, appErr.Extra["currentMentorId"])
}

// ===== LIST TESTS =====

func TestListIncomingAndOutgoing(t *testing.T) {
	f := newMatchFixture(t)
	ctx := context.Background()
	r1 := f.create(t, f.mentee1, f.mentorA)
	r2 := f.create(t, f.mentee2, f.mentorA)

	incoming, err := f.svc.ListIncoming(ctx, f.mentorA)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, r2.ID, incoming[0].ID)
	assert.Equal(t, r1.ID, incoming[1].ID)

	outgoing, err := f.svc.ListOutgoing(ctx, f.mentee1)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	_, err = f.svc.ListIncoming(ctx, f.mentee1)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	_, err = f.svc.ListOutgoing(ctx, f.mentorA)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestGet_OnlyParticipants(t *testing.T) {
	f := newMatchFixture(t)
	r := f.create(t, f.mentee1, f.mentorA)

	for _, who := range []model.Caller{f.mentee1, f.mentorA} {
		_, err := f.svc.Get(context.Background(), who, r.ID)
		assert.NoError(t, err)
	}
	for _, who := range []model.Caller{f.mentee2, f.mentorB} {
		_, err := f.svc.Get(context.Background(), who, r.ID)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	}
}

// ===== ACCEPT / REJECT / CANCEL TESTS =====

func TestAccept_Cascade(t *testing.T) {
	f := newMatchFixture(t)
	chosen := f.create(t, f.mentee1, f.mentorA)
	sameMentor := f.create(t, f.mentee2, f.mentorA)
	otherMentor := f.create(t, f.mentee3, f.mentorB)

	got, err := f.svc.Accept(context.Background(), f.mentorA, chosen.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, got.Status)

	assert.Equal(t, model.StatusRejected, f.status(t, f.mentee2, sameMentor.ID))
	assert.Equal(t, model.StatusPending, f.status(t, f.mentee3, otherMentor.ID))

	// The mentee whose request was auto-rejected may now ask someone else.
	f.create(t, f.mentee2, f.mentorB)
}

func TestAccept_Errors(t *testing.T) {
	f := newMatchFixture(t)
	r := f.create(t, f.mentee1, f.mentorA)
	ctx := context.Background()

	_, err := f.svc.Accept(ctx, f.mentee1, r.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden, "mentees cannot accept")

	_, err = f.svc.Accept(ctx, f.mentorB, r.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "not addressed to this mentor")

	_, err = f.svc.Accept(ctx, f.mentorA, "cv1nrsbk1ugs7ql8s0rg")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.svc.Accept(ctx, f.mentorA, r.ID)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.mentorA, r.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "accepted is terminal")
}

func TestAccept_ConcurrentSingleWinner(t *testing.T) {
	f := newMatchFixture(t)
	r := f.create(t, f.mentee1, f.mentorA)

	var (
		g       errgroup.Group
		results = make([]error, 5)
	)
	for i := range results {
		g.Go(func() error {
			_, results[i] = f.svc.Accept(context.Background(), f.mentorA, r.ID)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestReject(t *testing.T) {
	f := newMatchFixture(t)
	r1 := f.create(t, f.mentee1, f.mentorA)
	r2 := f.create(t, f.mentee2, f.mentorA)

	got, err := f.svc.Reject(context.Background(), f.mentorA, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, model.StatusPending, f.status(t, f.mentorA, r2.ID), "reject does not cascade")

	_, err = f.svc.Reject(context.Background(), f.mentee2, r2.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestCancel(t *testing.T) {
	f := newMatchFixture(t)
	r := f.create(t, f.mentee1, f.mentorA)
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, f.mentee2, r.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "someone else's request")

	_, err = f.svc.Cancel(ctx, f.mentorA, r.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	got, err := f.svc.Cancel(ctx, f.mentee1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)

	// Cancelled rows stay visible.
	assert.Equal(t, model.StatusCancelled, f.status(t, f.mentee1, r.ID))

	_, err = f.svc.Accept(ctx, f.mentorA, r.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "cancelled is terminal")
}
