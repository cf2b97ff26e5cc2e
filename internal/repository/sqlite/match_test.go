package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

func createPending(t *testing.T, db *DB, menteeID, mentorID string) *model.MatchRequest {
	t.Helper()
	req := &model.MatchRequest{MenteeID: menteeID, MentorID: mentorID, Message: "hi"}
	require.NoError(t, db.CreatePending(context.Background(), req))
	return req
}

func statusOf(t *testing.T, db *DB, id string) model.MatchStatus {
	t.Helper()
	r, err := db.GetMatchRequest(context.Background(), id)
	require.NoError(t, err)
	return r.Status
}

// ===== CREATE TESTS =====

func TestCreatePending(t *testing.T) {
	db := newTestDB(t)
	mentor := createTestUser(t, db, "m@example.com", model.RoleMentor)
	mentee := createTestUser(t, db, "e@example.com", model.RoleMentee)

	req := createPending(t, db, mentee.ID, mentor.ID)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, model.StatusPending, req.Status)
	assert.False(t, req.CreatedAt.IsZero())

	got, err := db.GetMatchRequest(context.Background(), req.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Message)
	assert.Equal(t, mentor.ID, got.MentorID)
}

func TestCreatePending_MentorMustBeActiveMentor(t *testing.T) {
	db := newTestDB(t)
	mentee := createTestUser(t, db, "e@example.com", model.RoleMentee)
	other := createTestUser(t, db, "e2@example.com", model.RoleMentee)
	inactive := createTestUser(t, db, "gone@example.com", model.RoleMentor)
	_, err := db.conn.Exec(`UPDATE users SET is_active = 0 WHERE id = ?`, inactive.ID)
	require.NoError(t, err)

	tests := []struct {
		name     string
		mentorID string
	}{
		{"unknown id", "cv1nrsbk1ugs7ql8s0rg"},
		{"target is a mentee", other.ID},
		{"inactive mentor", inactive.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.CreatePending(context.Background(), &model.MatchRequest{MenteeID: mentee.ID, MentorID: tt.mentorID})
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		})
	}
}

func TestCreatePending_OnePendingPerMentee(t *testing.T) {
	db := newTestDB(t)
	m1 := createTestUser(t, db, "m1@example.com", model.RoleMentor)
	m2 := createTestUser(t, db, "m2@example.com", model.RoleMentor)
	mentee := createTestUser(t, db, "e@example.com", model.RoleMentee)

	first := createPending(t, db, mentee.ID, m1.ID)

	err := db.CreatePending(context.Background(), &model.MatchRequest{MenteeID: mentee.ID, MentorID: m2.ID})
	require.ErrorIs(t, err, apperror.ErrConflict)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, first.ID, appErr.Extra["currentRequestId"])
	assert.Equal(t, m1.ID, appErr.Extra["currentMentorId"])

	// Once the first request is no longer pending a new one is allowed.
	_, err = db.Transition(context.Background(), repository.TransitionParams{
		ID: first.ID, ActorID: mentee.ID, Side: repository.SideMentee, To: model.StatusCancelled,
	})
	require.NoError(t, err)
	createPending(t, db, mentee.ID, m2.ID)
}

func TestPartialUniqueIndex(t *testing.T) {
	db := newTestDB(t)
	mentor := createTestUser(t, db, "m@example.com", model.RoleMentor)
	mentee := createTestUser(t, db, "e@example.com", model.RoleMentee)
	createPending(t, db, mentee.ID, mentor.ID)

	// Bypass CreatePending: the schema itself refuses a second pending row.
	_, err := db.conn.Exec(
		`INSERT INTO match_requests (id, mentee_id, mentor_id, status) VALUES ('x', ?, ?, 'pending')`,
		mentee.ID, mentor.ID)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

// ===== LIST TESTS =====

func TestListByMentorAndMentee(t *testing.T) {
	db := newTestDB(t)
	mentor := createTestUser(t, db, "m@example.com", model.RoleMentor)
	e1 := createTestUser(t, db, "e1@example.com", model.RoleMentee)
	e2 := createTestUser(t, db, "e2@example.com", model.RoleMentee)

	r1 := createPending(t, db, e1.ID, mentor.ID)
	r2 := createPending(t, db, e2.ID, mentor.ID)

	incoming, err := db.ListByMentor(context.Background(), mentor.ID)
	require.NoError(t, err)
	require.Len(t, incoming, 2)
	assert.Equal(t, r2.ID, incoming[0].ID, "newest first")
	assert.Equal(t, r1.ID, incoming[1].ID)

	outgoing, err := db.ListByMentee(context.Background(), e1.ID)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, r1.ID, outgoing[0].ID)

	none, err := db.ListByMentee(context.Background(), mentor.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

// ===== TRANSITION TESTS =====

func TestTransition(t *testing.T) {
	db := newTestDB(t)
	mentor := createTestUser(t, db, "m@example.com", model.RoleMentor)
	otherMentor := createTestUser(t, db, "m2@example.com", model.RoleMentor)
	mentee := createTestUser(t, db, "e@example.com", model.RoleMentee)

	req := createPending(t, db, mentee.ID, mentor.ID)

	t.Run("wrong owner is not found", func(t *testing.T) {
		_, err := db.Transition(context.Background(), repository.TransitionParams{
			ID: req.ID, ActorID: otherMentor.ID, Side: repository.SideMentor, To: model.StatusRejected,
		})
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("mentee cannot act on the mentor side", func(t *testing.T) {
		_, err := db.Transition(context.Background(), repository.TransitionParams{
			ID: req.ID, ActorID: mentee.ID, Side: repository.SideMentor, To: model.StatusRejected,
		})
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("owner rejects", func(t *testing.T) {
		got, err := db.Transition(context.Background(), repository.TransitionParams{
			ID: req.ID, ActorID: mentor.ID, Side: repository.SideMentor, To: model.StatusRejected,
		})
		require.NoError(t, err)
		assert.Equal(t, model.StatusRejected, got.Status)
		assert.Equal(t, model.StatusRejected, statusOf(t, db, req.ID))
	})

	t.Run("terminal state cannot move again", func(t *testing.T) {
		_, err := db.Transition(context.Background(), repository.TransitionParams{
			ID: req.ID, ActorID: mentee.ID, Side: repository.SideMentee, To: model.StatusCancelled,
		})
		assert.ErrorIs(t, err, apperror.ErrNotFound)
		assert.Equal(t, model.StatusRejected, statusOf(t, db, req.ID))
	})
}

// ===== ACCEPT TESTS =====

func TestAccept_CascadeRejectsSiblings(t *testing.T) {
	db := newTestDB(t)
	mentor := createTestUser(t, db, "m@example.com", model.RoleMentor)
	otherMentor := createTestUser(t, db, "m2@example.com", model.RoleMentor)
	e1 := createTestUser(t, db, "e1@example.com", model.RoleMentee)
	e2 := createTestUser(t, db, "e2@example.com", model.RoleMentee)
	e3 := createTestUser(t, db, "e3@example.com", model.RoleMentee)

	chosen := createPending(t, db, e1.ID, mentor.ID)
	sibling := createPending(t, db, e2.ID, mentor.ID)
	unrelated := createPending(t, db, e3.ID, otherMentor.ID)

	got, rejected, err := db.Accept(context.Background(), chosen.ID, mentor.ID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusAccepted, got.Status)
	assert.Equal(t, []string{sibling.ID}, rejected)
	assert.Equal(t, model.StatusAccepted, statusOf(t, db, chosen.ID))
	assert.Equal(t, model.StatusRejected, statusOf(t, db, sibling.ID))
	assert.Equal(t, model.StatusPending, statusOf(t, db, unrelated.ID))
}

func TestAccept_NotOwnerOrNotPending(t *testing.T) {
	db := newTestDB(t)
	mentor := createTestUser(t, db, "m@example.com", model.RoleMentor)
	otherMentor := createTestUser(t, db, "m2@example.com", model.RoleMentor)
	mentee := createTestUser(t, db, "e@example.com", model.RoleMentee)
	req := createPending(t, db, mentee.ID, mentor.ID)

	_, _, err := db.Accept(context.Background(), req.ID, otherMentor.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, _, err = db.Accept(context.Background(), req.ID, mentor.ID)
	require.NoError(t, err)

	_, _, err = db.Accept(context.Background(), req.ID, mentor.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "accepting twice")
}

func TestAccept_ConcurrentExactlyOneWins(t *testing.T) {
	db := newTestDB(t)
	mentor := createTestUser(t, db, "m@example.com", model.RoleMentor)
	mentee := createTestUser(t, db, "e@example.com", model.RoleMentee)
	req := createPending(t, db, mentee.ID, mentor.ID)

	const attempts = 8
	results := make([]error, attempts)

	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, _, err := db.Accept(context.Background(), req.ID, mentor.ID)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperror.ErrNotFound):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, model.StatusAccepted, statusOf(t, db, req.ID))
}
