package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

var _ repository.MatchRepository = (*DB)(nil)

const matchSelect = `SELECT id, mentee_id, mentor_id, message, status, created_at, updated_at
	FROM match_requests`

// CreatePending inserts req as a new pending request.
//
// The mentor lookup, the "already pending?" check and the INSERT share one
// transaction. With a single connection nothing can interleave between the
// check and the insert.
func (db *DB) CreatePending(ctx context.Context, req *model.MatchRequest) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	var (
		role   string
		active bool
	)
	err = tx.QueryRowContext(ctx,
		`SELECT role, is_active FROM users WHERE id = ?`, req.MentorID,
	).Scan(&role, &active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && (role != string(model.RoleMentor) || !active)) {
		return apperror.NotFound("mentor", req.MentorID)
	}
	if err != nil {
		return fmt.Errorf("sqlite: looking up mentor %s: %w", req.MentorID, err)
	}

	var existingID, existingMentor string
	err = tx.QueryRowContext(ctx,
		`SELECT id, mentor_id FROM match_requests WHERE mentee_id = ? AND status = 'pending'`,
		req.MenteeID,
	).Scan(&existingID, &existingMentor)
	switch {
	case err == nil:
		return apperror.PendingRequestExists(existingID, existingMentor)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("sqlite: checking pending requests: %w", err)
	}

	now := time.Now().UTC()
	req.ID = xid.New().String()
	req.Status = model.StatusPending
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO match_requests (id, mentee_id, mentor_id, message, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.MenteeID, req.MentorID, req.Message, string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("you already have a pending request")
		}
		return fmt.Errorf("sqlite: inserting match request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing match request: %w", err)
	}
	return nil
}

// GetMatchRequest returns a request by id, apperror.ErrNotFound if absent.
func (db *DB) GetMatchRequest(ctx context.Context, id string) (*model.MatchRequest, error) {
	r, err := scanMatch(db.conn.QueryRowContext(ctx, matchSelect+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("match request", id)
		}
		return nil, fmt.Errorf("sqlite: getting match request %s: %w", id, err)
	}
	return r, nil
}

// ListByMentor returns every request addressed to mentorID, newest first.
func (db *DB) ListByMentor(ctx context.Context, mentorID string) ([]model.MatchRequest, error) {
	return db.listMatches(ctx, "mentor_id", mentorID)
}

// ListByMentee returns every request sent by menteeID, newest first.
func (db *DB) ListByMentee(ctx context.Context, menteeID string) ([]model.MatchRequest, error) {
	return db.listMatches(ctx, "mentee_id", menteeID)
}

// column is one of two constants above, never user input.
func (db *DB) listMatches(ctx context.Context, column, userID string) ([]model.MatchRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		matchSelect+" WHERE "+column+" = ? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing match requests: %w", err)
	}
	defer rows.Close()

	requests := []model.MatchRequest{}
	for rows.Next() {
		r, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning match request row: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating match request rows: %w", err)
	}
	return requests, nil
}

// Transition moves one pending request owned by p.ActorID to p.To.
func (db *DB) Transition(ctx context.Context, p repository.TransitionParams) (*model.MatchRequest, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	r, err := loadOwnedPending(ctx, tx, p.ID, p.ActorID, p.Side)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(r.Status, p.To) {
		return nil, apperror.NotFound("match request", p.ID)
	}

	r.Status = p.To
	r.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE match_requests SET status = ?, updated_at = ? WHERE id = ?`,
		string(r.Status), r.UpdatedAt, r.ID,
	); err != nil {
		return nil, fmt.Errorf("sqlite: updating match request %s: %w", r.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing transition: %w", err)
	}
	return r, nil
}

// Accept marks the request accepted and, in the same transaction, rejects every
// other pending request that shares its mentor or its mentee.
func (db *DB) Accept(ctx context.Context, id, mentorID string) (*model.MatchRequest, []string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: beginning tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	r, err := loadOwnedPending(ctx, tx, id, mentorID, repository.SideMentor)
	if err != nil {
		return nil, nil, err
	}

	rejected, err := pendingSiblings(ctx, tx, r)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	if len(rejected) > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE match_requests SET status = 'rejected', updated_at = ?
			 WHERE status = 'pending' AND id <> ? AND (mentor_id = ? OR mentee_id = ?)`,
			now, r.ID, r.MentorID, r.MenteeID,
		); err != nil {
			return nil, nil, fmt.Errorf("sqlite: rejecting sibling requests: %w", err)
		}
	}

	r.Status = model.StatusAccepted
	r.UpdatedAt = now
	if _, err := tx.ExecContext(ctx,
		`UPDATE match_requests SET status = ?, updated_at = ? WHERE id = ?`,
		string(r.Status), r.UpdatedAt, r.ID,
	); err != nil {
		return nil, nil, fmt.Errorf("sqlite: accepting match request %s: %w", r.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("sqlite: committing accept: %w", err)
	}
	return r, rejected, nil
}

// loadOwnedPending reads a request inside tx and checks that actorID is on the
// given side of it and that it is still pending. Every failure is reported as
// not found so callers cannot probe other users' requests.
func loadOwnedPending(ctx context.Context, tx *sql.Tx, id, actorID string, side repository.Side) (*model.MatchRequest, error) {
	r, err := scanMatch(tx.QueryRowContext(ctx, matchSelect+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("match request", id)
		}
		return nil, fmt.Errorf("sqlite: loading match request %s: %w", id, err)
	}

	owner := r.MentorID
	if side == repository.SideMentee {
		owner = r.MenteeID
	}
	if owner != actorID || r.Status != model.StatusPending {
		return nil, apperror.NotFound("match request", id)
	}
	return r, nil
}

func pendingSiblings(ctx context.Context, tx *sql.Tx, r *model.MatchRequest) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM match_requests
		 WHERE status = 'pending' AND id <> ? AND (mentor_id = ? OR mentee_id = ?)
		 ORDER BY id`,
		r.ID, r.MentorID, r.MenteeID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding sibling requests: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning sibling id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanMatch(s scanner) (*model.MatchRequest, error) {
	var (
		r      model.MatchRequest
		status string
	)
	if err := s.Scan(&r.ID, &r.MenteeID, &r.MentorID, &r.Message, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.MatchStatus(status)
	return &r, nil
}
