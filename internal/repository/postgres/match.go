package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

var _ repository.MatchRepository = (*Store)(nil)

const matchSelect = `SELECT id, mentee_id, mentor_id, message, status, created_at, updated_at
	FROM match_requests`

// CreatePending checks the mentor and the mentee's pending slot, then inserts,
// all inside one serializable transaction. Two racing creates by the same
// mentee are settled by the partial unique index; the loser gets the same
// conflict (with the winner's id) as a sequential second attempt would.
func (s *Store) CreatePending(ctx context.Context, req *model.MatchRequest) error {
	ts := now()
	id := xid.New().String()

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var (
			role   string
			active bool
		)
		err := tx.QueryRow(ctx,
			`SELECT role, is_active FROM users WHERE id = $1 FOR SHARE`, req.MentorID,
		).Scan(&role, &active)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && (role != string(model.RoleMentor) || !active)) {
			return apperror.NotFound("mentor", req.MentorID)
		}
		if err != nil {
			return fmt.Errorf("postgres: looking up mentor %s: %w", req.MentorID, err)
		}

		if existing, err := pendingForMentee(ctx, tx, req.MenteeID); err != nil {
			return err
		} else if existing != nil {
			return apperror.PendingRequestExists(existing.ID, existing.MentorID)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO match_requests (id, mentee_id, mentor_id, message, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, 'pending', $5, $5)`,
			id, req.MenteeID, req.MentorID, req.Message, ts,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := pendingForMentee(ctx, s.pool, req.MenteeID)
			if lookupErr == nil && existing != nil {
				return apperror.PendingRequestExists(existing.ID, existing.MentorID)
			}
			return apperror.ConflictMessage("you already have a pending request")
		}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("postgres: creating match request: %w", err)
	}

	req.ID = id
	req.Status = model.StatusPending
	req.CreatedAt = ts
	req.UpdatedAt = ts
	return nil
}

func (s *Store) GetMatchRequest(ctx context.Context, id string) (*model.MatchRequest, error) {
	r, err := scanMatch(s.pool.QueryRow(ctx, matchSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("match request", id)
		}
		return nil, fmt.Errorf("postgres: getting match request %s: %w", id, err)
	}
	return r, nil
}

func (s *Store) ListByMentor(ctx context.Context, mentorID string) ([]model.MatchRequest, error) {
	return s.listMatches(ctx, "mentor_id", mentorID)
}

func (s *Store) ListByMentee(ctx context.Context, menteeID string) ([]model.MatchRequest, error) {
	return s.listMatches(ctx, "mentee_id", menteeID)
}

func (s *Store) listMatches(ctx context.Context, column, userID string) ([]model.MatchRequest, error) {
	rows, err := s.pool.Query(ctx,
		matchSelect+" WHERE "+column+" = $1 ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing match requests: %w", err)
	}
	defer rows.Close()

	requests := []model.MatchRequest{}
	for rows.Next() {
		r, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning match request row: %w", err)
		}
		requests = append(requests, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating match request rows: %w", err)
	}
	return requests, nil
}

func (s *Store) Transition(ctx context.Context, p repository.TransitionParams) (*model.MatchRequest, error) {
	var result *model.MatchRequest

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := lockOwnedPending(ctx, tx, p.ID, p.ActorID, p.Side)
		if err != nil {
			return err
		}
		if !model.CanTransition(r.Status, p.To) {
			return apperror.NotFound("match request", p.ID)
		}

		r.Status = p.To
		r.UpdatedAt = now()
		if _, err := tx.Exec(ctx,
			`UPDATE match_requests SET status = $1, updated_at = $2 WHERE id = $3`,
			string(r.Status), r.UpdatedAt, r.ID,
		); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, wrapTxErr("transitioning match request", err)
	}
	return result, nil
}

func (s *Store) Accept(ctx context.Context, id, mentorID string) (*model.MatchRequest, []string, error) {
	var (
		result   *model.MatchRequest
		rejected []string
	)

	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := lockOwnedPending(ctx, tx, id, mentorID, repository.SideMentor)
		if err != nil {
			return err
		}

		ts := now()
		rows, err := tx.Query(ctx,
			`UPDATE match_requests SET status = 'rejected', updated_at = $1
			 WHERE status = 'pending' AND id <> $2 AND (mentor_id = $3 OR mentee_id = $4)
			 RETURNING id`,
			ts, r.ID, r.MentorID, r.MenteeID,
		)
		if err != nil {
			return err
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}

		r.Status = model.StatusAccepted
		r.UpdatedAt = ts
		if _, err := tx.Exec(ctx,
			`UPDATE match_requests SET status = 'accepted', updated_at = $1 WHERE id = $2`,
			ts, r.ID,
		); err != nil {
			return err
		}

		result = r
		rejected = ids
		return nil
	})
	if err != nil {
		return nil, nil, wrapTxErr("accepting match request", err)
	}
	return result, rejected, nil
}

// lockOwnedPending loads the request, checks ownership, then locks every
// pending row the caller's transition may touch (the target plus anything
// sharing its mentor or mentee) in id order. The ownership and status checks
// are repeated on the locked row because another transaction may have changed
// it between the plain read and the lock.
func lockOwnedPending(ctx context.Context, tx pgx.Tx, id, actorID string, side repository.Side) (*model.MatchRequest, error) {
	r, err := scanMatch(tx.QueryRow(ctx, matchSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("match request", id)
		}
		return nil, err
	}
	if !ownedPending(r, actorID, side) {
		return nil, apperror.NotFound("match request", id)
	}

	rows, err := tx.Query(ctx,
		matchSelect+` WHERE (mentor_id = $1 OR mentee_id = $2 OR id = $3) AND status = 'pending'
		 ORDER BY id FOR UPDATE`,
		r.MentorID, r.MenteeID, r.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locked *model.MatchRequest
	for rows.Next() {
		row, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		if row.ID == id {
			locked = row
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if locked == nil || !ownedPending(locked, actorID, side) {
		return nil, apperror.NotFound("match request", id)
	}
	return locked, nil
}

func ownedPending(r *model.MatchRequest, actorID string, side repository.Side) bool {
	owner := r.MentorID
	if side == repository.SideMentee {
		owner = r.MenteeID
	}
	return owner == actorID && r.Status == model.StatusPending
}

// querier is the QueryRow subset shared by pgx.Tx and *pgxpool.Pool.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pendingForMentee returns the mentee's pending request, or nil if there is none.
func pendingForMentee(ctx context.Context, q querier, menteeID string) (*model.MatchRequest, error) {
	r, err := scanMatch(q.QueryRow(ctx,
		matchSelect+` WHERE mentee_id = $1 AND status = 'pending'`, menteeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// wrapTxErr passes domain errors through untouched and wraps everything else.
func wrapTxErr(doing string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("postgres: %s: %w", doing, err)
}

func scanMatch(row pgx.Row) (*model.MatchRequest, error) {
	var (
		r      model.MatchRequest
		status string
	)
	if err := row.Scan(&r.ID, &r.MenteeID, &r.MentorID, &r.Message, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.MatchStatus(status)
	return &r, nil
}
