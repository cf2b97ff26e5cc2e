package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/repository"
)

// MatchService is the matching engine: it creates requests and drives them
// through pending → accepted | rejected | cancelled.
//
// EXPLICIT CALLER:
// Every method takes the acting model.Caller as a parameter. The HTTP layer
// already gates routes by role, but the engine checks again because it is the
// component that owns the rules, and it may be called from places other than
// those routes (tests, future jobs).
//
// ATOMICITY:
// The check-then-write sequences (one pending per mentee, the accept cascade)
// live inside single repository calls, which own their transactions. This
// service never holds a transaction across calls.
type MatchService struct {
	matches repository.MatchRepository
	logger  *slog.Logger
}

func NewMatchService(matches repository.MatchRepository, logger *slog.Logger) *MatchService {
	return &MatchService{matches: matches, logger: logger}
}

// Create sends a request from a mentee to a mentor.
func (s *MatchService) Create(ctx context.Context, caller model.Caller, mentorID, message string) (*model.MatchRequest, error) {
	if err := requireRole(caller, model.RoleMentee); err != nil {
		return nil, err
	}

	mentorID = strings.TrimSpace(mentorID)
	message = strings.TrimSpace(message)

	var details []string
	if _, err := xid.FromString(mentorID); err != nil {
		details = append(details, "mentorId must be a valid id")
	}
	if utf8.RuneCountInString(message) > model.MaxMessageLength {
		details = append(details, "message must be at most 500 characters")
	}
	if mentorID == caller.UserID {
		details = append(details, "you cannot send a request to yourself")
	}
	if err := invalid(details); err != nil {
		return nil, err
	}

	req := &model.MatchRequest{
		MenteeID: caller.UserID,
		MentorID: mentorID,
		Message:  message,
	}
	if err := s.matches.CreatePending(ctx, req); err != nil {
		return nil, fmt.Errorf("service/matching: creating request: %w", err)
	}

	s.logger.Info("match request created",
		slog.String("requestID", req.ID),
		slog.String("menteeID", req.MenteeID),
		slog.String("mentorID", req.MentorID),
	)
	return req, nil
}

// ListIncoming returns the requests addressed to the calling mentor, newest first.
func (s *MatchService) ListIncoming(ctx context.Context, caller model.Caller) ([]model.MatchRequest, error) {
	if err := requireRole(caller, model.RoleMentor); err != nil {
		return nil, err
	}
	reqs, err := s.matches.ListByMentor(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/matching: listing incoming: %w", err)
	}
	return reqs, nil
}

// ListOutgoing returns the requests sent by the calling mentee, newest first.
func (s *MatchService) ListOutgoing(ctx context.Context, caller model.Caller) ([]model.MatchRequest, error) {
	if err := requireRole(caller, model.RoleMentee); err != nil {
		return nil, err
	}
	reqs, err := s.matches.ListByMentee(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/matching: listing outgoing: %w", err)
	}
	return reqs, nil
}

// Get returns one request if the caller is one of its two participants.
// Anyone else gets not found, never forbidden, so ids cannot be probed.
func (s *MatchService) Get(ctx context.Context, caller model.Caller, id string) (*model.MatchRequest, error) {
	req, err := s.matches.GetMatchRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/matching: getting request %s: %w", id, err)
	}
	if !req.Involves(caller.UserID) {
		return nil, apperror.NotFound("match request", id)
	}
	return req, nil
}

// Accept accepts a pending request addressed to the calling mentor. Every
// other pending request of that mentor and of that mentee is rejected in the
// same transaction.
func (s *MatchService) Accept(ctx context.Context, caller model.Caller, id string) (*model.MatchRequest, error) {
	if err := requireRole(caller, model.RoleMentor); err != nil {
		return nil, err
	}

	req, rejected, err := s.matches.Accept(ctx, id, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/matching: accepting request %s: %w", id, err)
	}

	s.logger.Info("match request accepted",
		slog.String("requestID", req.ID),
		slog.String("mentorID", req.MentorID),
		slog.String("menteeID", req.MenteeID),
		slog.Any("autoRejected", rejected),
	)
	return req, nil
}

// Reject rejects a pending request addressed to the calling mentor.
func (s *MatchService) Reject(ctx context.Context, caller model.Caller, id string) (*model.MatchRequest, error) {
	if err := requireRole(caller, model.RoleMentor); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, id, repository.SideMentor, model.StatusRejected)
}

// Cancel withdraws a pending request sent by the calling mentee. The row is
// kept with status cancelled.
func (s *MatchService) Cancel(ctx context.Context, caller model.Caller, id string) (*model.MatchRequest, error) {
	if err := requireRole(caller, model.RoleMentee); err != nil {
		return nil, err
	}
	return s.transition(ctx, caller, id, repository.SideMentee, model.StatusCancelled)
}

func (s *MatchService) transition(ctx context.Context, caller model.Caller, id string, side repository.Side, to model.MatchStatus) (*model.MatchRequest, error) {
	req, err := s.matches.Transition(ctx, repository.TransitionParams{
		ID:      id,
		ActorID: caller.UserID,
		Side:    side,
		To:      to,
	})
	if err != nil {
		return nil, fmt.Errorf("service/matching: %s request %s: %w", to, id, err)
	}

	s.logger.Info("match request "+string(to),
		slog.String("requestID", req.ID),
		slog.String("actorID", caller.UserID),
	)
	return req, nil
}

func requireRole(caller model.Caller, role model.Role) error {
	if caller.Role != role {
		return apperror.Forbidden(string(role) + " access required")
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperror.ErrNotFound)
}
