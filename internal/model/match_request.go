package model

import "time"

// MatchStatus is the lifecycle state of a MatchRequest.
//
// STATE MACHINE:
//
//	pending ──accept──▶ accepted
//	   │ ──reject──▶ rejected
//	   └──cancel──▶ cancelled
//
// Every request starts as pending. accepted, rejected and cancelled are
// terminal: nothing transitions out of them.
type MatchStatus string

const (
	StatusPending   MatchStatus = "pending"
	StatusAccepted  MatchStatus = "accepted"
	StatusRejected  MatchStatus = "rejected"
	StatusCancelled MatchStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s MatchStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

// CanTransition reports whether the state machine allows from → to.
func CanTransition(from, to MatchStatus) bool {
	return from == StatusPending && to.Terminal()
}

// MaxMessageLength is the upper bound on MatchRequest.Message, in characters.
const MaxMessageLength = 500

// MatchRequest is a proposal from a mentee to a specific mentor.
type MatchRequest struct {
	ID        string      `json:"id"        db:"id"`
	MenteeID  string      `json:"menteeId"  db:"mentee_id"`
	MentorID  string      `json:"mentorId"  db:"mentor_id"`
	Message   string      `json:"message"   db:"message"`
	Status    MatchStatus `json:"status"    db:"status"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" db:"updated_at"`
}

// Involves reports whether userID is the mentee or the mentor of r.
func (r *MatchRequest) Involves(userID string) bool {
	return r.MenteeID == userID || r.MentorID == userID
}
