package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/service"
)

// MatchHandler exposes the matching engine over HTTP.
//
//	POST   /api/match-requests               mentee  → 201 request
//	GET    /api/match-requests/incoming      mentor  → 200 []request
//	GET    /api/match-requests/outgoing      mentee  → 200 []request
//	GET    /api/match-requests/{id}          participant → 200 request
//	PUT    /api/match-requests/{id}/accept   mentor  → 200 request
//	PUT    /api/match-requests/{id}/reject   mentor  → 200 request
//	DELETE /api/match-requests/{id}          mentee  → 200 {message, request}
//
// Role gates are applied by the router; the engine re-checks them.
type MatchHandler struct {
	matches *service.MatchService
	errs    errorWriter
}

func NewMatchHandler(matches *service.MatchService, logger *slog.Logger, development bool) *MatchHandler {
	return &MatchHandler{matches: matches, errs: newErrorWriter(logger, development)}
}

func (h *MatchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	var req createMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	created, err := h.matches.Create(r.Context(), caller, req.MentorID, req.Message)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *MatchHandler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.matches.ListIncoming)
}

func (h *MatchHandler) HandleOutgoing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.matches.ListOutgoing)
}

func (h *MatchHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.matches.Get)
}

func (h *MatchHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.matches.Accept)
}

func (h *MatchHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, h.matches.Reject)
}

// HandleCancel withdraws the caller's request. The request is kept with status
// cancelled and returned alongside a confirmation message.
func (h *MatchHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	cancelled, err := h.matches.Cancel(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "match request cancelled",
		"request": cancelled,
	})
}

type listFunc func(ctx context.Context, caller model.Caller) ([]model.MatchRequest, error)

func (h *MatchHandler) list(w http.ResponseWriter, r *http.Request, fn listFunc) {
	caller, err := callerFrom(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	reqs, err := fn(r.Context(), caller)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

type actFunc func(ctx context.Context, caller model.Caller, id string) (*model.MatchRequest, error)

// act runs a single-request operation identified by the {id} URL parameter.
func (h *MatchHandler) act(w http.ResponseWriter, r *http.Request, fn actFunc) {
	caller, err := callerFrom(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	req, err := fn(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
