package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/auth"
	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/response"
)

type createCapsuleRequest struct {
	Message  string     `json:"message" validate:"required"`
	UnlockAt *time.Time `json:"unlock_at" validate:"required"`
}

type updateCapsuleRequest struct {
	Message  *string    `json:"message"`
	UnlockAt *time.Time `json:"unlock_at"`
}

type createdCapsule struct {
	ID         uuid.UUID `json:"id"`
	UnlockAt   time.Time `json:"unlock_at"`
	CreatedAt  time.Time `json:"created_at"`
	UnlockCode string    `json:"unlock_code"`
}

type capsuleContent struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	UnlockAt  time.Time `json:"unlock_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type updatedCapsule struct {
	ID        uuid.UUID `json:"id"`
	UnlockAt  time.Time `json:"unlock_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type capsuleSummary struct {
	ID             uuid.UUID `json:"id"`
	UnlockAt       time.Time `json:"unlock_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	IsUnlockable   bool      `json:"is_unlockable"`
	IsExpired      bool      `json:"is_expired"`
	MessagePreview *string   `json:"message_preview,omitempty"`
}

type pagination struct {
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalPages  int  `json:"total_pages"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
}

type listResponse struct {
	Capsules   []capsuleSummary `json:"capsules"`
	Pagination pagination       `json:"pagination"`
}

func (a *API) handlerCreateCapsule(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	var req createCapsuleRequest
	if !a.decodeBody(w, r, &req) {
		return
	}

	created, err := a.capsules.Create(r.Context(), userID, req.Message, *req.UnlockAt)
	a.metrics.ObserveGate("create", err)
	if err != nil {
		a.respondWithCapsuleError(w, "create", "", err)
		return
	}
	response.RespondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "Capsule created successfully",
		"capsule": createdCapsule{
			ID:         created.Capsule.ID,
			UnlockAt:   created.Capsule.UnlockAt,
			CreatedAt:  created.Capsule.CreatedAt,
			UnlockCode: created.Secret,
		},
	})
}

func (a *API) handlerGetCapsule(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := a.capsuleTarget(w, r)
	if !ok {
		return
	}
	code := r.URL.Query().Get("code")

	c, err := a.capsules.Read(r.Context(), userID, id, code)
	a.metrics.ObserveGate("read", err)
	if err != nil {
		a.respondWithCapsuleError(w, "read", code, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, capsuleContent{
		ID:        c.ID,
		Message:   c.Message,
		UnlockAt:  c.UnlockAt,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	})
}

func (a *API) handlerListCapsules(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	// Unparseable values fall back to the defaults.
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	p, err := a.capsules.List(r.Context(), userID, page, limit)
	a.metrics.ObserveGate("list", err)
	if err != nil {
		a.respondWithCapsuleError(w, "list", "", err)
		return
	}

	items := make([]capsuleSummary, 0, len(p.Items))
	for _, s := range p.Items {
		items = append(items, capsuleSummary{
			ID:             s.ID,
			UnlockAt:       s.UnlockAt,
			CreatedAt:      s.CreatedAt,
			UpdatedAt:      s.UpdatedAt,
			IsUnlockable:   s.IsUnlockable,
			IsExpired:      s.IsExpired,
			MessagePreview: s.MessagePreview,
		})
	}
	response.RespondWithJSON(w, http.StatusOK, listResponse{
		Capsules: items,
		Pagination: pagination{
			Total:       p.Total,
			Page:        p.Page,
			Limit:       p.Limit,
			TotalPages:  p.TotalPages,
			HasNextPage: p.HasNext,
			HasPrevPage: p.HasPrev,
		},
	})
}

func (a *API) handlerUpdateCapsule(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := a.capsuleTarget(w, r)
	if !ok {
		return
	}
	code := r.URL.Query().Get("code")
	var req updateCapsuleRequest
	if !a.decodeBody(w, r, &req) {
		return
	}

	c, err := a.capsules.Update(r.Context(), userID, id, code, capsule.UpdateParams{
		Message:  req.Message,
		UnlockAt: req.UnlockAt,
	})
	a.metrics.ObserveGate("update", err)
	if err != nil {
		a.respondWithCapsuleError(w, "update", code, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Capsule updated successfully",
		"capsule": updatedCapsule{
			ID:        c.ID,
			UnlockAt:  c.UnlockAt,
			UpdatedAt: c.UpdatedAt,
		},
	})
}

func (a *API) handlerDeleteCapsule(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := a.capsuleTarget(w, r)
	if !ok {
		return
	}
	code := r.URL.Query().Get("code")

	err := a.capsules.Delete(r.Context(), userID, id, code)
	a.metrics.ObserveGate("delete", err)
	if err != nil {
		a.respondWithCapsuleError(w, "delete", code, err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "Capsule deleted successfully",
	})
}

// capsuleTarget resolves the caller and the {id} path value. A malformed id
// names no capsule, so it is reported as not found.
func (a *API) capsuleTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		response.RespondWithError(w, http.StatusUnauthorized, "Unauthorized", nil)
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		response.RespondWithError(w, http.StatusNotFound, "Capsule not found", err)
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

type notYetUnlockableResponse struct {
	Error    string    `json:"error"`
	UnlockAt time.Time `json:"unlock_at"`
}

func (a *API) respondWithCapsuleError(w http.ResponseWriter, op, code string, err error) {
	var notYet *capsule.NotYetUnlockableError
	switch {
	case errors.As(err, &notYet):
		response.RespondWithJSON(w, http.StatusForbidden, notYetUnlockableResponse{
			Error:    "This capsule is not yet unlockable",
			UnlockAt: notYet.UnlockAt,
		})
	case errors.Is(err, capsule.ErrNotFound):
		response.RespondWithError(w, http.StatusNotFound, "Capsule not found", err)
	case errors.Is(err, capsule.ErrForbidden):
		response.RespondWithError(w, http.StatusForbidden, "Unauthorized access to this capsule", err)
	case errors.Is(err, capsule.ErrGone):
		response.RespondWithError(w, http.StatusGone, "This capsule has expired and is no longer available", err)
	case errors.Is(err, capsule.ErrAlreadyUnlockable):
		verb := "updated"
		if op == "delete" {
			verb = "deleted"
		}
		response.RespondWithError(w, http.StatusForbidden, "Capsule is already unlockable and cannot be "+verb, err)
	case errors.Is(err, capsule.ErrInvalidSecret):
		msg := "Invalid unlock code"
		if code == "" {
			msg = "Unlock code is required"
		}
		response.RespondWithError(w, http.StatusUnauthorized, msg, err)
	case errors.Is(err, capsule.ErrInvalidSchedule):
		response.RespondWithError(w, http.StatusBadRequest, "Unlock date must be in the future", err)
	case errors.Is(err, capsule.ErrConflict):
		response.RespondWithError(w, http.StatusConflict, "Capsule was modified by another request", err)
	case errors.Is(err, capsule.ErrStorageUnavailable):
		w.Header().Set("Retry-After", "1")
		response.RespondWithError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable", err)
	default:
		response.RespondWithError(w, http.StatusInternalServerError, "Server error", err)
	}
}
