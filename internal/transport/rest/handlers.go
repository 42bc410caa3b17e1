package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	errx "github.com/voice-journal/core/internal/core/error"
	"github.com/voice-journal/core/internal/journal/model"
)

// maxBodyBytes bounds request bodies; utterances are capped well below it.
const maxBodyBytes = 64 << 10

type SessionHandler struct {
	service SessionService
	loc     *time.Location
	now     func() time.Time
}

func NewSessionHandler(service SessionService, loc *time.Location, now func() time.Time) *SessionHandler {
	return &SessionHandler{service: service, loc: loc, now: now}
}

type createSessionRequest struct {
	// Date defaults to today in the configured timezone.
	Date string `json:"date,omitempty"`
}

type sessionResponse struct {
	SessionID string                   `json:"session_id"`
	Date      string                   `json:"date"`
	State     *model.ConversationState `json:"state"`
}

// CreateSession handles POST /v1/sessions.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, err)
		return
	}
	if req.Date == "" {
		req.Date = h.now().In(h.loc).Format(time.DateOnly)
	}

	key := model.SessionKey{UserID: userID, Date: req.Date, SessionID: uuid.New().String()}
	state, err := h.service.Start(r.Context(), key)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sessionResponse{SessionID: key.SessionID, Date: key.Date, State: state})
}

// SubmitTurn handles POST /v1/sessions/{sessionID}/turns. The body is a
// TurnInput; user and session come from the header and the path.
func (h *SessionHandler) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var in model.TurnInput
	if err := decodeBody(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	in.UserID = userID
	in.SessionID = chi.URLParam(r, "sessionID")

	result, err := h.service.ProcessTurn(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetSession handles GET /v1/sessions/{sessionID}?date=YYYY-MM-DD.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	key, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	state, err := h.service.State(r.Context(), key)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{SessionID: key.SessionID, Date: key.Date, State: state})
}

// DeleteSession handles DELETE /v1/sessions/{sessionID}?date=YYYY-MM-DD.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	key, ok := h.sessionKey(w, r)
	if !ok {
		return
	}
	if err := h.service.ResetSession(r.Context(), key); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *SessionHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(UserHeader))
	if userID == "" {
		respondError(w, r, errx.Validation(errors.New(UserHeader+" header is required")))
		return "", false
	}
	return userID, true
}

func (h *SessionHandler) sessionKey(w http.ResponseWriter, r *http.Request) (model.SessionKey, bool) {
	userID, ok := h.userID(w, r)
	if !ok {
		return model.SessionKey{}, false
	}
	return model.SessionKey{
		UserID:    userID,
		Date:      r.URL.Query().Get("date"),
		SessionID: chi.URLParam(r, "sessionID"),
	}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errx.Validation(err)
	}
	return nil
}
