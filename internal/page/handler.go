package page

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"learnpage/internal/app/apiresp"
	"learnpage/internal/cloze"
	"learnpage/internal/content"
	"learnpage/internal/question"
)

type Handler struct {
	svc pageService
}

type pageService interface {
	GetPage(ctx context.Context, pageID string) (*View, error)
	OpenSession(ctx context.Context, pageID string, quizMode bool) (*View, error)
	GetSession(sessionID string) (*View, error)
	CloseSession(sessionID string) error
	Attempt(ctx context.Context, sessionID, partID string, payload json.RawMessage) (*PartView, error)
	Submit(ctx context.Context, sessionID, partID string) (*PartView, error)
	RevealHint(sessionID, partID string, index int) (*PartView, error)
	PutPage(ctx context.Context, pageID string, raw json.RawMessage) error
	ListPages(ctx context.Context) ([]string, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type openSessionRequest struct {
	QuizMode bool `json:"quiz_mode"`
}

type attemptRequest struct {
	Payload json.RawMessage `json:"payload"`
}

func NewHandler(svc pageService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(chi.URLParam(r, "pageID"))
	if pageID == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "page id is required"})
		return
	}
	view, err := h.svc.GetPage(r.Context(), pageID)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "page not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: view})
}

func (h *Handler) ListPages(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ListPages(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: ids})
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(chi.URLParam(r, "pageID"))
	if pageID == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "page id is required"})
		return
	}
	var req openSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
			return
		}
	}

	view, err := h.svc.OpenSession(r.Context(), pageID, req.QuizMode)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "page not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: view})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetSession(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: view})
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(chi.URLParam(r, "sessionID")); err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true})
}

func (h *Handler) Attempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Payload) == 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	pv, err := h.svc.Attempt(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "partID"), req.Payload)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: pv})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	pv, err := h.svc.Submit(r.Context(), chi.URLParam(r, "sessionID"), chi.URLParam(r, "partID"))
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: pv})
}

func (h *Handler) RevealHint(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid hint index"})
		return
	}
	pv, err := h.svc.RevealHint(chi.URLParam(r, "sessionID"), chi.URLParam(r, "partID"), index)
	if err != nil {
		writeSessionError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: pv})
}

func (h *Handler) PutPage(w http.ResponseWriter, r *http.Request) {
	pageID := strings.TrimSpace(chi.URLParam(r, "pageID"))
	if pageID == "" {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "page id is required"})
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil || len(raw) == 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if err := h.svc.PutPage(r.Context(), pageID, raw); err != nil {
		writeJSON(w, r, http.StatusUnprocessableEntity, response{OK: false, Error: err.Error()})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]string{"page_id": pageID}})
}

func writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "session not found"})
	case errors.Is(err, question.ErrPartNotRegistered):
		writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "question part not registered"})
	case errors.Is(err, question.ErrPartLocked):
		writeJSON(w, r, http.StatusConflict, response{OK: false, Error: err.Error()})
	case errors.Is(err, question.ErrCannotSubmit):
		writeJSON(w, r, http.StatusConflict, response{OK: false, Error: err.Error()})
	case errors.Is(err, question.ErrNoSuchHint):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	case errors.Is(err, question.ErrBadPayload), errors.Is(err, question.ErrUnknownItem),
		errors.Is(err, question.ErrNoSuchSubPart), errors.Is(err, cloze.ErrUnknownSlot),
		errors.Is(err, cloze.ErrNothingHeld):
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
