package page

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"learnpage/internal/app/apiresp"
	"learnpage/internal/content"
	"learnpage/internal/question"
)

type mockPageService struct {
	getPageFn     func(ctx context.Context, pageID string) (*View, error)
	openSessionFn func(ctx context.Context, pageID string, quizMode bool) (*View, error)
	getSessionFn  func(sessionID string) (*View, error)
	closeFn       func(sessionID string) error
	attemptFn     func(ctx context.Context, sessionID, partID string, payload json.RawMessage) (*PartView, error)
	submitFn      func(ctx context.Context, sessionID, partID string) (*PartView, error)
	revealHintFn  func(sessionID, partID string, index int) (*PartView, error)
	putPageFn     func(ctx context.Context, pageID string, raw json.RawMessage) error
	listPagesFn   func(ctx context.Context) ([]string, error)
}

func (m *mockPageService) GetPage(ctx context.Context, pageID string) (*View, error) {
	return m.getPageFn(ctx, pageID)
}

func (m *mockPageService) OpenSession(ctx context.Context, pageID string, quizMode bool) (*View, error) {
	return m.openSessionFn(ctx, pageID, quizMode)
}

func (m *mockPageService) GetSession(sessionID string) (*View, error) {
	return m.getSessionFn(sessionID)
}

func (m *mockPageService) CloseSession(sessionID string) error {
	return m.closeFn(sessionID)
}

func (m *mockPageService) Attempt(ctx context.Context, sessionID, partID string, payload json.RawMessage) (*PartView, error) {
	return m.attemptFn(ctx, sessionID, partID, payload)
}

func (m *mockPageService) Submit(ctx context.Context, sessionID, partID string) (*PartView, error) {
	return m.submitFn(ctx, sessionID, partID)
}

func (m *mockPageService) RevealHint(sessionID, partID string, index int) (*PartView, error) {
	return m.revealHintFn(sessionID, partID, index)
}

func (m *mockPageService) PutPage(ctx context.Context, pageID string, raw json.RawMessage) error {
	return m.putPageFn(ctx, pageID, raw)
}

func (m *mockPageService) ListPages(ctx context.Context) ([]string, error) {
	return m.listPagesFn(ctx)
}

func withChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiresp.Envelope {
	t.Helper()
	var env apiresp.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestGetPageHandler(t *testing.T) {
	h := NewHandler(&mockPageService{
		getPageFn: func(_ context.Context, pageID string) (*View, error) {
			if pageID != "p1" {
				return nil, content.ErrNotFound
			}
			return &View{PageID: "p1", Page: &content.Widget{Kind: "page"}}, nil
		},
	})

	req := withChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/pages/p1", nil), map[string]string{"pageID": "p1"})
	rec := httptest.NewRecorder()
	h.GetPage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); !env.OK {
		t.Fatalf("want ok envelope, got %+v", env)
	}
}

func TestGetPageHandlerNotFound(t *testing.T) {
	h := NewHandler(&mockPageService{
		getPageFn: func(context.Context, string) (*View, error) { return nil, content.ErrNotFound },
	})

	req := withChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/pages/miss", nil), map[string]string{"pageID": "miss"})
	rec := httptest.NewRecorder()
	h.GetPage(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.OK || env.Error == nil || env.Error.Code != "not_found" {
		t.Fatalf("want not_found error envelope, got %+v", env)
	}
}

func TestGetPageHandlerMissingID(t *testing.T) {
	h := NewHandler(&mockPageService{})
	req := withChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/pages/", nil), map[string]string{"pageID": "  "})
	rec := httptest.NewRecorder()
	h.GetPage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestOpenSessionHandler(t *testing.T) {
	var gotQuiz bool
	h := NewHandler(&mockPageService{
		openSessionFn: func(_ context.Context, pageID string, quizMode bool) (*View, error) {
			gotQuiz = quizMode
			return &View{SessionID: "s1", PageID: pageID}, nil
		},
	})

	body := bytes.NewBufferString(`{"quiz_mode":true}`)
	req := withChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/pages/p1/sessions", body), map[string]string{"pageID": "p1"})
	rec := httptest.NewRecorder()
	h.OpenSession(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if !gotQuiz {
		t.Fatalf("quiz mode flag not forwarded")
	}
}

func TestOpenSessionHandlerEmptyBody(t *testing.T) {
	h := NewHandler(&mockPageService{
		openSessionFn: func(_ context.Context, pageID string, quizMode bool) (*View, error) {
			if quizMode {
				return nil, errors.New("quiz mode should default to off")
			}
			return &View{SessionID: "s1", PageID: pageID}, nil
		},
	})

	req := withChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/pages/p1/sessions", nil), map[string]string{"pageID": "p1"})
	rec := httptest.NewRecorder()
	h.OpenSession(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
}

func TestAttemptHandler(t *testing.T) {
	var gotSession, gotPart string
	var gotPayload json.RawMessage
	h := NewHandler(&mockPageService{
		attemptFn: func(_ context.Context, sessionID, partID string, payload json.RawMessage) (*PartView, error) {
			gotSession, gotPart, gotPayload = sessionID, partID, payload
			return &PartView{ID: partID, State: "attempting", CanSubmit: true}, nil
		},
	})

	body := bytes.NewBufferString(`{"payload":{"value":"42"}}`)
	req := withChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/parts/q1/attempt", body),
		map[string]string{"sessionID": "s1", "partID": "q1"})
	rec := httptest.NewRecorder()
	h.Attempt(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotSession != "s1" || gotPart != "q1" {
		t.Fatalf("params not forwarded: %q %q", gotSession, gotPart)
	}
	if string(gotPayload) != `{"value":"42"}` {
		t.Fatalf("payload not forwarded verbatim: %s", gotPayload)
	}
}

func TestAttemptHandlerRejectsEmptyPayload(t *testing.T) {
	h := NewHandler(&mockPageService{})
	req := withChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/parts/q1/attempt", bytes.NewBufferString(`{}`)),
		map[string]string{"sessionID": "s1", "partID": "q1"})
	rec := httptest.NewRecorder()
	h.Attempt(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSessionErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"session not found", ErrSessionNotFound, http.StatusNotFound},
		{"part not registered", question.ErrPartNotRegistered, http.StatusNotFound},
		{"part locked", fmt.Errorf("submit: %w", question.ErrPartLocked), http.StatusConflict},
		{"cannot submit", question.ErrCannotSubmit, http.StatusConflict},
		{"no such hint", question.ErrNoSuchHint, http.StatusBadRequest},
		{"bad payload", question.ErrBadPayload, http.StatusBadRequest},
		{"unknown item", question.ErrUnknownItem, http.StatusBadRequest},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&mockPageService{
				submitFn: func(context.Context, string, string) (*PartView, error) { return nil, tc.err },
			})
			req := withChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/parts/q1/submit", nil),
				map[string]string{"sessionID": "s1", "partID": "q1"})
			rec := httptest.NewRecorder()
			h.Submit(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRevealHintHandler(t *testing.T) {
	h := NewHandler(&mockPageService{
		revealHintFn: func(_, _ string, index int) (*PartView, error) {
			return &PartView{ID: "q1", HintsRevealed: index + 1}, nil
		},
	})

	req := withChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/parts/q1/hints/1", nil),
		map[string]string{"sessionID": "s1", "partID": "q1", "index": "1"})
	rec := httptest.NewRecorder()
	h.RevealHint(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRevealHintHandlerBadIndex(t *testing.T) {
	h := NewHandler(&mockPageService{})
	for _, idx := range []string{"x", "-1"} {
		req := withChiParams(httptest.NewRequest(http.MethodPost, "/api/v1/sessions/s1/parts/q1/hints/"+idx, nil),
			map[string]string{"sessionID": "s1", "partID": "q1", "index": idx})
		rec := httptest.NewRecorder()
		h.RevealHint(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("index %q: status = %d, want 400", idx, rec.Code)
		}
	}
}

func TestPutPageHandler(t *testing.T) {
	var stored json.RawMessage
	h := NewHandler(&mockPageService{
		putPageFn: func(_ context.Context, pageID string, raw json.RawMessage) error {
			stored = raw
			return nil
		},
	})

	body := bytes.NewBufferString(`{"type":"page"}`)
	req := withChiParams(httptest.NewRequest(http.MethodPut, "/api/v1/admin/pages/p1", body), map[string]string{"pageID": "p1"})
	rec := httptest.NewRecorder()
	h.PutPage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if string(stored) != `{"type":"page"}` {
		t.Fatalf("document not stored verbatim: %s", stored)
	}
}

func TestPutPageHandlerStoreRejection(t *testing.T) {
	h := NewHandler(&mockPageService{
		putPageFn: func(context.Context, string, json.RawMessage) error {
			return errors.New("document is not valid content")
		},
	})

	req := withChiParams(httptest.NewRequest(http.MethodPut, "/api/v1/admin/pages/p1", bytes.NewBufferString(`{}`)),
		map[string]string{"pageID": "p1"})
	rec := httptest.NewRecorder()
	h.PutPage(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestCloseSessionHandler(t *testing.T) {
	var closed string
	h := NewHandler(&mockPageService{
		closeFn: func(sessionID string) error {
			closed = sessionID
			return nil
		},
	})

	req := withChiParams(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/s1", nil), map[string]string{"sessionID": "s1"})
	rec := httptest.NewRecorder()
	h.CloseSession(rec, req)

	if rec.Code != http.StatusOK || closed != "s1" {
		t.Fatalf("status = %d closed = %q", rec.Code, closed)
	}
}

func TestListPagesHandler(t *testing.T) {
	h := NewHandler(&mockPageService{
		listPagesFn: func(context.Context) ([]string, error) { return []string{"p1", "p2"}, nil },
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pages", nil)
	rec := httptest.NewRecorder()
	h.ListPages(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	ids, ok := env.Data.([]interface{})
	if !ok || len(ids) != 2 {
		t.Fatalf("want 2 ids, got %+v", env.Data)
	}
}
