package page

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"learnpage/internal/content"
	"learnpage/internal/question"
	"learnpage/internal/telemetry"
	"learnpage/internal/validator"
)

type stubStore struct {
	getFn  func(ctx context.Context, pageID string) (*content.Node, error)
	putFn  func(ctx context.Context, pageID string, raw json.RawMessage) error
	listFn func(ctx context.Context, since time.Time, limit int) ([]string, error)
}

func (s *stubStore) Get(ctx context.Context, pageID string) (*content.Node, error) {
	return s.getFn(ctx, pageID)
}

func (s *stubStore) Put(ctx context.Context, pageID string, raw json.RawMessage) error {
	if s.putFn == nil {
		return nil
	}
	return s.putFn(ctx, pageID, raw)
}

func (s *stubStore) ListIDs(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, since, limit)
}

type stubValidator struct {
	validateFn func(ctx context.Context, doc *content.Node, c question.Choice) (validator.Result, error)
}

func (s *stubValidator) Validate(ctx context.Context, doc *content.Node, c question.Choice) (validator.Result, error) {
	return s.validateFn(ctx, doc, c)
}

type captureRecorder struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureRecorder) Record(ev telemetry.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *captureRecorder) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

func testPage() *content.Node {
	return &content.Node{
		ID:   "p1",
		Type: "page",
		Children: []content.Node{
			{Type: "content", Value: "intro", Encoding: "html"},
			{ID: "q1", Type: "stringMatchQuestion", Value: "2+2?", Encoding: "html",
				Hints:  []content.Node{{Type: "content", Value: "count", Encoding: "html"}},
				Answer: &content.Node{Value: "4"}},
		},
	}
}

func correctValidator() *stubValidator {
	return &stubValidator{
		validateFn: func(_ context.Context, _ *content.Node, c question.Choice) (validator.Result, error) {
			return validator.Result{
				Response: question.ValidationResponse{Correct: c.Value == "4"},
				Source:   "local",
			}, nil
		},
	}
}

func newTestService(rec *captureRecorder) *Service {
	store := &stubStore{
		getFn: func(_ context.Context, pageID string) (*content.Node, error) {
			if pageID != "p1" {
				return nil, content.ErrNotFound
			}
			return testPage(), nil
		},
	}
	return NewService(store, correctValidator(), rec, "/assets")
}

func TestOpenSessionRendersAndRecords(t *testing.T) {
	rec := &captureRecorder{}
	svc := newTestService(rec)

	view, err := svc.OpenSession(context.Background(), "p1", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if view.SessionID == "" || view.PageID != "p1" || view.Page == nil {
		t.Fatalf("incomplete view: %+v", view)
	}
	if view.Completed {
		t.Fatalf("fresh page must not be completed")
	}
	if kinds := rec.kinds(); len(kinds) == 0 || kinds[0] != telemetry.KindSessionOpen {
		t.Fatalf("session open not recorded, got %v", kinds)
	}
}

func TestOpenSessionUnknownPage(t *testing.T) {
	svc := newTestService(&captureRecorder{})
	if _, err := svc.OpenSession(context.Background(), "missing", false); !errors.Is(err, content.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAttemptSubmitFlow(t *testing.T) {
	rec := &captureRecorder{}
	svc := newTestService(rec)
	ctx := context.Background()

	view, _ := svc.OpenSession(ctx, "p1", false)

	pv, err := svc.Attempt(ctx, view.SessionID, "q1", json.RawMessage(`{"value":"4"}`))
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if pv.State != "attempting" || !pv.CanSubmit {
		t.Fatalf("want submittable attempting part, got %+v", pv)
	}

	pv, err = svc.Submit(ctx, view.SessionID, "q1")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if pv.State != "correct" || pv.Validation == nil || !pv.Validation.Correct {
		t.Fatalf("want correct verdict, got %+v", pv)
	}

	view, err = svc.GetSession(view.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !view.Completed {
		t.Fatalf("single correct part should complete the page")
	}

	want := []string{telemetry.KindSessionOpen, telemetry.KindAttempt, telemetry.KindSubmit}
	kinds := rec.kinds()
	if len(kinds) < len(want) {
		t.Fatalf("missing events: %v", kinds)
	}
	for i, k := range want {
		if kinds[i] != k {
			t.Fatalf("event %d = %q, want %q (all: %v)", i, kinds[i], k, kinds)
		}
	}
}

func TestSubmitValidatorFailureKeepsPartSubmittable(t *testing.T) {
	rec := &captureRecorder{}
	svc := newTestService(rec)
	svc.validator = &stubValidator{
		validateFn: func(context.Context, *content.Node, question.Choice) (validator.Result, error) {
			return validator.Result{}, errors.New("marker unreachable")
		},
	}
	ctx := context.Background()

	view, _ := svc.OpenSession(ctx, "p1", false)
	svc.Attempt(ctx, view.SessionID, "q1", json.RawMessage(`{"value":"4"}`))

	if _, err := svc.Submit(ctx, view.SessionID, "q1"); err == nil {
		t.Fatalf("validator failure should surface")
	}

	// The attempt survives and can be resubmitted.
	svc.validator = correctValidator()
	pv, err := svc.Submit(ctx, view.SessionID, "q1")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if pv.State != "correct" {
		t.Fatalf("resubmit should succeed, got %+v", pv)
	}
}

func TestRevealHint(t *testing.T) {
	rec := &captureRecorder{}
	svc := newTestService(rec)
	ctx := context.Background()

	view, _ := svc.OpenSession(ctx, "p1", false)
	pv, err := svc.RevealHint(view.SessionID, "q1", 0)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if pv.HintsRevealed != 1 {
		t.Fatalf("want 1 hint revealed, got %d", pv.HintsRevealed)
	}
	if _, err := svc.RevealHint(view.SessionID, "q1", 5); !errors.Is(err, question.ErrNoSuchHint) {
		t.Fatalf("want ErrNoSuchHint, got %v", err)
	}
}

func TestCloseSessionDiscardsState(t *testing.T) {
	rec := &captureRecorder{}
	svc := newTestService(rec)
	ctx := context.Background()

	view, _ := svc.OpenSession(ctx, "p1", false)
	if err := svc.CloseSession(view.SessionID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.GetSession(view.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("closed session must be gone, got %v", err)
	}
	if err := svc.CloseSession(view.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("double close: want ErrSessionNotFound, got %v", err)
	}

	kinds := rec.kinds()
	if kinds[len(kinds)-1] != telemetry.KindSessionClose {
		t.Fatalf("session close not recorded, got %v", kinds)
	}
}

func TestAttemptOnUnknownSession(t *testing.T) {
	svc := newTestService(&captureRecorder{})
	_, err := svc.Attempt(context.Background(), "ghost", "q1", json.RawMessage(`{"value":"4"}`))
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("want ErrSessionNotFound, got %v", err)
	}
}

func TestGetPageDoesNotLeaveSessionState(t *testing.T) {
	svc := newTestService(&captureRecorder{})

	view, err := svc.GetPage(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get page: %v", err)
	}
	if view.SessionID != "" {
		t.Fatalf("preview render must not mint a session")
	}
	if view.Page == nil {
		t.Fatalf("preview must render the page")
	}

	svc.mu.Lock()
	open := len(svc.sessions)
	svc.mu.Unlock()
	if open != 0 {
		t.Fatalf("preview must not leave sessions behind, got %d", open)
	}
}

func TestPutAndListPages(t *testing.T) {
	var gotPut string
	store := &stubStore{
		getFn: func(context.Context, string) (*content.Node, error) { return nil, content.ErrNotFound },
		putFn: func(_ context.Context, pageID string, raw json.RawMessage) error {
			gotPut = pageID
			if !json.Valid(raw) {
				return errors.New("invalid document")
			}
			return nil
		},
		listFn: func(_ context.Context, since time.Time, limit int) ([]string, error) {
			if !since.IsZero() || limit != 0 {
				return nil, errors.New("unexpected filter")
			}
			return []string{"p1", "p2"}, nil
		},
	}
	svc := NewService(store, correctValidator(), &captureRecorder{}, "/assets")

	if err := svc.PutPage(context.Background(), "p1", json.RawMessage(`{"type":"page"}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if gotPut != "p1" {
		t.Fatalf("put routed to %q", gotPut)
	}

	ids, err := svc.ListPages(context.Background())
	if err != nil || len(ids) != 2 {
		t.Fatalf("list: %v %v", ids, err)
	}
}
