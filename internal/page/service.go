package page

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"learnpage/internal/content"
	"learnpage/internal/question"
	"learnpage/internal/telemetry"
	"learnpage/internal/validator"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidInput    = errors.New("invalid input")
)

// contentStore is the slice of the content store the page service uses.
type contentStore interface {
	Get(ctx context.Context, pageID string) (*content.Node, error)
	Put(ctx context.Context, pageID string, raw json.RawMessage) error
	ListIDs(ctx context.Context, since time.Time, limit int) ([]string, error)
}

type answerValidator interface {
	Validate(ctx context.Context, doc *content.Node, c question.Choice) (validator.Result, error)
}

type eventRecorder interface {
	Record(ev telemetry.Event)
}

// Service owns page-view sessions. A session is one mounted page: its
// decoded document, its question set and its renderer. Sessions are held in
// memory; closing one discards all transient state, keeping only what was
// persisted through telemetry.
type Service struct {
	store     contentStore
	validator answerValidator
	recorder  eventRecorder
	assetBase string

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	id       string
	pageID   string
	doc      *content.Node
	set      *question.PageSet
	renderer *content.Renderer
	quizMode bool
	openedAt time.Time

	// Serialises attempt/submit/render for this session.
	mu sync.Mutex
}

func NewService(store contentStore, v answerValidator, rec eventRecorder, assetBase string) *Service {
	return &Service{
		store:     store,
		validator: v,
		recorder:  rec,
		assetBase: assetBase,
		sessions:  make(map[string]*session),
	}
}

// View is a rendered page state returned to the client.
type View struct {
	SessionID string                 `json:"session_id"`
	PageID    string                 `json:"page_id"`
	Page      *content.Widget        `json:"page"`
	Errors    []content.ContentError `json:"errors,omitempty"`
	Completed bool                   `json:"completed"`
}

// PartView is the state of a single question part.
type PartView struct {
	ID            string                       `json:"id"`
	State         string                       `json:"state"`
	CanSubmit     bool                         `json:"can_submit"`
	HintsRevealed int                          `json:"hints_revealed"`
	Validation    *question.ValidationResponse `json:"validation,omitempty"`
}

// GetPage renders a page without question state, for preview and listing.
func (s *Service) GetPage(ctx context.Context, pageID string) (*View, error) {
	doc, err := s.store.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}
	set := question.NewPageSet()
	if err := set.RegisterTree(doc); err != nil {
		return nil, fmt.Errorf("register page %q: %w", pageID, err)
	}
	defer func() { _ = set.Close() }()

	r := content.NewRenderer(set, s.assetBase)
	w, cerrs := r.Render(doc)
	return &View{PageID: pageID, Page: w, Errors: cerrs}, nil
}

// OpenSession mounts a page: decodes the document, registers every question
// part and returns the first rendered view.
func (s *Service) OpenSession(ctx context.Context, pageID string, quizMode bool) (*View, error) {
	doc, err := s.store.Get(ctx, pageID)
	if err != nil {
		return nil, err
	}

	set := question.NewPageSet()
	if err := set.RegisterTree(doc); err != nil {
		return nil, fmt.Errorf("register page %q: %w", pageID, err)
	}

	r := content.NewRenderer(set, s.assetBase)
	if quizMode {
		r = r.QuizMode()
	}

	sess := &session{
		id:       uuid.NewString(),
		pageID:   pageID,
		doc:      doc,
		set:      set,
		renderer: r,
		quizMode: quizMode,
		openedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.recorder.Record(telemetry.Event{
		SessionID: sess.id,
		PageID:    pageID,
		Kind:      telemetry.KindSessionOpen,
	})
	return s.renderSession(sess), nil
}

// GetSession re-renders a session's current state.
func (s *Service) GetSession(sessionID string) (*View, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return s.renderSession(sess), nil
}

// CloseSession unmounts the page. Every part is deregistered, so validation
// responses still in flight are discarded on arrival.
func (s *Service) CloseSession(sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("close %q: %w", sessionID, ErrSessionNotFound)
	}

	err := sess.set.Close()
	s.recorder.Record(telemetry.Event{
		SessionID: sess.id,
		PageID:    sess.pageID,
		Kind:      telemetry.KindSessionClose,
	})
	return err
}

// Attempt applies a raw widget payload to a part's current attempt. Payloads
// that resolve to a no-op record nothing and change nothing.
func (s *Service) Attempt(ctx context.Context, sessionID, partID string, payload json.RawMessage) (*PartView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.set.Attempt(partID, payload); err != nil {
		return nil, err
	}
	s.recorder.Record(telemetry.Event{
		SessionID: sess.id,
		PageID:    sess.pageID,
		PartID:    partID,
		Kind:      telemetry.KindAttempt,
	})
	return s.partView(sess, partID)
}

// Submit sends the part's current attempt to the validator and applies the
// verdict. A verdict for an attempt that was edited, resubmitted or
// deregistered while marking ran is discarded.
func (s *Service) Submit(ctx context.Context, sessionID, partID string) (*PartView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sub, err := sess.set.Registry.BeginSubmit(partID)
	if err != nil {
		return nil, err
	}
	doc, ok := sess.set.Doc(partID)
	if !ok {
		sess.set.Registry.FailSubmit(sub)
		return nil, fmt.Errorf("submit %q: %w", partID, question.ErrPartNotRegistered)
	}

	res, err := s.validator.Validate(ctx, doc, sub.Choice)
	if err != nil {
		sess.set.Registry.FailSubmit(sub)
		return nil, fmt.Errorf("validate %q: %w", partID, err)
	}
	applied := sess.set.Registry.CompleteSubmit(sub, &res.Response)

	detail, _ := json.Marshal(map[string]any{
		"correct": res.Response.Correct,
		"source":  res.Source,
		"applied": applied,
	})
	s.recorder.Record(telemetry.Event{
		SessionID: sess.id,
		PageID:    sess.pageID,
		PartID:    partID,
		Kind:      telemetry.KindSubmit,
		Detail:    detail,
	})
	return s.partView(sess, partID)
}

// RevealHint reveals hints up to and including index for a part.
func (s *Service) RevealHint(sessionID, partID string, index int) (*PartView, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	revealed, err := sess.set.Registry.RevealHint(partID, index)
	if err != nil {
		return nil, err
	}
	detail, _ := json.Marshal(map[string]int{"revealed": revealed})
	s.recorder.Record(telemetry.Event{
		SessionID: sess.id,
		PageID:    sess.pageID,
		PartID:    partID,
		Kind:      telemetry.KindHint,
		Detail:    detail,
	})
	return s.partView(sess, partID)
}

// PutPage stores a content document, replacing any previous version.
func (s *Service) PutPage(ctx context.Context, pageID string, raw json.RawMessage) error {
	return s.store.Put(ctx, pageID, raw)
}

// ListPages returns the ids of recently updated content documents.
func (s *Service) ListPages(ctx context.Context) ([]string, error) {
	return s.store.ListIDs(ctx, time.Time{}, 0)
}

func (s *Service) session(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return sess, nil
}

func (s *Service) renderSession(sess *session) *View {
	w, cerrs := sess.renderer.Render(sess.doc)
	for _, ce := range cerrs {
		detail, _ := json.Marshal(ce)
		s.recorder.Record(telemetry.Event{
			SessionID: sess.id,
			PageID:    sess.pageID,
			PartID:    ce.NodeID,
			Kind:      telemetry.KindContentError,
			Detail:    detail,
		})
	}
	return &View{
		SessionID: sess.id,
		PageID:    sess.pageID,
		Page:      w,
		Errors:    cerrs,
		Completed: sess.set.Registry.PageCompleted(),
	}
}

func (s *Service) partView(sess *session, partID string) (*PartView, error) {
	snap, ok := sess.set.Registry.Part(partID)
	if !ok {
		return nil, fmt.Errorf("part %q: %w", partID, question.ErrPartNotRegistered)
	}
	return &PartView{
		ID:            snap.ID,
		State:         string(snap.State),
		CanSubmit:     snap.CanSubmit,
		HintsRevealed: snap.HintsRevealed,
		Validation:    snap.Validation,
	}, nil
}
