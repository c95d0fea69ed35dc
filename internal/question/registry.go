package question

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"learnpage/internal/content"
)

var (
	ErrPartNotRegistered = errors.New("question part not registered")
	ErrPartLocked        = errors.New("question part locked")
	ErrCannotSubmit      = errors.New("question part has no submittable attempt")
	ErrNoSuchHint        = errors.New("hint index out of range")
)

// LifecycleState is the derived state of a question part.
type LifecycleState string

const (
	StateUnregistered LifecycleState = "unregistered"
	StateAttempting   LifecycleState = "attempting"
	StateCorrect      LifecycleState = "correct"
	StateIncorrect    LifecycleState = "incorrect"
	StateLocked       LifecycleState = "locked"
)

// Registry owns every question part's state for one page view. It is the
// single shared mutable resource on a page: widgets read and mutate only
// through its operations and never hold copies that could diverge. All
// operations are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	now   func() time.Time
	parts map[string]*partEntry
	order []string
}

type partEntry struct {
	doc            *content.Node
	currentAttempt *Choice
	attemptGen     int
	frontEndValid  bool
	submitting     bool
	validation     *ValidationResponse
	bestAttempt    *BestAttempt
	lockedUntil    *time.Time
	hintsRevealed  int
}

// Snapshot is a read-only copy of one part's state.
type Snapshot struct {
	ID             string
	State          LifecycleState
	CurrentAttempt *Choice
	CanSubmit      bool
	Validation     *ValidationResponse
	BestAttempt    *BestAttempt
	LockedUntil    *time.Time
	HintsRevealed  int
}

// Submission pairs a part id with the attempt generation it was taken from,
// so a validation response arriving after the attempt changed (or after
// deregistration) is discarded rather than applied.
type Submission struct {
	ID     string
	Gen    int
	Choice Choice
}

func NewRegistry() *Registry {
	return &Registry{
		now:   time.Now,
		parts: make(map[string]*partEntry),
	}
}

// Register opens a part's lifecycle, keyed by the document's id. A best
// attempt carried on the document seeds the current attempt and validation
// for read-only review display. Registering an id that is already open
// resets it to this initial state (a remount).
func (r *Registry) Register(doc *content.Node) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("register: document has no id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &partEntry{doc: doc}
	if best := decodeBestAttempt(doc.BestAttempt); best != nil {
		e.bestAttempt = best
		e.currentAttempt = best.Answer
		e.validation = &ValidationResponse{Correct: best.Correct}
	}
	if _, open := r.parts[doc.ID]; !open {
		r.order = append(r.order, doc.ID)
	}
	r.parts[doc.ID] = e
	return nil
}

// Deregister closes a part's lifecycle. It is a hard barrier: no mutation
// for the id is accepted afterwards, and in-flight validation responses are
// discarded by CompleteSubmit. Closing an id that is not open is a
// programming error.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.parts[id]; !ok {
		return fmt.Errorf("deregister %q: %w", id, ErrPartNotRegistered)
	}
	delete(r.parts, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetCurrentAttempt records an in-progress answer. An attempt on an id with
// no open registration is a programming error (a widget mounted without
// registering) and fails fast. Editing always clears the previous verdict;
// that policy is applied uniformly across widget types.
func (r *Registry) SetCurrentAttempt(id string, c Choice) error {
	return r.SetGuardedAttempt(id, c, true)
}

// SetGuardedAttempt is SetCurrentAttempt for widgets with a client-side
// guard (length caps, word limits): the attempt is stored but cannot be
// submitted until the guard passes.
func (r *Registry) SetGuardedAttempt(id string, c Choice, frontEndValid bool) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("attempt for %q: %w", id, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.parts[id]
	if !ok {
		return fmt.Errorf("attempt for %q: %w", id, ErrPartNotRegistered)
	}
	attempt := c
	e.currentAttempt = &attempt
	e.attemptGen++
	e.frontEndValid = frontEndValid
	e.submitting = false
	e.validation = nil
	return nil
}

// BeginSubmit snapshots the current attempt for validation. Until the
// submission completes or fails the part cannot submit again.
func (r *Registry) BeginSubmit(id string) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.parts[id]
	if !ok {
		return Submission{}, fmt.Errorf("submit %q: %w", id, ErrPartNotRegistered)
	}
	if until := e.lockedUntil; until != nil && r.now().Before(*until) {
		return Submission{}, fmt.Errorf("submit %q: %w until %s", id, ErrPartLocked, until.Format(time.RFC3339))
	}
	if !r.canSubmitLocked(e) {
		return Submission{}, fmt.Errorf("submit %q: %w", id, ErrCannotSubmit)
	}
	e.submitting = true
	return Submission{ID: id, Gen: e.attemptGen, Choice: *e.currentAttempt}, nil
}

// CompleteSubmit applies a validation response. The response is discarded,
// and false returned, when the part has been deregistered or the attempt
// has been superseded since BeginSubmit: last-submitted-attempt wins. A
// throttle response transitions the part to Locked instead of recording a
// verdict.
func (r *Registry) CompleteSubmit(sub Submission, resp *ValidationResponse) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.parts[sub.ID]
	if !ok || e.attemptGen != sub.Gen {
		return false
	}
	e.submitting = false

	if resp.LockedUntil != nil {
		until := *resp.LockedUntil
		e.lockedUntil = &until
		return true
	}

	e.lockedUntil = nil
	e.validation = resp
	if e.bestAttempt == nil || !e.bestAttempt.Correct {
		attempt := sub.Choice
		e.bestAttempt = &BestAttempt{Correct: resp.Correct, Answer: &attempt}
	}
	return true
}

// FailSubmit restores submittability after a transport failure, leaving the
// last good state on screen; the user retries by submitting again.
func (r *Registry) FailSubmit(sub Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.parts[sub.ID]; ok && e.attemptGen == sub.Gen {
		e.submitting = false
	}
}

// RevealHint marks hints up to and including index as revealed and returns
// the revealed count. Reveals are monotonic.
func (r *Registry) RevealHint(id string, index int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.parts[id]
	if !ok {
		return 0, fmt.Errorf("hint for %q: %w", id, ErrPartNotRegistered)
	}
	if index < 0 || index >= len(e.doc.Hints) {
		return e.hintsRevealed, fmt.Errorf("hint %d for %q: %w", index, id, ErrNoSuchHint)
	}
	if index+1 > e.hintsRevealed {
		e.hintsRevealed = index + 1
	}
	return e.hintsRevealed, nil
}

// Part returns a read-only snapshot of one part.
func (r *Registry) Part(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.parts[id]
	if !ok {
		return Snapshot{ID: id, State: StateUnregistered}, false
	}
	return r.snapshotLocked(id, e), true
}

// Parts returns snapshots in registration order.
func (r *Registry) Parts() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.parts[id]; ok {
			out = append(out, r.snapshotLocked(id, e))
		}
	}
	return out
}

// PageCompleted reports whether every open part has a correct verdict.
func (r *Registry) PageCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.parts) == 0 {
		return false
	}
	for _, e := range r.parts {
		if e.validation == nil || !e.validation.Correct {
			return false
		}
	}
	return true
}

func (r *Registry) snapshotLocked(id string, e *partEntry) Snapshot {
	return Snapshot{
		ID:             id,
		State:          r.stateLocked(e),
		CurrentAttempt: e.currentAttempt,
		CanSubmit:      r.canSubmitLocked(e),
		Validation:     e.validation,
		BestAttempt:    e.bestAttempt,
		LockedUntil:    e.lockedUntil,
		HintsRevealed:  e.hintsRevealed,
	}
}

func (r *Registry) stateLocked(e *partEntry) LifecycleState {
	if e.lockedUntil != nil && r.now().Before(*e.lockedUntil) {
		return StateLocked
	}
	if e.validation != nil {
		if e.validation.Correct {
			return StateCorrect
		}
		return StateIncorrect
	}
	return StateAttempting
}

// canSubmitLocked derives submittability: an attempt exists, passed its
// client-side guard, is not mid-submission, not throttled, and not already
// validated (a new edit clears the verdict and reopens submission).
func (r *Registry) canSubmitLocked(e *partEntry) bool {
	if e.currentAttempt == nil || !e.frontEndValid || e.submitting {
		return false
	}
	if e.lockedUntil != nil && r.now().Before(*e.lockedUntil) {
		return false
	}
	return e.validation == nil
}
