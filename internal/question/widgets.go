package question

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"learnpage/internal/content"
)

var (
	ErrUnknownItem    = errors.New("choice references an unknown item")
	ErrBadPayload     = errors.New("malformed attempt payload")
	ErrNoSuchSubPart  = errors.New("multi-part update names an unknown sub-part")
	ErrNotQuestionDoc = errors.New("node is not a question document")
)

// Client-side entry guards. These are UX rails only; the marker remains the
// validation authority.
const (
	singleLineCap = 75
	multiLineCap  = 250
	freeTextWords = 20
	freeTextChars = 200
)

// PartWidget translates raw UI payloads for one question part into the
// normalized Choice shape and renders the part's widget subtree from a
// registry snapshot. Instances live for one page-view session.
//
// Normalize may return a nil choice to signal that the payload resolved to a
// no-op; no attempt must be recorded in that case. The bool reports whether
// the choice passes the widget's client-side guard.
type PartWidget interface {
	Normalize(prev *Choice, payload json.RawMessage) (*Choice, bool, error)
	Render(rc content.RenderChild, snap Snapshot) *content.Widget
}

type widgetFactory func(doc *content.Node, snap Snapshot) PartWidget

// widgetTable maps question node types to widget implementations. Unknown
// question-ish types never reach this table: membership here is what makes a
// type a question type.
var widgetTable = map[string]widgetFactory{
	"multiChoiceQuestion":       newMultiChoiceWidget,
	"itemQuestion":              newItemWidget,
	"stringMatchQuestion":       newStringMatchWidget,
	"regexMatchQuestion":        newStringMatchWidget,
	"freeTextQuestion":          newFreeTextWidget,
	"symbolicQuestion":          newSymbolicWidget,
	"symbolicLogicQuestion":     newSymbolicWidget,
	"symbolicChemistryQuestion": newSymbolicWidget,
	"parsonsQuestion":           newParsonsWidget,
	"reorderQuestion":           newReorderWidget,
	"clozeQuestion":             newClozeWidget,
	"graphSketcherQuestion":     newGraphWidget,
}

// newMultiPartWidget resolves sub-part factories through widgetTable, so its
// own entry cannot appear in the literal above.
func init() {
	widgetTable["multiPartQuestion"] = newMultiPartWidget
}

// IsQuestionType reports whether a content node type renders as a question.
func IsQuestionType(t string) bool {
	_, ok := widgetTable[t]
	return ok
}

// PageSet is the page-view-owned question collection: the registry plus the
// widget instance for each registered part. It implements the content
// dispatcher's QuestionRenderer.
type PageSet struct {
	Registry *Registry

	mu      sync.Mutex
	widgets map[string]PartWidget
	docs    map[string]*content.Node
}

func NewPageSet() *PageSet {
	return &PageSet{
		Registry: NewRegistry(),
		widgets:  make(map[string]PartWidget),
		docs:     make(map[string]*content.Node),
	}
}

// RegisterTree walks a document and opens the lifecycle of every question
// part in it. Question nodes are not descended into: a question owns its
// subtree (multi-part containers register as a single part and aggregate
// their sub-parts themselves).
func (p *PageSet) RegisterTree(doc *content.Node) error {
	var regErr error
	content.Walk(doc, func(n *content.Node) bool {
		if !IsQuestionType(n.Type) {
			return true
		}
		if err := p.registerPart(n); regErr == nil {
			regErr = err
		}
		return false
	})
	return regErr
}

func (p *PageSet) registerPart(n *content.Node) error {
	if err := p.Registry.Register(n); err != nil {
		return err
	}
	snap, _ := p.Registry.Part(n.ID)
	p.mu.Lock()
	p.widgets[n.ID] = widgetTable[n.Type](n, snap)
	p.docs[n.ID] = n
	p.mu.Unlock()
	return nil
}

// Doc returns the authored document for a registered part.
func (p *PageSet) Doc(id string) (*content.Node, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	d, ok := p.docs[id]
	return d, ok
}

// Close deregisters every part. After Close no mutation for these ids is
// accepted and in-flight validation responses are discarded.
func (p *PageSet) Close() error {
	p.mu.Lock()
	ids := make([]string, 0, len(p.widgets))
	for id := range p.widgets {
		ids = append(ids, id)
	}
	p.widgets = make(map[string]PartWidget)
	p.docs = make(map[string]*content.Node)
	p.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := p.Registry.Deregister(id); firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Attempt feeds a raw UI payload through the part's widget into the
// registry. Payloads resolving to a no-op record nothing.
func (p *PageSet) Attempt(id string, payload json.RawMessage) error {
	p.mu.Lock()
	w, ok := p.widgets[id]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("attempt for %q: %w", id, ErrPartNotRegistered)
	}

	if lw, isLive := w.(liveWidget); isLive {
		if scheduled, err := lw.ScheduleLive(p.Registry, id, payload); scheduled || err != nil {
			return err
		}
	}

	snap, _ := p.Registry.Part(id)
	choice, valid, err := w.Normalize(snap.CurrentAttempt, payload)
	if err != nil {
		return err
	}
	if choice == nil {
		return nil
	}
	return p.Registry.SetGuardedAttempt(id, *choice, valid)
}

// IsQuestionType implements content.QuestionRenderer.
func (p *PageSet) IsQuestionType(t string) bool { return IsQuestionType(t) }

// RenderQuestion implements content.QuestionRenderer: the part's widget
// renders its body, then the shared question frame adds hints, validation
// feedback and the lock notice around it.
func (p *PageSet) RenderQuestion(n *content.Node, rc content.RenderChild, quizMode bool) (*content.Widget, error) {
	p.mu.Lock()
	w, ok := p.widgets[n.ID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("render question %q: %w", n.ID, ErrPartNotRegistered)
	}
	snap, _ := p.Registry.Part(n.ID)
	body := w.Render(rc, snap)
	return questionFrame(n, body, snap, rc, quizMode), nil
}

// multiChoiceWidget also serves as the fallback for unknown question types.
type multiChoiceWidget struct {
	doc *content.Node
}

func newMultiChoiceWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &multiChoiceWidget{doc: doc}
}

type multiChoicePayload struct {
	Index *int `json:"index"`
}

func (w *multiChoiceWidget) Normalize(_ *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p multiChoicePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.Index == nil {
		return nil, false, fmt.Errorf("multi-choice: %w", ErrBadPayload)
	}
	if *p.Index < 0 || *p.Index >= len(w.doc.Choices) {
		return nil, false, fmt.Errorf("multi-choice option %d: %w", *p.Index, ErrUnknownItem)
	}
	return &Choice{Type: StringChoice, Value: w.doc.Choices[*p.Index].Value}, true, nil
}

func (w *multiChoiceWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	body := rc(bodyNode(w.doc))
	options := &content.Widget{Kind: "choiceOptions", NodeID: w.doc.ID}
	for i := range w.doc.Choices {
		opt := rc(&w.doc.Choices[i])
		wrapped := &content.Widget{Kind: "choiceOption", NodeID: w.doc.Choices[i].ID, Children: []*content.Widget{opt}}
		if snap.CurrentAttempt != nil && snap.CurrentAttempt.Value == w.doc.Choices[i].Value {
			wrapped.Class = "selected"
		}
		options.Children = append(options.Children, wrapped)
	}
	return &content.Widget{Kind: "multiChoice", NodeID: w.doc.ID, Children: []*content.Widget{body, options}}
}

type itemWidget struct {
	doc *content.Node
}

func newItemWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &itemWidget{doc: doc}
}

type itemPayload struct {
	ItemIDs []string `json:"itemIds"`
}

func (w *itemWidget) Normalize(_ *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p itemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("item choice: %w", ErrBadPayload)
	}
	items, err := itemsByID(w.doc.Items, p.ItemIDs)
	if err != nil {
		return nil, false, err
	}
	return &Choice{Type: ItemChoice, Items: items}, true, nil
}

func (w *itemWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	body := rc(bodyNode(w.doc))
	selected := map[string]bool{}
	if snap.CurrentAttempt != nil {
		for _, it := range snap.CurrentAttempt.Items {
			selected[it.ID] = true
		}
	}
	list := &content.Widget{Kind: "itemOptions"}
	for _, it := range w.doc.Items {
		iw := itemWidgetNode(it)
		if selected[it.ID] {
			iw.Class = "selected"
		}
		list.Children = append(list.Children, iw)
	}
	return &content.Widget{Kind: "itemQuestion", NodeID: w.doc.ID, Children: []*content.Widget{body, list}}
}

// stringMatchWidget covers both exact and regex matching: the engine treats
// them identically, only the marker differs.
type stringMatchWidget struct {
	doc *content.Node
}

func newStringMatchWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &stringMatchWidget{doc: doc}
}

type valuePayload struct {
	Value string `json:"value"`
}

func (w *stringMatchWidget) Normalize(_ *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p valuePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("string entry: %w", ErrBadPayload)
	}
	cap := singleLineCap
	if w.doc.MultiLineEntry {
		cap = multiLineCap
	}
	ok := utf8.RuneCountInString(p.Value) <= cap
	return &Choice{Type: StringChoice, Value: p.Value}, ok, nil
}

func (w *stringMatchWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	body := rc(bodyNode(w.doc))
	entry := &content.Widget{Kind: "stringEntry", NodeID: w.doc.ID}
	if w.doc.MultiLineEntry {
		entry.Class = "multi-line"
	}
	if snap.CurrentAttempt != nil {
		entry.Text = snap.CurrentAttempt.Value
	}
	return &content.Widget{Kind: "stringMatch", NodeID: w.doc.ID, Children: []*content.Widget{body, entry}}
}

type freeTextWidget struct {
	doc *content.Node
}

func newFreeTextWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &freeTextWidget{doc: doc}
}

// freeTextWithinLimits applies the soft word and character limits. Words are
// whitespace-delimited tokens.
func freeTextWithinLimits(answer string) bool {
	words := len(strings.Fields(answer))
	chars := utf8.RuneCountInString(answer)
	return words <= freeTextWords && chars <= freeTextChars
}

func (w *freeTextWidget) Normalize(_ *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p valuePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("free text: %w", ErrBadPayload)
	}
	return &Choice{Type: StringChoice, Value: p.Value}, freeTextWithinLimits(p.Value), nil
}

func (w *freeTextWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	body := rc(bodyNode(w.doc))
	entry := &content.Widget{Kind: "freeTextEntry", NodeID: w.doc.ID}
	if snap.CurrentAttempt != nil {
		entry.Text = snap.CurrentAttempt.Value
		if !freeTextWithinLimits(snap.CurrentAttempt.Value) {
			entry.Error = fmt.Sprintf("answers are limited to %d words and %d characters", freeTextWords, freeTextChars)
		}
	}
	return &content.Widget{Kind: "freeText", NodeID: w.doc.ID, Children: []*content.Widget{body, entry}}
}

// graphWidget passes the sketcher canvas state through verbatim: the blob is
// opaque to the engine and shared between the inline preview and the full
// editor modal.
type graphWidget struct {
	doc *content.Node
}

func newGraphWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &graphWidget{doc: doc}
}

type graphPayload struct {
	State json.RawMessage `json:"state"`
}

func (w *graphWidget) Normalize(_ *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p graphPayload
	if err := json.Unmarshal(payload, &p); err != nil || len(p.State) == 0 {
		return nil, false, fmt.Errorf("graph state: %w", ErrBadPayload)
	}
	if !json.Valid(p.State) {
		return nil, false, fmt.Errorf("graph state: %w", ErrBadPayload)
	}
	return &Choice{Type: GraphChoice, Value: string(p.State)}, true, nil
}

func (w *graphWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	body := rc(bodyNode(w.doc))
	canvas := &content.Widget{Kind: "graphSketcher", NodeID: w.doc.ID}
	if snap.CurrentAttempt != nil {
		canvas.Text = snap.CurrentAttempt.Value
	}
	return &content.Widget{Kind: "graphSketcherQuestion", NodeID: w.doc.ID, Children: []*content.Widget{body, canvas}}
}

// bodyNode strips the question-only fields so the question body renders as
// plain content without re-dispatching as a question.
func bodyNode(doc *content.Node) *content.Node {
	body := *doc
	body.Type = ""
	body.Hints = nil
	body.Choices = nil
	body.Items = nil
	body.BestAttempt = nil
	return &body
}

func itemsByID(source []content.Item, ids []string) ([]content.Item, error) {
	byID := make(map[string]content.Item, len(source))
	for _, it := range source {
		byID[it.ID] = it
	}
	out := make([]content.Item, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		it, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("item %q: %w", id, ErrUnknownItem)
		}
		// An item can only be claimed once; a repeat would break the
		// available/chosen partition.
		if seen[id] {
			return nil, fmt.Errorf("item %q repeated: %w", id, ErrBadPayload)
		}
		seen[id] = true
		out = append(out, it)
	}
	return out, nil
}

func itemWidgetNode(it content.Item) *content.Widget {
	return &content.Widget{Kind: "item", NodeID: it.ID, Text: it.Value}
}
