package question

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"learnpage/internal/content"
)

// liveDebounce is how long a stream of live-typing updates must go quiet
// before the latest one is recorded as the current attempt.
const liveDebounce = 250 * time.Millisecond

// liveWidget is implemented by widgets whose input arrives as a typing
// stream. ScheduleLive reports whether it consumed the payload; payloads not
// flagged live fall through to the normal Normalize path.
type liveWidget interface {
	ScheduleLive(reg *Registry, id string, payload json.RawMessage) (bool, error)
}

// Debouncer coalesces a burst of calls into one, firing the last function
// passed to Trigger once the burst has been quiet for the configured delay.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Cancel drops any pending trigger. Safe to call with nothing pending.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

type entryCheck struct {
	re      *regexp.Regexp
	message string
}

// entryChecks flag common maths-entry mistakes before the expression ever
// reaches the marker. Order matters: only the first match is reported.
var entryChecks = []entryCheck{
	{regexp.MustCompile(`\\[a-zA-Z]+|\$`), "LaTeX syntax is not supported; type expressions in plain text"},
	{regexp.MustCompile(`\|.+?\|`), "use abs() instead of vertical bars for absolute values"},
	{regexp.MustCompile(`[<>]=?[^<>]*[<>]=?`), "double inequalities are not supported; enter each inequality separately"},
	{regexp.MustCompile(`(sin|cos|tan|sec|csc|cosec|cot)\s*\^\s*\(?\s*-\s*1\s*\)?`), "write inverse trig functions as arcsin, arccos or arctan"},
	{regexp.MustCompile(`\d+\.\d*\.|\.\d*\.`), "badly formed decimal number"},
	{regexp.MustCompile(`\d\s*(sin|cos|tan|sec|csc|cosec|cot|log|ln|sqrt|abs|arcsin|arccos|arctan)\b`), "missing multiplication before a function; write 2*sin(x) rather than 2sin(x)"},
	{regexp.MustCompile(`[#@!"£%&;?\\]`), "unrecognized characters in expression"},
}

// CheckEntry inspects a plain-text maths expression and returns a hint about
// the first problem found, or "" when nothing looks wrong. These are typing
// aids only and never block submission of the underlying formula.
func CheckEntry(text string) string {
	for _, c := range entryChecks {
		if c.re.MatchString(text) {
			return c.message
		}
	}
	if msg := checkBrackets(text); msg != "" {
		return msg
	}
	return ""
}

func checkBrackets(text string) string {
	depth := 0
	for _, r := range text {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return "unbalanced brackets: too many closing brackets"
			}
		}
	}
	if depth > 0 {
		return "unbalanced brackets: a bracket is never closed"
	}
	return ""
}

// symbolicWidget handles maths, boolean logic and chemistry entry. The three
// types share the entry surface; AvailableSymbols and the marker behaviour
// are what differ between them.
type symbolicWidget struct {
	doc *content.Node
	deb *Debouncer
}

func newSymbolicWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &symbolicWidget{doc: doc, deb: NewDebouncer(liveDebounce)}
}

type symbolicPayload struct {
	Text   string `json:"text"`
	Python string `json:"python"`
	Live   bool   `json:"live"`
}

func (w *symbolicWidget) ScheduleLive(reg *Registry, id string, payload json.RawMessage) (bool, error) {
	var p symbolicPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return false, fmt.Errorf("symbolic entry: %w", ErrBadPayload)
	}
	if !p.Live {
		return false, nil
	}
	choice, valid := w.toChoice(p)
	w.deb.Trigger(func() {
		// The part may have been deregistered while the burst settled.
		_ = reg.SetGuardedAttempt(id, *choice, valid)
	})
	return true, nil
}

func (w *symbolicWidget) Normalize(_ *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p symbolicPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("symbolic entry: %w", ErrBadPayload)
	}
	choice, valid := w.toChoice(p)
	return choice, valid, nil
}

// toChoice serializes the entry to a formula choice. Entry diagnostics are
// advisory and shown alongside the widget; only a blank entry fails the
// client-side guard.
func (w *symbolicWidget) toChoice(p symbolicPayload) (*Choice, bool) {
	c := &Choice{Type: Formula, Value: p.Text, PythonExpression: p.Python}
	return c, strings.TrimSpace(p.Text) != ""
}

func (w *symbolicWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	body := rc(bodyNode(w.doc))
	entry := &content.Widget{Kind: "symbolicEntry", NodeID: w.doc.ID}
	if len(w.doc.AvailableSymbols) > 0 {
		entry.Subtitle = strings.Join(w.doc.AvailableSymbols, ", ")
	}
	if snap.CurrentAttempt != nil {
		entry.Text = snap.CurrentAttempt.Value
		entry.Error = CheckEntry(snap.CurrentAttempt.Value)
	}
	return &content.Widget{Kind: "symbolicQuestion", NodeID: w.doc.ID, Children: []*content.Widget{body, entry}}
}
