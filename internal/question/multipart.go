package question

import (
	"encoding/json"
	"fmt"

	"learnpage/internal/content"
)

// multiPartWidget aggregates its child question parts into one registered
// part. Sub-parts keep their own widget instances for payload translation
// but never register with the lifecycle registry themselves; the container's
// choice is the merged set of sub-part choices and submission is atomic.
type multiPartWidget struct {
	doc  *content.Node
	subs map[string]PartWidget
	ids  []string
}

func newMultiPartWidget(doc *content.Node, snap Snapshot) PartWidget {
	w := &multiPartWidget{doc: doc, subs: make(map[string]PartWidget)}
	for i := range doc.Children {
		child := &doc.Children[i]
		factory, ok := widgetTable[child.Type]
		if !ok || child.Type == "multiPartQuestion" {
			continue
		}
		w.subs[child.ID] = factory(child, subSnapshot(snap, child.ID))
		w.ids = append(w.ids, child.ID)
	}
	return w
}

// subSnapshot projects the container snapshot down to one sub-part so that
// stateful sub-widgets can restore from it.
func subSnapshot(snap Snapshot, partID string) Snapshot {
	sub := Snapshot{}
	if snap.CurrentAttempt == nil || snap.CurrentAttempt.Type != MultiPartChoice {
		return sub
	}
	for i := range snap.CurrentAttempt.Parts {
		if snap.CurrentAttempt.Parts[i].PartID == partID {
			sub.CurrentAttempt = &snap.CurrentAttempt.Parts[i].Choice
		}
	}
	return sub
}

type multiPartPayload struct {
	PartID  string          `json:"partId"`
	Payload json.RawMessage `json:"payload"`
}

func (w *multiPartWidget) Normalize(prev *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p multiPartPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("multi-part update: %w", ErrBadPayload)
	}
	sub, ok := w.subs[p.PartID]
	if !ok {
		return nil, false, fmt.Errorf("sub-part %q: %w", p.PartID, ErrNoSuchSubPart)
	}

	var prevPart *Choice
	if s := subSnapshot(Snapshot{CurrentAttempt: prev}, p.PartID); s.CurrentAttempt != nil {
		prevPart = s.CurrentAttempt
	}
	partChoice, valid, err := sub.Normalize(prevPart, p.Payload)
	if err != nil {
		return nil, false, err
	}
	if partChoice == nil {
		return nil, false, nil
	}

	merged := MergePart(prev, PartChoice{PartID: p.PartID, Choice: *partChoice})
	return &merged, valid && w.allPartsAnswered(&merged), nil
}

// allPartsAnswered gates the container's client-side validity: every
// sub-part must carry a choice before the whole can be submitted.
func (w *multiPartWidget) allPartsAnswered(c *Choice) bool {
	answered := map[string]bool{}
	for _, pc := range c.Parts {
		answered[pc.PartID] = true
	}
	for _, id := range w.ids {
		if !answered[id] {
			return false
		}
	}
	return true
}

func (w *multiPartWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	// The container's children are the sub-questions; only prose children
	// belong in the shared body.
	bn := bodyNode(w.doc)
	var prose []content.Node
	for _, child := range bn.Children {
		if !IsQuestionType(child.Type) {
			prose = append(prose, child)
		}
	}
	bn.Children = prose
	body := rc(bn)
	out := &content.Widget{Kind: "multiPart", NodeID: w.doc.ID, Children: []*content.Widget{body}}
	for _, id := range w.ids {
		sub := w.subs[id]
		out.Children = append(out.Children, sub.Render(rc, subSnapshot(snap, id)))
	}
	return out
}
