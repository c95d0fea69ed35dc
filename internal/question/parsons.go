package question

import (
	"encoding/json"
	"fmt"

	"learnpage/internal/content"
)

// parsonsWidget arranges code fragments in order with per-line indentation.
// The available list is always derived, never stored: it is the question's
// items minus whatever the current attempt has claimed, in authored order.
type parsonsWidget struct {
	doc *content.Node
}

func newParsonsWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &parsonsWidget{doc: doc}
}

type parsonsPayload struct {
	Lines []struct {
		ItemID      string `json:"itemId"`
		Indentation int    `json:"indentation"`
	} `json:"lines"`
}

func (w *parsonsWidget) Normalize(prev *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p parsonsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("parsons arrangement: %w", ErrBadPayload)
	}
	ids := make([]string, len(p.Lines))
	for i, l := range p.Lines {
		ids[i] = l.ItemID
	}
	items, err := itemsByID(w.doc.Items, ids)
	if err != nil {
		return nil, false, err
	}
	for i := range items {
		ind := p.Lines[i].Indentation
		if ind < 0 {
			ind = 0
		}
		items[i].Indentation = ind
	}
	next := &Choice{Type: ParsonsChoice, Items: items}
	if prev != nil && sameArrangement(prev.Items, items) {
		return nil, false, nil
	}
	return next, true, nil
}

func (w *parsonsWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	return renderArrangement(w.doc, rc, snap, "parsons", true)
}

// reorderWidget is the indentation-free sibling of parsons: items are
// ordered but never nested.
type reorderWidget struct {
	doc *content.Node
}

func newReorderWidget(doc *content.Node, _ Snapshot) PartWidget {
	return &reorderWidget{doc: doc}
}

func (w *reorderWidget) Normalize(prev *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p itemPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("reorder arrangement: %w", ErrBadPayload)
	}
	items, err := itemsByID(w.doc.Items, p.ItemIDs)
	if err != nil {
		return nil, false, err
	}
	next := &Choice{Type: ItemChoice, Items: items}
	if prev != nil && sameArrangement(prev.Items, items) {
		return nil, false, nil
	}
	return next, true, nil
}

func (w *reorderWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	return renderArrangement(w.doc, rc, snap, "reorder", false)
}

func sameArrangement(a, b []content.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Indentation != b[i].Indentation {
			return false
		}
	}
	return true
}

// availableItems returns the question items not claimed by the attempt, in
// authored order.
func availableItems(all []content.Item, attempt *Choice) []content.Item {
	used := map[string]bool{}
	if attempt != nil {
		for _, it := range attempt.Items {
			used[it.ID] = true
		}
	}
	var out []content.Item
	for _, it := range all {
		if !used[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

func renderArrangement(doc *content.Node, rc content.RenderChild, snap Snapshot, kind string, indented bool) *content.Widget {
	body := rc(bodyNode(doc))

	avail := &content.Widget{Kind: "itemSection", Class: "available"}
	for _, it := range availableItems(doc.Items, snap.CurrentAttempt) {
		avail.Children = append(avail.Children, itemWidgetNode(it))
	}

	chosen := &content.Widget{Kind: "itemSection", Class: "chosen"}
	if snap.CurrentAttempt != nil {
		for _, it := range snap.CurrentAttempt.Items {
			iw := itemWidgetNode(it)
			if indented && it.Indentation > 0 {
				iw.Class = fmt.Sprintf("indent-%d", it.Indentation)
			}
			chosen.Children = append(chosen.Children, iw)
		}
	}

	return &content.Widget{Kind: kind, NodeID: doc.ID, Children: []*content.Widget{body, avail, chosen}}
}
