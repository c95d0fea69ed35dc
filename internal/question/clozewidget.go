package question

import (
	"encoding/json"
	"fmt"
	"regexp"

	"learnpage/internal/cloze"
	"learnpage/internal/content"
)

// dropZoneMarker matches the inline placeholder syntax authors use to embed
// a gap in question text, e.g. "[drop-zone]" or "[drop-zone|w-100]".
var dropZoneMarker = regexp.MustCompile(`\[drop-zone[^\]]*\]`)

// clozeWidget owns the drag-and-drop coordinator for one fill-in-the-blanks
// question instance. Zones are discovered from the authored text in document
// order and named by position, so the same document always produces the same
// zone ids.
type clozeWidget struct {
	doc   *content.Node
	coord *cloze.Coordinator
}

func newClozeWidget(doc *content.Node, snap Snapshot) PartWidget {
	c := cloze.New(doc.Items, doc.WithReplacement)
	for i := 0; i < countDropZones(doc); i++ {
		c.RegisterZone(fmt.Sprintf("drop-region-%d", i))
	}
	if snap.CurrentAttempt != nil {
		c.Restore(snap.CurrentAttempt.Items)
	}
	return &clozeWidget{doc: doc, coord: c}
}

func countDropZones(doc *content.Node) int {
	n := 0
	content.Walk(doc, func(node *content.Node) bool {
		n += len(dropZoneMarker.FindAllString(node.Value, -1))
		return true
	})
	return n
}

type clozePayload struct {
	Move *struct {
		Src cloze.Slot `json:"src"`
		Dst cloze.Slot `json:"dst"`
	} `json:"move"`
	Pick  *cloze.Slot `json:"pick"`
	Focus *int        `json:"focus"`
	Drop  bool        `json:"drop"`
}

// Normalize applies one drag gesture. Gestures that leave zone occupancy
// unchanged, including pool-only reorders and picking up an item, return a
// nil choice so nothing is recorded.
func (w *clozeWidget) Normalize(_ *Choice, payload json.RawMessage) (*Choice, bool, error) {
	var p clozePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("drag gesture: %w", ErrBadPayload)
	}

	var (
		out cloze.MoveOutcome
		err error
	)
	switch {
	case p.Move != nil:
		out, err = w.coord.Move(p.Move.Src, p.Move.Dst)
	case p.Pick != nil:
		return nil, false, w.coord.Pick(*p.Pick)
	case p.Focus != nil:
		w.coord.MoveFocus(*p.Focus)
		return nil, false, nil
	case p.Drop:
		out, err = w.coord.Drop()
	default:
		return nil, false, fmt.Errorf("drag gesture: %w", ErrBadPayload)
	}
	if err != nil {
		return nil, false, err
	}
	if !out.Emit {
		return nil, false, nil
	}
	return &Choice{Type: DndChoice, Items: w.coord.Snapshot()}, true, nil
}

func (w *clozeWidget) Render(rc content.RenderChild, snap Snapshot) *content.Widget {
	body := rc(bodyNode(w.doc))

	zones := &content.Widget{Kind: "dropZones"}
	for i := 0; i < countDropZones(w.doc); i++ {
		zoneID := fmt.Sprintf("drop-region-%d", i)
		zw := &content.Widget{Kind: "dropZone", NodeID: zoneID}
		if it, ok := w.coord.Occupant(zoneID); ok {
			zw.Children = []*content.Widget{itemWidgetNode(it)}
		}
		zones.Children = append(zones.Children, zw)
	}

	pool := &content.Widget{Kind: "itemSection", Class: "pool"}
	for _, it := range w.coord.PoolItems() {
		pool.Children = append(pool.Children, itemWidgetNode(it))
	}

	return &content.Widget{Kind: "clozeQuestion", NodeID: w.doc.ID, Children: []*content.Widget{body, zones, pool}}
}
