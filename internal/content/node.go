package content

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrValueAndChildren = errors.New("content node has both value and children")
	ErrNotFound         = errors.New("content document not found")
)

// Encodings understood by the value renderer. Anything else is surfaced as
// an explicit diagnostic placeholder rather than failing the whole page.
const (
	EncodingMarkdown = "markdown"
	EncodingHTML     = "html"
)

// Node is one node of the content document tree. The type field selects the
// rendering strategy; the remaining fields are type-specific and omitted from
// JSON when empty so that a decoded document re-serialises unchanged.
type Node struct {
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Layout   string `json:"layout,omitempty"`
	Title    string `json:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty"`

	Encoding string `json:"encoding,omitempty"`
	Value    string `json:"value,omitempty"`
	Children []Node `json:"children,omitempty"`

	// Question-only fields.
	Hints            []Node          `json:"hints,omitempty"`
	Choices          []Node          `json:"choices,omitempty"`
	Items            []Item          `json:"items,omitempty"`
	WithReplacement  bool            `json:"withReplacement,omitempty"`
	AvailableSymbols []string        `json:"availableSymbols,omitempty"`
	MultiLineEntry   bool            `json:"multiLineEntry,omitempty"`
	Answer           *Node           `json:"answer,omitempty"`
	BestAttempt      json.RawMessage `json:"bestAttempt,omitempty"`

	// Image and figure fields.
	Src      string `json:"src,omitempty"`
	AltText  string `json:"altText,omitempty"`
	ClickURL string `json:"clickUrl,omitempty"`
}

// Item is a draggable or selectable element of an item-based question. In a
// submitted choice an item may additionally be tagged with the drop zone it
// occupies.
type Item struct {
	ID          string `json:"id"`
	Type        string `json:"type,omitempty"`
	Value       string `json:"value,omitempty"`
	Encoding    string `json:"encoding,omitempty"`
	Indentation int    `json:"indentation,omitempty"`
	DropZoneID  string `json:"dropZoneId,omitempty"`
}

// CheckValueOrChildren enforces the authoring invariant that a node carries
// either a value or children, never both. Violations indicate an upstream
// authoring bug and must be caught at render time.
func (n *Node) CheckValueOrChildren() error {
	if n.Value != "" && len(n.Children) > 0 {
		return fmt.Errorf("node %q: %w", n.ID, ErrValueAndChildren)
	}
	return nil
}

// Decode reads a content document from raw JSON.
func Decode(raw []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("decode content document: %w", err)
	}
	return &n, nil
}

// WalkFunc visits a node. Returning false stops descent into its children.
type WalkFunc func(n *Node) bool

// Walk visits n and its descendants depth-first in document order. Hints and
// multiple-choice options are not walked: they are rendered lazily by their
// owning question widget, not by the page dispatcher.
func Walk(n *Node, fn WalkFunc) {
	if n == nil || !fn(n) {
		return
	}
	for i := range n.Children {
		Walk(&n.Children[i], fn)
	}
}
