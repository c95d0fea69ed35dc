package content

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
)

// Widget kinds produced by the dispatcher. Question widgets add their own
// kinds on top of these.
const (
	WidgetValue           = "value"
	WidgetChunk           = "contentChunk"
	WidgetGroup           = "group"
	WidgetFigure          = "figure"
	WidgetImage           = "image"
	WidgetVideo           = "video"
	WidgetCodeSnippet     = "codeSnippet"
	WidgetCodeTabs        = "codeTabs"
	WidgetGlossaryTerm    = "glossaryTerm"
	WidgetProfile         = "profile"
	WidgetQuickQuestion   = "quickQuestion"
	WidgetCard            = "card"
	WidgetCardDeck        = "cardDeck"
	WidgetTabs            = "tabs"
	WidgetCallout         = "callout"
	WidgetAccordion       = "accordion"
	WidgetHorizontal      = "horizontal"
	WidgetLayoutWrapper   = "layoutWrapper"
	WidgetContentError    = "contentError"
	WidgetUnknownEncoding = "unknownEncoding"
)

// Widget is one node of the rendered output tree. It is the JSON schema
// boundary between the engine and whatever host UI consumes it, so every
// field is omitted when empty.
type Widget struct {
	Kind       string    `json:"kind"`
	NodeID     string    `json:"nodeId,omitempty"`
	QuestionID string    `json:"questionId,omitempty"`
	Class      string    `json:"class,omitempty"`
	Title      string    `json:"title,omitempty"`
	Subtitle   string    `json:"subtitle,omitempty"`
	HTML       string    `json:"html,omitempty"`
	Text       string    `json:"text,omitempty"`
	Src        string    `json:"src,omitempty"`
	AltText    string    `json:"altText,omitempty"`
	ClickURL   string    `json:"clickUrl,omitempty"`
	Error      string    `json:"error,omitempty"`
	Children   []*Widget `json:"children,omitempty"`
}

// ContentError records an authoring problem found while rendering. The
// offending node still renders as a visible inline error widget; these
// records additionally feed the editor-facing error report.
type ContentError struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

// RenderChild lets a question widget render its body through the page
// dispatcher without the question package depending on dispatch internals.
type RenderChild func(n *Node) *Widget

// QuestionRenderer is implemented by the question widget table. The
// dispatcher consults it before its own type table so question documents
// never fall through to plain content rendering.
type QuestionRenderer interface {
	IsQuestionType(t string) bool
	RenderQuestion(n *Node, renderChild RenderChild, quizMode bool) (*Widget, error)
}

// Renderer resolves content nodes to widgets. It is safe for concurrent use;
// per-render state lives on an internal pass value.
type Renderer struct {
	questions QuestionRenderer
	assetBase string
	quizMode  bool
	md        goldmark.Markdown
}

func NewRenderer(questions QuestionRenderer, assetBase string) *Renderer {
	return &Renderer{
		questions: questions,
		assetBase: assetBase,
		md:        goldmark.New(),
	}
}

// QuizMode returns a renderer that presents questions in the tabbed quiz
// layout instead of the inline one.
func (r *Renderer) QuizMode() *Renderer {
	quiz := *r
	quiz.quizMode = true
	return &quiz
}

// Render resolves a single node. Authoring errors render in place; they never
// fail the page.
func (r *Renderer) Render(node *Node) (*Widget, []ContentError) {
	p := &renderPass{r: r}
	w := p.render(node)
	return w, p.errs
}

// Layouts that are pure presentation: the dispatched widget is wrapped in a
// classed container in addition to, and independent of, widget selection.
var classBasedLayouts = map[string]string{
	"left":      "align-left",
	"right":     "align-right",
	"righthalf": "align-right-half",
	"clearfix":  "clearfix",
}

type renderPass struct {
	r    *Renderer
	errs []ContentError
}

func (p *renderPass) render(node *Node) *Widget {
	if node == nil {
		return nil
	}

	selected := p.dispatch(node)

	if class, ok := classBasedLayouts[node.Layout]; ok {
		return &Widget{
			Kind:     WidgetLayoutWrapper,
			NodeID:   node.ID,
			Class:    class,
			Children: []*Widget{selected},
		}
	}
	return selected
}

// dispatch implements the two-level type-then-layout lookup. Unknown types
// and layouts fall through to the value-or-children leaf renderer.
func (p *renderPass) dispatch(node *Node) *Widget {
	if p.r.questions != nil && p.r.questions.IsQuestionType(node.Type) {
		w, err := p.r.questions.RenderQuestion(node, p.render, p.r.quizMode)
		if err != nil {
			return p.contentError(node, err)
		}
		w.QuestionID = node.ID
		return w
	}

	switch node.Type {
	case "figure":
		w := p.valueOrChildren(node)
		w.Kind = WidgetFigure
		w.Src = ResolveAssetSrc(p.r.assetBase, node.Src)
		w.AltText = node.AltText
		return w
	case "image":
		return &Widget{
			Kind:    WidgetImage,
			NodeID:  node.ID,
			Src:     ResolveAssetSrc(p.r.assetBase, node.Src),
			AltText: node.AltText,
		}
	case "video":
		return &Widget{Kind: WidgetVideo, NodeID: node.ID, Src: ResolveAssetSrc(p.r.assetBase, node.Src), AltText: node.AltText}
	case "codeSnippet", "interactiveCodeSnippet":
		return &Widget{Kind: WidgetCodeSnippet, NodeID: node.ID, Title: node.Title, Text: node.Value}
	case "codeTabs":
		return p.group(node, WidgetCodeTabs)
	case "glossaryTerm":
		w := p.valueOrChildren(node)
		w.Kind = WidgetGlossaryTerm
		w.Title = node.Title
		return w
	case ProfileType:
		w := p.valueOrChildren(node)
		w.Kind = WidgetProfile
		w.Title = node.Title
		w.Subtitle = node.Subtitle
		w.Src = ResolveAssetSrc(p.r.assetBase, node.Src)
		return w
	case "quickQuestion":
		return p.quickQuestion(node)
	case "card":
		w := p.valueOrChildren(node)
		w.Kind = WidgetCard
		w.Title = node.Title
		w.Subtitle = node.Subtitle
		w.ClickURL = node.ClickURL
		w.Src = ResolveAssetSrc(p.r.assetBase, node.Src)
		return w
	case "cardDeck":
		w := p.group(node, WidgetCardDeck)
		w.Title = node.Title
		return w
	}

	switch node.Layout {
	case "tabs":
		return p.group(node, WidgetTabs)
	case "callout":
		return p.group(node, WidgetCallout)
	case "accordion":
		return p.group(node, WidgetAccordion)
	case "horizontal":
		return p.group(node, WidgetHorizontal)
	}

	return p.valueOrChildren(node)
}

// group renders each child through the full dispatcher, keyed by child id.
func (p *renderPass) group(node *Node, kind string) *Widget {
	w := &Widget{Kind: kind, NodeID: node.ID, Title: node.Title}
	for i := range node.Children {
		child := p.render(&node.Children[i])
		if child.Title == "" {
			child.Title = node.Children[i].Title
		}
		w.Children = append(w.Children, child)
	}
	return w
}

func (p *renderPass) quickQuestion(node *Node) *Widget {
	w := p.valueOrChildren(node)
	w.Kind = WidgetQuickQuestion
	if node.Answer != nil {
		answer := p.render(node.Answer)
		answer.Class = "quick-question-answer"
		w.Children = append(w.Children, answer)
	}
	return w
}

// valueOrChildren renders the leaf form of a node: either an encoded value or
// a chunked list of children. Holding both is an authoring error surfaced in
// place of the node.
func (p *renderPass) valueOrChildren(node *Node) *Widget {
	if err := node.CheckValueOrChildren(); err != nil {
		return p.contentError(node, err)
	}

	if node.Value != "" {
		return p.value(node)
	}

	w := &Widget{Kind: WidgetGroup, NodeID: node.ID}
	for _, chunk := range Chunk(node.Children) {
		if chunk.IsAccordion {
			// Accordion chunks render their single node directly, unwrapped.
			w.Children = append(w.Children, p.render(&chunk.Nodes[0]))
			continue
		}
		cw := &Widget{Kind: WidgetChunk, Class: "clearfix content-chunk"}
		for i := range chunk.Nodes {
			cw.Children = append(cw.Children, p.render(&chunk.Nodes[i]))
		}
		w.Children = append(w.Children, cw)
	}
	return w
}

func (p *renderPass) value(node *Node) *Widget {
	switch node.Encoding {
	case EncodingMarkdown:
		var buf bytes.Buffer
		if err := p.r.md.Convert([]byte(node.Value), &buf); err != nil {
			return p.contentError(node, fmt.Errorf("render markdown: %w", err))
		}
		return &Widget{Kind: WidgetValue, NodeID: node.ID, HTML: buf.String()}
	case EncodingHTML:
		return &Widget{Kind: WidgetValue, NodeID: node.ID, HTML: node.Value}
	default:
		// Unknown encodings render a diagnostic placeholder, not a page error.
		return &Widget{
			Kind:   WidgetUnknownEncoding,
			NodeID: node.ID,
			Text:   node.Value,
			Error:  fmt.Sprintf("content with unknown encoding %q", node.Encoding),
		}
	}
}

func (p *renderPass) contentError(node *Node, err error) *Widget {
	p.errs = append(p.errs, ContentError{NodeID: node.ID, Message: err.Error()})
	return &Widget{Kind: WidgetContentError, NodeID: node.ID, Error: err.Error()}
}
