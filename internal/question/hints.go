package question

import (
	"fmt"
	"time"

	"learnpage/internal/content"
)

// questionFrame wraps a widget body in the chrome every question shares:
// revealed hints, validation feedback and the temporary-lock notice. In quiz
// mode hints and feedback are withheld so answers cannot be fished.
func questionFrame(doc *content.Node, body *content.Widget, snap Snapshot, rc content.RenderChild, quizMode bool) *content.Widget {
	kind := "question"
	if quizMode {
		kind = "quizQuestion"
	}
	frame := &content.Widget{
		Kind:       kind,
		NodeID:     doc.ID,
		QuestionID: doc.ID,
		Title:      doc.Title,
		Children:   []*content.Widget{body},
	}
	if snap.CanSubmit {
		frame.Class = "can-submit"
	}
	if quizMode {
		return frame
	}

	if h := hintsPanel(doc, snap, rc); h != nil {
		frame.Children = append(frame.Children, h)
	}
	if v := feedbackPanel(snap, rc); v != nil {
		frame.Children = append(frame.Children, v)
	}
	if snap.State == StateLocked && snap.LockedUntil != nil {
		frame.Children = append(frame.Children, lockNotice(*snap.LockedUntil))
	}
	return frame
}

// hintsPanel shows only the hints revealed so far; the remainder stay as a
// count so the learner knows more help exists.
func hintsPanel(doc *content.Node, snap Snapshot, rc content.RenderChild) *content.Widget {
	if len(doc.Hints) == 0 {
		return nil
	}
	panel := &content.Widget{Kind: "hintsPanel", NodeID: doc.ID}
	revealed := snap.HintsRevealed
	if revealed > len(doc.Hints) {
		revealed = len(doc.Hints)
	}
	for i := 0; i < revealed; i++ {
		hw := rc(&doc.Hints[i])
		panel.Children = append(panel.Children, &content.Widget{
			Kind:     "hint",
			Title:    fmt.Sprintf("Hint %d", i+1),
			Children: []*content.Widget{hw},
		})
	}
	if remaining := len(doc.Hints) - revealed; remaining > 0 {
		panel.Text = fmt.Sprintf("%d more hint(s) available", remaining)
	}
	return panel
}

func feedbackPanel(snap Snapshot, rc content.RenderChild) *content.Widget {
	if snap.Validation == nil {
		return nil
	}
	panel := &content.Widget{Kind: "validationPanel"}
	if snap.Validation.Correct {
		panel.Class = "correct"
		panel.Text = "Correct!"
	} else {
		panel.Class = "incorrect"
		panel.Text = "Incorrect"
	}
	if snap.Validation.Explanation != nil {
		panel.Children = []*content.Widget{rc(snap.Validation.Explanation)}
	}
	return panel
}

func lockNotice(until time.Time) *content.Widget {
	return &content.Widget{
		Kind: "lockedNotice",
		Text: fmt.Sprintf("This question is locked until %s", until.Format(time.RFC1123)),
	}
}
