package question

import (
	"encoding/json"
	"fmt"
	"time"

	"learnpage/internal/content"
)

// ChoiceType tags the normalized answer representation a question widget
// produces. Every choice carries enough information to be re-validated
// server-side on its own; the engine never infers correctness.
type ChoiceType string

const (
	StringChoice    ChoiceType = "stringChoice"
	ItemChoice      ChoiceType = "itemChoice"
	Formula         ChoiceType = "formula"
	DndChoice       ChoiceType = "dndChoice"
	ParsonsChoice   ChoiceType = "parsonsChoice"
	GraphChoice     ChoiceType = "graphChoice"
	MultiPartChoice ChoiceType = "multiPartChoice"
)

// Choice is the tagged union of answer shapes. Value doubles as the
// serialized editor state for formula choices and the serialized canvas state
// for graph choices; both pass through the engine verbatim.
type Choice struct {
	Type             ChoiceType     `json:"type"`
	Value            string         `json:"value,omitempty"`
	PythonExpression string         `json:"pythonExpression,omitempty"`
	Items            []content.Item `json:"items,omitempty"`
	Parts            []PartChoice   `json:"parts,omitempty"`
}

// PartChoice binds one sub-question's choice inside a multi-part aggregate.
type PartChoice struct {
	PartID string `json:"partId"`
	Choice Choice `json:"choice"`
}

// Validate rejects choices whose tag and payload disagree.
func (c *Choice) Validate() error {
	switch c.Type {
	case StringChoice, Formula, GraphChoice:
		return nil
	case ItemChoice, DndChoice, ParsonsChoice:
		for _, it := range c.Items {
			if it.ID == "" {
				return fmt.Errorf("%s with an item missing an id", c.Type)
			}
		}
		return nil
	case MultiPartChoice:
		seen := make(map[string]bool, len(c.Parts))
		for _, p := range c.Parts {
			if p.PartID == "" {
				return fmt.Errorf("multiPartChoice part missing partId")
			}
			if seen[p.PartID] {
				return fmt.Errorf("multiPartChoice has duplicate part %q", p.PartID)
			}
			seen[p.PartID] = true
		}
		return nil
	default:
		return fmt.Errorf("unknown choice type %q", c.Type)
	}
}

// MergePart replaces (or appends) exactly one sub-part's entry in a
// multi-part aggregate without disturbing the others.
func MergePart(prev *Choice, part PartChoice) Choice {
	merged := Choice{Type: MultiPartChoice}
	if prev != nil && prev.Type == MultiPartChoice {
		merged.Parts = append(merged.Parts, prev.Parts...)
	}
	for i := range merged.Parts {
		if merged.Parts[i].PartID == part.PartID {
			merged.Parts[i] = part
			return merged
		}
	}
	merged.Parts = append(merged.Parts, part)
	return merged
}

// ValidationResponse is the verdict returned by the external marker. A
// throttle signal arrives as LockedUntil with no verdict.
type ValidationResponse struct {
	Correct     bool          `json:"correct"`
	Explanation *content.Node `json:"explanation,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	LockedUntil *time.Time    `json:"lockedUntil,omitempty"`
}

// BestAttempt is the read-only record of a part's best historical attempt,
// shown in quiz review contexts. It is seeded from the content document and
// never mutated by widgets.
type BestAttempt struct {
	Correct bool    `json:"correct"`
	Answer  *Choice `json:"answer,omitempty"`
}

func decodeBestAttempt(raw json.RawMessage) *BestAttempt {
	if len(raw) == 0 {
		return nil
	}
	var b BestAttempt
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil
	}
	return &b
}
