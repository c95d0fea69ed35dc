package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"learnpage/internal/content"
	"learnpage/internal/question"
)

// Result is a marking outcome plus where it came from. Source is "marker"
// when the remote marking service answered, "local" or "local_fallback" when
// the built-in checker did.
type Result struct {
	Response question.ValidationResponse
	Source   string
}

type ServiceConfig struct {
	MarkerURL  string
	HTTPClient *http.Client
}

// Service marks submitted choices. With a marker URL configured it defers to
// the remote marking service and falls back to the local checker when that
// call fails; without one it marks locally.
type Service struct {
	markerURL string
	client    *http.Client
}

func NewService(cfg ServiceConfig) *Service {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 18 * time.Second}
	}
	return &Service{
		markerURL: strings.TrimSpace(cfg.MarkerURL),
		client:    client,
	}
}

func (s *Service) Validate(ctx context.Context, doc *content.Node, c question.Choice) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	if s.markerURL == "" {
		return Result{Response: localMark(doc, c), Source: "local"}, nil
	}

	resp, err := s.validateWithMarker(ctx, doc, c)
	if err != nil {
		return Result{Response: localMark(doc, c), Source: "local_fallback"}, nil
	}
	return Result{Response: *resp, Source: "marker"}, nil
}

type markerRequest struct {
	QuestionID   string          `json:"questionId"`
	QuestionType string          `json:"questionType"`
	Answer       question.Choice `json:"answer"`
}

type markerResponse struct {
	Correct     bool            `json:"correct"`
	Explanation json.RawMessage `json:"explanation,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	LockedUntil *time.Time      `json:"lockedUntil,omitempty"`
}

func (s *Service) validateWithMarker(ctx context.Context, doc *content.Node, c question.Choice) (*question.ValidationResponse, error) {
	body, err := json.Marshal(markerRequest{
		QuestionID:   doc.ID,
		QuestionType: doc.Type,
		Answer:       c,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/validate/%s", strings.TrimRight(s.markerURL, "/"), doc.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("marker status %d", resp.StatusCode)
	}

	var out markerResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	vr := question.ValidationResponse{
		Correct:     out.Correct,
		Tags:        out.Tags,
		LockedUntil: out.LockedUntil,
	}
	if len(out.Explanation) > 0 {
		expl, err := content.Decode(out.Explanation)
		if err != nil {
			return nil, fmt.Errorf("decode marker explanation: %w", err)
		}
		vr.Explanation = expl
	}
	return &vr, nil
}

// localMark checks the kinds of answers that can be decided from the
// authored document alone. Anything needing the marking service's equality
// engine is marked incorrect with an explanation saying so.
func localMark(doc *content.Node, c question.Choice) question.ValidationResponse {
	switch c.Type {
	case question.StringChoice:
		if doc.Answer != nil && strings.TrimSpace(c.Value) == strings.TrimSpace(doc.Answer.Value) {
			return question.ValidationResponse{Correct: true}
		}
		return incorrect("That is not the expected answer.")
	case question.ItemChoice, question.ParsonsChoice, question.DndChoice:
		if doc.Answer != nil && arrangementMatches(doc.Answer.Items, c.Items, c.Type) {
			return question.ValidationResponse{Correct: true}
		}
		return incorrect("That arrangement is not correct.")
	default:
		return incorrect("This answer could not be checked while the marking service is unavailable. Please try again later.")
	}
}

func arrangementMatches(want, got []content.Item, t question.ChoiceType) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i].ID != got[i].ID {
			return false
		}
		if t == question.ParsonsChoice && want[i].Indentation != got[i].Indentation {
			return false
		}
		if t == question.DndChoice && want[i].DropZoneID != got[i].DropZoneID {
			return false
		}
	}
	return true
}

func incorrect(msg string) question.ValidationResponse {
	return question.ValidationResponse{
		Correct:     false,
		Explanation: &content.Node{Type: "content", Encoding: content.EncodingMarkdown, Value: msg},
	}
}
