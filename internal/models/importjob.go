package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the lifecycle state of a recipe-text import job
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

// Terminal reports whether no further transition can occur
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// ImportJob tracks one free-text recipe import through the external parser.
// Terminal once completed or failed; deleted on cancel or after confirm.
type ImportJob struct {
	ID           uuid.UUID     `json:"id"`
	UserID       int           `json:"user_id"`
	RawText      string        `json:"raw_text"`
	Status       ImportStatus  `json:"status"`
	ParsedRecipe *ParsedRecipe `json:"parsed_recipe,omitempty"` // present only when completed
	ParseMeta    *ParseMeta    `json:"parse_meta,omitempty"`
	ErrorMessage *string       `json:"error_message,omitempty"` // present only when failed
	ArchiveKey   *string       `json:"-"`
	ProcessedAt  *time.Time    `json:"processed_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// ParsedRecipe is the structured result returned by the external parser
type ParsedRecipe struct {
	Name         string             `json:"name"`
	Servings     *int               `json:"servings,omitempty"`
	Instructions *string            `json:"instructions,omitempty"`
	Ingredients  []ParsedIngredient `json:"ingredients"`
}

// ParsedIngredient is one structured ingredient from the parser
type ParsedIngredient struct {
	Name        string  `json:"name"`
	Quantity    *string `json:"quantity,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Parse metadata kinds
const (
	ParseKindHeuristic = "heuristic"
	ParseKindLLM       = "llm"
)

// ParseMeta is a tagged variant describing how the parser produced its result.
// The two producers have disjoint field sets, so the payload is decoded by
// kind rather than into one loose map.
type ParseMeta struct {
	Kind      string         `json:"kind"`
	Heuristic *HeuristicMeta `json:"-"`
	LLM       *LLMMeta       `json:"-"`
}

// HeuristicMeta describes a rule-based parse
type HeuristicMeta struct {
	LineCount    int     `json:"line_count"`
	MatchedLines int     `json:"matched_lines"`
	Confidence   float64 `json:"confidence"`
}

// LLMMeta describes an LLM-refined parse
type LLMMeta struct {
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Refined          bool   `json:"refined"`
}

// UnmarshalJSON decodes the variant selected by the kind tag
func (m *ParseMeta) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	m.Kind = head.Kind
	switch head.Kind {
	case ParseKindHeuristic:
		m.Heuristic = &HeuristicMeta{}
		return json.Unmarshal(data, m.Heuristic)
	case ParseKindLLM:
		m.LLM = &LLMMeta{}
		return json.Unmarshal(data, m.LLM)
	default:
		return fmt.Errorf("unknown parse meta kind %q", head.Kind)
	}
}

// MarshalJSON re-emits the selected variant with its kind tag
func (m ParseMeta) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case ParseKindHeuristic:
		if m.Heuristic == nil {
			return nil, fmt.Errorf("heuristic parse meta missing payload")
		}
		return json.Marshal(struct {
			Kind string `json:"kind"`
			HeuristicMeta
		}{Kind: m.Kind, HeuristicMeta: *m.Heuristic})
	case ParseKindLLM:
		if m.LLM == nil {
			return nil, fmt.Errorf("llm parse meta missing payload")
		}
		return json.Marshal(struct {
			Kind string `json:"kind"`
			LLMMeta
		}{Kind: m.Kind, LLMMeta: *m.LLM})
	default:
		return nil, fmt.Errorf("unknown parse meta kind %q", m.Kind)
	}
}

// CreateImportRequest is the request body for submitting recipe text
type CreateImportRequest struct {
	RawText string `json:"raw_text"`
}

// ConfirmImportRequest applies caller edits on top of the parsed result
type ConfirmImportRequest struct {
	Name         *string                   `json:"name,omitempty"`
	Servings     *int                      `json:"servings,omitempty"`
	Instructions *string                   `json:"instructions,omitempty"`
	Ingredients  []CreateIngredientRequest `json:"ingredients,omitempty"`
}
