// Package report renders critique rounds as JSON, styled text or a short
// notification summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"specdebate/pkg/cost"
	"specdebate/pkg/debate"
)

// Round echoes the request parameters of one critique round.
type Round struct {
	Number         int
	DocType        string
	Models         []string
	Focus          string
	Persona        string
	PreserveIntent bool
}

// Document is the machine-readable output of a critique round.
type Document struct {
	AllAgreed      bool                 `json:"all_agreed"`
	Round          int                  `json:"round"`
	DocType        string               `json:"doc_type"`
	Models         []string             `json:"models"`
	Focus          *string              `json:"focus"`
	Persona        *string              `json:"persona"`
	PreserveIntent bool                 `json:"preserve_intent"`
	Results        []debate.ModelResult `json:"results"`
	Cost           cost.Summary         `json:"cost"`
}

// NewDocument assembles the output document for a finished round.
func NewDocument(round Round, results []debate.ModelResult, summary cost.Summary) Document {
	if results == nil {
		results = []debate.ModelResult{}
	}
	if summary.ByModel == nil {
		summary.ByModel = map[string]cost.ModelUsage{}
	}

	return Document{
		AllAgreed:      debate.AllAgreed(results),
		Round:          round.Number,
		DocType:        round.DocType,
		Models:         append([]string(nil), round.Models...),
		Focus:          nullable(round.Focus),
		Persona:        nullable(round.Persona),
		PreserveIntent: round.PreserveIntent,
		Results:        results,
		Cost:           summary,
	}
}

func nullable(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// WriteJSON writes doc as indented JSON followed by a newline.
func WriteJSON(w io.Writer, doc Document) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
