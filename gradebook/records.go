package gradebook

import (
	"bytes"
	"encoding/json"
)

// Column describes a gradebook column. Unknown response fields are
// ignored.
type Column struct {
	ID          string `json:"id"`
	ExternalID  string `json:"externalId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Score       struct {
		Possible float64 `json:"possible"`
	} `json:"score"`
	Availability struct {
		Available string `json:"available"`
	} `json:"availability"`
	Grading struct {
		Type     string `json:"type"`
		Due      string `json:"due"`
		SchemaID string `json:"schemaId"`
	} `json:"grading"`
}

// Schema describes a grading schema.
type Schema struct {
	ID        string `json:"id"`
	ScaleType string `json:"scaleType"`
	Title     string `json:"title"`
}

// Grade describes one user's grade in a column. Score is kept raw
// because the API may deliver a number, a string, or nothing at all.
type Grade struct {
	UserID   string          `json:"userId"`
	ColumnID string          `json:"columnId"`
	Status   string          `json:"status"`
	Score    json.RawMessage `json:"score"`
	Text     string          `json:"text"`
	Feedback string          `json:"feedback"`
}

// HasScore reports whether a score has actually been recorded. A
// missing, null, or empty-string score all count as "not graded" — the
// empty-string case deliberately conflates "never graded" with "graded
// as empty text", matching the overwrite guard's documented behavior.
func (g *Grade) HasScore() bool {
	if len(g.Score) == 0 {
		return false
	}
	if bytes.Equal(g.Score, []byte("null")) {
		return false
	}
	if bytes.Equal(g.Score, []byte(`""`)) {
		return false
	}
	return true
}

// ColumnInput holds the properties for a new gradebook column.
type ColumnInput struct {
	Name string
	// DueDate is an ISO 8601 timestamp, e.g. 2018-01-02T15:04:05Z.
	DueDate     string
	Description string
	// MaxScorePossible of 0 suppresses the maximum-score display.
	MaxScorePossible float64
	// AvailableToStudents is "Yes" or "No"; defaults to "Yes".
	AvailableToStudents string
	// GradingType is "Attempts", "Calculated", or "Manual"; defaults
	// to "Manual".
	GradingType string
	// ScaleType is "Score", "Text", "Percentage", or
	// "CompleteIncomplete"; defaults to "Text".
	ScaleType string
}

func (in *ColumnInput) applyDefaults() {
	if in.AvailableToStudents == "" {
		in.AvailableToStudents = "Yes"
	}
	if in.GradingType == "" {
		in.GradingType = "Manual"
	}
	if in.ScaleType == "" {
		in.ScaleType = "Text"
	}
}

type createColumnRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Score       struct {
		Possible float64 `json:"possible"`
	} `json:"score"`
	Availability struct {
		Available string `json:"available"`
	} `json:"availability"`
	Grading struct {
		Type     string `json:"type"`
		Due      string `json:"due"`
		SchemaID string `json:"schemaId,omitempty"`
	} `json:"grading"`
}

// GradeInput holds one grade write. Score is transported as a string
// convertible to a number; Text and Feedback default to empty.
type GradeInput struct {
	Score    string
	Text     string
	Feedback string
}

// UserGrade is one entry in a batch grade write; entries apply in slice
// order.
type UserGrade struct {
	UserName string
	Score    string
	Text     string
	Feedback string
}
