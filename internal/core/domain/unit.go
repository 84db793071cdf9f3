package domain

import "time"

// Job groups units coded with the same codebook
type Job struct {
	ID        string    `json:"id" yaml:"id" validate:"required"`
	Title     string    `json:"title" yaml:"title"`
	Codebook  Codebook  `json:"codebook" yaml:"codebook"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Unit is one document presented to a coder.
// Tokens are optional; when empty the text fields are tokenized on load.
type Unit struct {
	ID          string             `json:"id" yaml:"id" validate:"required"`
	JobID       string             `json:"job_id" yaml:"-"`
	Fields      []TextField        `json:"fields" yaml:"fields"`
	Tokens      []Token            `json:"tokens,omitempty" yaml:"tokens,omitempty"`
	Annotations []OffsetAnnotation `json:"annotations,omitempty" yaml:"annotations,omitempty"` // Pre-annotations
	CreatedAt   time.Time          `json:"created_at" yaml:"-"`
}

// UnitStatus is the progress tag sent with submitted annotations
type UnitStatus string

const (
	UnitStatusInProgress UnitStatus = "IN_PROGRESS"
	UnitStatusDone       UnitStatus = "DONE"
)

// Valid reports whether s is a known status
func (s UnitStatus) Valid() bool {
	return s == UnitStatusInProgress || s == UnitStatusDone
}

// Submission is a coder's exported annotations for a unit
type Submission struct {
	UnitID      string             `json:"unit_id"`
	JobID       string             `json:"job_id"`
	CoderID     string             `json:"coder_id"`
	Status      UnitStatus         `json:"status"`
	Annotations []OffsetAnnotation `json:"annotations"`
	SubmittedAt time.Time          `json:"submitted_at"`
}

// Draft is unsubmitted work of a coder on a unit
type Draft struct {
	UnitID      string             `json:"unit_id"`
	JobID       string             `json:"job_id"`
	CoderID     string             `json:"coder_id"`
	Annotations []OffsetAnnotation `json:"annotations"`
	Version     uint64             `json:"version"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// UnitView is everything a client needs to render an open unit
type UnitView struct {
	JobID        string              `json:"job_id"`
	UnitID       string              `json:"unit_id"`
	CodebookType CodebookType        `json:"codebook_type"`
	Tokens       []Token             `json:"tokens"`
	Variables    VariableMap         `json:"variables"`
	Questions    []Question          `json:"questions,omitempty"`
	Annotations  []DisplayAnnotation `json:"annotations"`
	TokenColors  map[int]string      `json:"token_colors"`
	Version      uint64              `json:"version"`
}

// ToggleRequest adds or removes one annotation over a token span
type ToggleRequest struct {
	Variable  string `json:"variable" validate:"required"`
	Value     string `json:"value" validate:"required"`
	Span      Span   `json:"span"`
	Remove    bool   `json:"remove,omitempty"`
	KeepEmpty bool   `json:"keep_empty,omitempty"`
}

// Direction of keyboard navigation over a button grid
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// NavigationRequest asks for the next item in a rendered grid
type NavigationRequest struct {
	Items     []Rect    `json:"items" validate:"required,min=1,dive"`
	Selected  int       `json:"selected" validate:"gte=0"`
	Direction Direction `json:"direction" validate:"required,oneof=up down"`
	XRef      *int      `json:"x_ref,omitempty"`
}
