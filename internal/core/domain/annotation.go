package domain

import "fmt"

// EmptyValue marks a token position claimed by a variable without a value.
const EmptyValue = "EMPTY"

// Span is an inclusive token index range [start, end].
type Span [2]int

// Start returns the first token index of the span
func (s Span) Start() int { return s[0] }

// End returns the last token index of the span
func (s Span) End() int { return s[1] }

// Contains reports whether the token index lies within the span
func (s Span) Contains(index int) bool {
	return index >= s[0] && index <= s[1]
}

// Normalize returns the span with its endpoints in ascending order
func (s Span) Normalize() Span {
	if s[0] > s[1] {
		return Span{s[1], s[0]}
	}
	return s
}

// AnnotationID identifies an annotation by variable and value.
type AnnotationID string

// NewAnnotationID builds the "variable|value" identifier
func NewAnnotationID(variable, value string) AnnotationID {
	return AnnotationID(variable + "|" + value)
}

// OffsetAnnotation is the wire format of a span annotation: one entry per
// contiguous span per variable and value, positioned by character offset.
type OffsetAnnotation struct {
	Variable string `json:"variable" yaml:"variable" validate:"required"`
	Value    string `json:"value" yaml:"value" validate:"required"`
	Field    string `json:"field" yaml:"field" validate:"required"`
	Offset   int    `json:"offset" yaml:"offset" validate:"gte=0"`
	Length   int    `json:"length" yaml:"length" validate:"gte=1"`
	Section  string `json:"section,omitempty" yaml:"section,omitempty"`
}

// ID returns the annotation identifier
func (a OffsetAnnotation) ID() AnnotationID {
	return NewAnnotationID(a.Variable, a.Value)
}

// IndexedAnnotation is the in-memory form of a span annotation at one token.
// Every token a span covers holds a copy with the same Span, Offset and Length.
type IndexedAnnotation struct {
	Index    int    `json:"index"`
	Variable string `json:"variable"`
	Value    string `json:"value"`
	Span     Span   `json:"span"`
	Length   int    `json:"length"`
	Field    string `json:"field"`
	Offset   int    `json:"offset"`
	Section  string `json:"section,omitempty"`
}

// ID returns the annotation identifier
func (a IndexedAnnotation) ID() AnnotationID {
	return NewAnnotationID(a.Variable, a.Value)
}

// OffsetAnnotation converts back to the wire format
func (a IndexedAnnotation) OffsetAnnotation() OffsetAnnotation {
	return OffsetAnnotation{
		Variable: a.Variable,
		Value:    a.Value,
		Field:    a.Field,
		Offset:   a.Offset,
		Length:   a.Length,
		Section:  a.Section,
	}
}

// DisplayAnnotation wraps an exported annotation with fields derived for display.
type DisplayAnnotation struct {
	OffsetAnnotation
	Text      string `json:"text,omitempty"`
	TokenSpan *Span  `json:"token_span,omitempty"`
	Color     string `json:"color,omitempty"`
}

// AnnotationForSpan resolves the field, offset and length of a token span.
// The span must lie within one field and cover only coding unit tokens.
func AnnotationForSpan(tokens []Token, variable, value string, span Span) (IndexedAnnotation, error) {
	positions := tokenPositions(tokens)
	first, okStart := positions[span.Start()]
	last, okEnd := positions[span.End()]
	if !okStart || !okEnd || first > last {
		return IndexedAnnotation{}, fmt.Errorf("%w: span %v is outside the unit", ErrInvalidSpan, span)
	}

	start, end := tokens[first], tokens[last]
	for _, t := range tokens[first : last+1] {
		if t.Field != start.Field {
			return IndexedAnnotation{}, fmt.Errorf("%w: span %v crosses fields %s and %s", ErrInvalidSpan, span, start.Field, t.Field)
		}
		if !t.CodingUnit {
			return IndexedAnnotation{}, fmt.Errorf("%w: token %d is context only", ErrInvalidSpan, t.Index)
		}
	}

	return IndexedAnnotation{
		Index:    span.Start(),
		Variable: variable,
		Value:    value,
		Span:     span,
		Length:   end.Offset + end.Length - start.Offset,
		Field:    start.Field,
		Offset:   start.Offset,
		Section:  start.Section,
	}, nil
}
