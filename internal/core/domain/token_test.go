package domain

import (
	"errors"
	"testing"
)

func TestTokenize_OffsetsAndWhitespace(t *testing.T) {
	tokens := Tokenize([]TextField{{Name: "text", Value: "  Hello, world!"}})

	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %d", len(tokens))
	}

	expected := []struct {
		text   string
		offset int
		length int
		pre    string
		post   string
	}{
		{"Hello", 2, 5, "  ", ""},
		{",", 7, 1, "", " "},
		{"world", 9, 5, "", ""},
		{"!", 14, 1, "", ""},
	}

	for i, want := range expected {
		got := tokens[i]
		if got.Text != want.text {
			t.Errorf("token %d: expected text %q, got %q", i, want.text, got.Text)
		}
		if got.Offset != want.offset {
			t.Errorf("token %d: expected offset %d, got %d", i, want.offset, got.Offset)
		}
		if got.Length != want.length {
			t.Errorf("token %d: expected length %d, got %d", i, want.length, got.Length)
		}
		if got.Pre != want.pre {
			t.Errorf("token %d: expected pre %q, got %q", i, want.pre, got.Pre)
		}
		if got.Post != want.post {
			t.Errorf("token %d: expected post %q, got %q", i, want.post, got.Post)
		}
		if got.Index != i || got.ArrayIndex != i {
			t.Errorf("token %d: expected index and array index %d, got %d/%d", i, i, got.Index, got.ArrayIndex)
		}
		if got.Field != "text" {
			t.Errorf("token %d: expected field text, got %s", i, got.Field)
		}
		if !got.CodingUnit {
			t.Errorf("token %d: expected coding unit", i)
		}
	}
}

func TestTokenize_RuneOffsets(t *testing.T) {
	tokens := Tokenize([]TextField{{Name: "text", Value: "café über"}})

	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tokens))
	}
	if tokens[0].Length != 4 {
		t.Errorf("expected rune length 4, got %d", tokens[0].Length)
	}
	if tokens[1].Offset != 5 {
		t.Errorf("expected rune offset 5, got %d", tokens[1].Offset)
	}
}

func TestTokenize_ParagraphsAndSentences(t *testing.T) {
	tokens := Tokenize([]TextField{
		{Name: "title", Value: "A title"},
		{Name: "body", Value: "One. Two\nThree", Offset: 10},
	})

	type ps struct{ paragraph, sentence int }
	expected := map[string]ps{
		"A":     {0, 0},
		"title": {0, 0},
		"One":   {1, 1},
		".":     {1, 1},
		"Two":   {1, 2},
		"Three": {2, 3},
	}

	for _, tok := range tokens {
		want := expected[tok.Text]
		if tok.Paragraph != want.paragraph || tok.Sentence != want.sentence {
			t.Errorf("token %q: expected paragraph/sentence %d/%d, got %d/%d",
				tok.Text, want.paragraph, want.sentence, tok.Paragraph, tok.Sentence)
		}
	}

	if tokens[2].Offset != 10 {
		t.Errorf("expected field offset to be applied, got %d", tokens[2].Offset)
	}
}

func TestTokenize_ContextFields(t *testing.T) {
	tokens := Tokenize([]TextField{
		{Name: "before", Value: "context", Context: true},
		{Name: "text", Value: "coded"},
	})

	if tokens[0].CodingUnit {
		t.Error("expected context token not to be a coding unit")
	}
	if !tokens[1].CodingUnit {
		t.Error("expected text token to be a coding unit")
	}
	if tokens[0].Section != "main" {
		t.Errorf("expected default section main, got %s", tokens[0].Section)
	}
}

func TestTokenize_EmptyField(t *testing.T) {
	tokens := Tokenize([]TextField{{Name: "empty", Value: "   "}, {Name: "text", Value: "x"}})
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if tokens[0].Paragraph != 0 {
		t.Errorf("expected empty field not to start a paragraph, got %d", tokens[0].Paragraph)
	}
}

func TestPrepareTokens(t *testing.T) {
	input := []Token{
		{Index: 11, Field: "text", Offset: 4, Length: 5},
		{Index: 10, Field: "text", Offset: 0, Length: 3},
	}

	prepared, err := PrepareTokens(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prepared[0].Index != 10 || prepared[0].ArrayIndex != 0 {
		t.Errorf("expected token 10 at position 0, got %+v", prepared[0])
	}
	if prepared[1].Index != 11 || prepared[1].ArrayIndex != 1 {
		t.Errorf("expected token 11 at position 1, got %+v", prepared[1])
	}
	if input[0].Index != 11 {
		t.Error("expected input slice to be left untouched")
	}
}

func TestPrepareTokens_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		tokens []Token
	}{
		{"duplicate index", []Token{{Index: 1, Field: "f"}, {Index: 1, Field: "f"}}},
		{"negative length", []Token{{Index: 1, Field: "f", Length: -1}}},
		{"missing field", []Token{{Index: 1, Length: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PrepareTokens(tt.tokens)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSpanText(t *testing.T) {
	tokens := Tokenize([]TextField{{Name: "text", Value: " The quick, brown fox "}})

	tests := []struct {
		span Span
		want string
	}{
		{Span{0, 0}, "The"},
		{Span{1, 3}, "quick, brown"},
		{Span{0, 4}, "The quick, brown fox"},
		{Span{4, 9}, "fox"},
	}

	for _, tt := range tests {
		if got := SpanText(tokens, tt.span); got != tt.want {
			t.Errorf("SpanText(%v): expected %q, got %q", tt.span, tt.want, got)
		}
	}
}
