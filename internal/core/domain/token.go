package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Token is a single word or punctuation mark of a unit.
// Offsets and lengths are counted in runes within the field.
type Token struct {
	Index      int    `json:"index" yaml:"index"`             // Document-global position
	ArrayIndex int    `json:"array_index" yaml:"-"`           // Position within the loaded token slice
	Field      string `json:"field" yaml:"field"`
	Offset     int    `json:"offset" yaml:"offset"`
	Length     int    `json:"length" yaml:"length"`
	Paragraph  int    `json:"paragraph" yaml:"paragraph"`
	Sentence   int    `json:"sentence" yaml:"sentence"`
	Section    string `json:"section,omitempty" yaml:"section,omitempty"`
	CodingUnit bool   `json:"coding_unit" yaml:"coding_unit"`
	Pre        string `json:"pre,omitempty" yaml:"pre,omitempty"`
	Text       string `json:"text" yaml:"text"`
	Post       string `json:"post,omitempty" yaml:"post,omitempty"`
}

// End returns the offset of the last rune covered by the token.
func (t Token) End() int {
	return t.Offset + t.Length - 1
}

// TextField is one named text part of a unit, e.g. a headline or body.
type TextField struct {
	Name    string `json:"name" yaml:"name"`
	Value   string `json:"value" yaml:"value"`
	Offset  int    `json:"offset,omitempty" yaml:"offset,omitempty"`   // Offset of Value within the original field
	Section string `json:"section,omitempty" yaml:"section,omitempty"` // Display section, e.g. "main"
	Context bool   `json:"context,omitempty" yaml:"context,omitempty"` // Context-only text, not annotatable
}

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}\p{M}]+(?:['’\-][\p{L}\p{N}\p{M}]+)*|[^\s\p{L}\p{N}\p{M}]`)

func endsSentence(text string) bool {
	switch text {
	case ".", "!", "?":
		return true
	}
	return false
}

// Tokenize splits text fields into tokens.
// Every field starts a new paragraph; a newline between two tokens starts a new
// paragraph too. Sentences end at terminal punctuation and at paragraph breaks.
func Tokenize(fields []TextField) []Token {
	var tokens []Token
	paragraph, sentence := 0, 0

	for _, field := range fields {
		matches := tokenPattern.FindAllStringIndex(field.Value, -1)
		if len(matches) == 0 {
			continue
		}
		if len(tokens) > 0 {
			paragraph++
			sentence++
		}

		section := field.Section
		if section == "" {
			section = "main"
		}

		bytePos, runePos := 0, 0
		fieldStart := len(tokens)
		for _, m := range matches {
			gap := field.Value[bytePos:m[0]]
			text := field.Value[m[0]:m[1]]
			runeStart := runePos + utf8.RuneCountInString(gap)
			runeLen := utf8.RuneCountInString(text)

			token := Token{
				Index:      len(tokens),
				ArrayIndex: len(tokens),
				Field:      field.Name,
				Offset:     field.Offset + runeStart,
				Length:     runeLen,
				Section:    section,
				CodingUnit: !field.Context,
				Text:       text,
			}

			if len(tokens) == fieldStart {
				token.Pre = gap
			} else {
				prev := &tokens[len(tokens)-1]
				prev.Post = gap
				if strings.Contains(gap, "\n") {
					paragraph++
					sentence++
				} else if endsSentence(prev.Text) {
					sentence++
				}
			}
			token.Paragraph = paragraph
			token.Sentence = sentence

			tokens = append(tokens, token)
			bytePos = m[1]
			runePos = runeStart + runeLen
		}
		tokens[len(tokens)-1].Post = field.Value[bytePos:]
	}

	return tokens
}

// PrepareTokens validates externally tokenized input, orders it by index and
// assigns array positions. The input slice is not modified.
func PrepareTokens(tokens []Token) ([]Token, error) {
	prepared := make([]Token, len(tokens))
	copy(prepared, tokens)
	sort.SliceStable(prepared, func(i, j int) bool {
		return prepared[i].Index < prepared[j].Index
	})

	for i := range prepared {
		t := &prepared[i]
		if i > 0 && prepared[i-1].Index == t.Index {
			return nil, fmt.Errorf("%w: duplicate token index %d", ErrInvalidInput, t.Index)
		}
		if t.Length < 0 || t.Offset < 0 {
			return nil, fmt.Errorf("%w: token %d has negative offset or length", ErrInvalidInput, t.Index)
		}
		if t.Field == "" {
			return nil, fmt.Errorf("%w: token %d has no field", ErrInvalidInput, t.Index)
		}
		t.ArrayIndex = i
	}

	return prepared, nil
}

// tokenPositions maps token index to array position.
func tokenPositions(tokens []Token) map[int]int {
	positions := make(map[int]int, len(tokens))
	for i, t := range tokens {
		positions[t.Index] = i
	}
	return positions
}

// SpanText reconstructs the literal text covered by a token span.
// Whitespace before the first and after the last token is not included.
func SpanText(tokens []Token, span Span) string {
	return spanText(tokens, tokenPositions(tokens), span)
}

func spanText(tokens []Token, positions map[int]int, span Span) string {
	var covered []Token
	for i := span.Start(); i <= span.End(); i++ {
		if pos, ok := positions[i]; ok {
			covered = append(covered, tokens[pos])
		}
	}

	var b strings.Builder
	for i, t := range covered {
		if i > 0 {
			b.WriteString(t.Pre)
		}
		b.WriteString(t.Text)
		if i < len(covered)-1 {
			b.WriteString(t.Post)
		}
	}
	return b.String()
}
