package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"unicode/utf8"
)

// SpanStore maps token index to the annotations covering that token.
// Each annotation is copied to every token of its span, so presence checks
// per token are a single map lookup. The store is not safe for concurrent
// use; callers serialize edits per unit.
type SpanStore struct {
	byToken map[int]map[AnnotationID]IndexedAnnotation
	extents map[int]tokenExtent
	version uint64
}

// tokenExtent is the character range [offset, end) of one token.
type tokenExtent struct {
	offset, end int
}

// NewSpanStore creates an empty store
func NewSpanStore() *SpanStore {
	return &SpanStore{
		byToken: make(map[int]map[AnnotationID]IndexedAnnotation),
		extents: make(map[int]tokenExtent),
	}
}

// WithTokens records the character offsets of the tokens, so EMPTY
// placeholders covering part of a span get exact offsets.
func (s *SpanStore) WithTokens(tokens []Token) *SpanStore {
	for _, t := range tokens {
		s.extents[t.Index] = tokenExtent{offset: t.Offset, end: t.Offset + t.Length}
	}
	return s
}

// Version increases on every change to the store
func (s *SpanStore) Version() uint64 {
	return s.version
}

// Len returns the number of annotated token positions
func (s *SpanStore) Len() int {
	return len(s.byToken)
}

// Indices returns the annotated token indices in ascending order
func (s *SpanStore) Indices() []int {
	indices := make([]int, 0, len(s.byToken))
	for index := range s.byToken {
		indices = append(indices, index)
	}
	sort.Ints(indices)
	return indices
}

// At returns the annotations at a token index ordered by id
func (s *SpanStore) At(index int) []IndexedAnnotation {
	entries := s.byToken[index]
	if len(entries) == 0 {
		return nil
	}
	anns := make([]IndexedAnnotation, 0, len(entries))
	for _, ann := range entries {
		anns = append(anns, ann)
	}
	sort.Slice(anns, func(i, j int) bool { return anns[i].ID() < anns[j].ID() })
	return anns
}

// Get returns the annotation with the given id at a token index
func (s *SpanStore) Get(index int, id AnnotationID) (IndexedAnnotation, bool) {
	ann, ok := s.byToken[index][id]
	return ann, ok
}

// Clone returns an independent copy of the store
func (s *SpanStore) Clone() *SpanStore {
	extents := make(map[int]tokenExtent, len(s.extents))
	for index, extent := range s.extents {
		extents[index] = extent
	}
	return &SpanStore{byToken: s.Snapshot(), extents: extents, version: s.version}
}

// Snapshot returns a deep copy of the token index mapping
func (s *SpanStore) Snapshot() map[int]map[AnnotationID]IndexedAnnotation {
	snapshot := make(map[int]map[AnnotationID]IndexedAnnotation, len(s.byToken))
	for index, entries := range s.byToken {
		copied := make(map[AnnotationID]IndexedAnnotation, len(entries))
		for id, ann := range entries {
			copied[id] = ann
		}
		snapshot[index] = copied
	}
	return snapshot
}

// MarshalJSON encodes the store as {"<token index>": {"<id>": annotation}}
func (s *SpanStore) MarshalJSON() ([]byte, error) {
	out := make(map[string]map[AnnotationID]IndexedAnnotation, len(s.byToken))
	for index, entries := range s.byToken {
		out[strconv.Itoa(index)] = entries
	}
	return json.Marshal(out)
}

// Toggle adds or removes an annotation over every token of its span.
// An existing annotation with the same variable and value is removed from its
// whole old span first. With keepEmpty every token of the old span that holds
// no other value of the variable keeps an EMPTY placeholder, so the variable
// keeps its claim there. Spans with start > end are ignored.
func (s *SpanStore) Toggle(ann IndexedAnnotation, remove, keepEmpty bool) *SpanStore {
	id := ann.ID()
	changed := false

	for index := ann.Span.Start(); index <= ann.Span.End(); index++ {
		if old, ok := s.byToken[index][id]; ok {
			s.removeSpan(old, keepEmpty)
			changed = true
		}
	}

	if !remove && ann.Span.Start() <= ann.Span.End() {
		if ann.Value != EmptyValue {
			s.clearEmpty(ann.Span, ann.Variable)
		}
		for index := ann.Span.Start(); index <= ann.Span.End(); index++ {
			entry := ann
			entry.Index = index
			s.set(index, id, entry)
		}
		changed = true
	}

	if changed {
		s.version++
	}
	return s
}

// Replace writes an annotation after removing every other value of the same
// variable that overlaps its span. Used for variables that allow only one
// value per token. With keepEmpty the removed values leave EMPTY placeholders
// on their tokens outside the new span.
func (s *SpanStore) Replace(ann IndexedAnnotation, keepEmpty bool) *SpanStore {
	var overlapping []IndexedAnnotation
	for index := ann.Span.Start(); index <= ann.Span.End(); index++ {
		for _, other := range s.byToken[index] {
			if other.Variable == ann.Variable && other.Value != ann.Value && other.Value != EmptyValue {
				overlapping = append(overlapping, other)
			}
		}
	}
	for _, other := range overlapping {
		if _, ok := s.byToken[other.Index][other.ID()]; ok {
			s.removeSpan(other, keepEmpty)
		}
	}
	return s.Toggle(ann, false, keepEmpty)
}

// Export returns one wire annotation per span, emitted at the span start,
// ordered by token index and id.
func (s *SpanStore) Export() []OffsetAnnotation {
	var out []OffsetAnnotation
	for _, index := range s.Indices() {
		for _, ann := range s.At(index) {
			if ann.Index != ann.Span.Start() {
				continue
			}
			out = append(out, ann.OffsetAnnotation())
		}
	}
	return out
}

// ExportWithText is Export with the covered text and token span attached.
func (s *SpanStore) ExportWithText(tokens []Token) []DisplayAnnotation {
	positions := tokenPositions(tokens)
	var out []DisplayAnnotation
	for _, index := range s.Indices() {
		for _, ann := range s.At(index) {
			if ann.Index != ann.Span.Start() {
				continue
			}
			span := ann.Span
			out = append(out, DisplayAnnotation{
				OffsetAnnotation: ann.OffsetAnnotation(),
				Text:             spanText(tokens, positions, span),
				TokenSpan:        &span,
			})
		}
	}
	return out
}

// CheckInvariants verifies that every stored annotation is present, with the
// same span, at every token of its span. The same id may occur in several
// disjoint spans.
func (s *SpanStore) CheckInvariants() error {
	for index, entries := range s.byToken {
		if len(entries) == 0 {
			return fmt.Errorf("token %d has an empty annotation set", index)
		}
		for id, ann := range entries {
			if ann.ID() != id {
				return fmt.Errorf("token %d: annotation %s stored under %s", index, ann.ID(), id)
			}
			if ann.Index != index {
				return fmt.Errorf("token %d: annotation %s has index %d", index, id, ann.Index)
			}
			if !ann.Span.Contains(index) {
				return fmt.Errorf("token %d: annotation %s span %v does not cover it", index, id, ann.Span)
			}
			for j := ann.Span.Start(); j <= ann.Span.End(); j++ {
				other, ok := s.byToken[j][id]
				if !ok {
					return fmt.Errorf("annotation %s span %v missing at token %d", id, ann.Span, j)
				}
				if other.Span != ann.Span {
					return fmt.Errorf("annotation %s has spans %v and %v", id, ann.Span, other.Span)
				}
			}
		}
	}
	return nil
}

func (s *SpanStore) set(index int, id AnnotationID, ann IndexedAnnotation) {
	entries, ok := s.byToken[index]
	if !ok {
		entries = make(map[AnnotationID]IndexedAnnotation)
		s.byToken[index] = entries
	}
	entries[id] = ann
}

func (s *SpanStore) delete(index int, id AnnotationID) {
	entries, ok := s.byToken[index]
	if !ok {
		return
	}
	delete(entries, id)
	if len(entries) == 0 {
		delete(s.byToken, index)
	}
}

func (s *SpanStore) removeSpan(old IndexedAnnotation, keepEmpty bool) {
	id := old.ID()
	for index := old.Span.Start(); index <= old.Span.End(); index++ {
		s.delete(index, id)
	}
	if !keepEmpty || old.Value == EmptyValue {
		return
	}

	// placeholders go in contiguous runs of tokens left without the variable
	runStart := -1
	for index := old.Span.Start(); index <= old.Span.End(); index++ {
		if s.variablePresent(old.Variable, index) {
			if runStart >= 0 {
				s.setPlaceholder(old, Span{runStart, index - 1})
				runStart = -1
			}
			continue
		}
		if runStart < 0 {
			runStart = index
		}
	}
	if runStart >= 0 {
		s.setPlaceholder(old, Span{runStart, old.Span.End()})
	}
}

// setPlaceholder writes an EMPTY annotation of from's variable over span,
// which lies within from's span.
func (s *SpanStore) setPlaceholder(from IndexedAnnotation, span Span) {
	placeholder := from
	placeholder.Value = EmptyValue
	placeholder.Span = span
	placeholder.Offset, placeholder.Length = s.subExtent(from, span)

	id := placeholder.ID()
	for index := span.Start(); index <= span.End(); index++ {
		entry := placeholder
		entry.Index = index
		s.set(index, id, entry)
	}
}

// subExtent returns the offset and length of a part of from's span. Ends
// shared with from keep its offsets; inner ends need known token extents.
func (s *SpanStore) subExtent(from IndexedAnnotation, span Span) (int, int) {
	start, end := from.Offset, from.Offset+from.Length
	if span.Start() != from.Span.Start() {
		if extent, ok := s.extents[span.Start()]; ok {
			start = extent.offset
		}
	}
	if span.End() != from.Span.End() {
		if extent, ok := s.extents[span.End()]; ok {
			end = extent.end
		}
	}
	if end <= start {
		return from.Offset, from.Length
	}
	return start, end - start
}

// clearEmpty removes the EMPTY placeholders of a variable where they overlap
// span. Parts of a placeholder outside span stay, with their own span.
func (s *SpanStore) clearEmpty(span Span, variable string) {
	emptyID := NewAnnotationID(variable, EmptyValue)

	var overlapping []IndexedAnnotation
	for index := span.Start(); index <= span.End(); index++ {
		placeholder, ok := s.byToken[index][emptyID]
		if !ok {
			continue
		}
		// each placeholder is met first at span start or at its own start
		if index == span.Start() || index == placeholder.Span.Start() {
			overlapping = append(overlapping, placeholder)
		}
	}

	for _, placeholder := range overlapping {
		for i := placeholder.Span.Start(); i <= placeholder.Span.End(); i++ {
			s.delete(i, emptyID)
		}
		if placeholder.Span.Start() < span.Start() {
			s.setPlaceholder(placeholder, Span{placeholder.Span.Start(), span.Start() - 1})
		}
		if placeholder.Span.End() > span.End() {
			s.setPlaceholder(placeholder, Span{span.End() + 1, placeholder.Span.End()})
		}
	}
}

func (s *SpanStore) variablePresent(variable string, index int) bool {
	for _, ann := range s.byToken[index] {
		if ann.Variable == variable {
			return true
		}
	}
	return false
}

type importMarker struct {
	start []OffsetAnnotation
	end   []AnnotationID
}

// ImportSpanAnnotations converts wire annotations to token-indexed annotations
// and adds them to a copy of current (nil means an empty store).
// Annotations are matched to tokens by character offset: a span opens at the
// token covering its first character and closes at the token covering its
// last one. Boundaries in whitespace, including the leading and trailing
// whitespace of a field, snap to the nearest token inside the span;
// annotations that never close are dropped.
func ImportSpanAnnotations(annotations []OffsetAnnotation, tokens []Token, current *SpanStore) *SpanStore {
	store := NewSpanStore()
	if current != nil {
		store = current.Clone()
	}
	store.WithTokens(tokens)
	if len(annotations) == 0 {
		return store
	}

	markers := make(map[string]map[int]*importMarker)
	marker := func(field string, offset int) *importMarker {
		fieldMarkers, ok := markers[field]
		if !ok {
			fieldMarkers = make(map[int]*importMarker)
			markers[field] = fieldMarkers
		}
		m, ok := fieldMarkers[offset]
		if !ok {
			m = &importMarker{}
			fieldMarkers[offset] = m
		}
		return m
	}
	for _, a := range annotations {
		if a.Length <= 0 {
			continue
		}
		startMarker := marker(a.Field, a.Offset)
		startMarker.start = append(startMarker.start, a)
		endMarker := marker(a.Field, a.Offset+a.Length-1)
		endMarker.end = append(endMarker.end, a.ID())
	}

	open := make(map[AnnotationID]IndexedAnnotation)
	var matched []IndexedAnnotation
	previous := make(map[string]Token)

	closeAt := func(id AnnotationID, t Token) {
		ann, ok := open[id]
		if !ok || ann.Field != t.Field || t.Index < ann.Span.Start() {
			return
		}
		ann.Span[1] = t.Index
		ann.Length = t.Offset + t.Length - ann.Offset
		matched = append(matched, ann)
		delete(open, id)
	}

	for _, t := range tokens {
		fieldMarkers, ok := markers[t.Field]
		if !ok {
			continue
		}

		prev, hasPrev := previous[t.Field]
		from := t.Offset
		switch {
		case hasPrev && prev.End() < t.Offset:
			from = prev.End() + 1
		case !hasPrev:
			from = t.Offset - utf8.RuneCountInString(t.Pre)
		}
		previous[t.Field] = t

		for pos := from; pos <= t.End(); pos++ {
			m := fieldMarkers[pos]
			if m == nil {
				continue
			}
			for _, a := range m.start {
				offset := a.Offset
				if pos < t.Offset {
					offset = t.Offset
				}
				open[a.ID()] = IndexedAnnotation{
					Index:    t.Index,
					Variable: a.Variable,
					Value:    a.Value,
					Span:     Span{t.Index, t.Index},
					Length:   t.Length,
					Field:    a.Field,
					Offset:   offset,
					Section:  a.Section,
				}
			}
			for _, id := range m.end {
				if pos < t.Offset {
					if hasPrev {
						closeAt(id, prev)
					}
					continue
				}
				closeAt(id, t)
			}
		}
	}

	// ends in the trailing whitespace of a field close at its last token
	for field, last := range previous {
		fieldMarkers := markers[field]
		trailing := last.End() + utf8.RuneCountInString(last.Post)
		for pos := last.End() + 1; pos <= trailing; pos++ {
			if m := fieldMarkers[pos]; m != nil {
				for _, id := range m.end {
					closeAt(id, last)
				}
			}
		}
	}

	for _, ann := range matched {
		store.Toggle(ann, false, false)
	}
	return store
}
