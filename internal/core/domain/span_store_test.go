package domain

import (
	"encoding/json"
	"reflect"
	"sort"
	"testing"
)

func twoTokens() []Token {
	return []Token{
		{Index: 0, ArrayIndex: 0, Field: "text", Offset: 0, Length: 3, Text: "The", Post: " "},
		{Index: 1, ArrayIndex: 1, Field: "text", Offset: 4, Length: 5, Text: "quick"},
	}
}

func sortedExport(anns []OffsetAnnotation) []OffsetAnnotation {
	out := make([]OffsetAnnotation, len(anns))
	copy(out, anns)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Field != out[j].Field {
			return out[i].Field < out[j].Field
		}
		if out[i].Offset != out[j].Offset {
			return out[i].Offset < out[j].Offset
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

func TestImportSpanAnnotations_TwoTokenSpan(t *testing.T) {
	tokens := twoTokens()
	input := []OffsetAnnotation{{Variable: "v", Value: "A", Field: "text", Offset: 0, Length: 9}}

	store := ImportSpanAnnotations(input, tokens, nil)

	id := NewAnnotationID("v", "A")
	for _, index := range []int{0, 1} {
		ann, ok := store.Get(index, id)
		if !ok {
			t.Fatalf("expected annotation at token %d", index)
		}
		if ann.Span != (Span{0, 1}) {
			t.Errorf("token %d: expected span [0,1], got %v", index, ann.Span)
		}
		if ann.Index != index {
			t.Errorf("token %d: expected index %d, got %d", index, index, ann.Index)
		}
		if ann.Length != 9 || ann.Offset != 0 {
			t.Errorf("token %d: expected offset 0 length 9, got %d/%d", index, ann.Offset, ann.Length)
		}
	}
	if store.Len() != 2 {
		t.Errorf("expected 2 annotated tokens, got %d", store.Len())
	}

	exported := store.Export()
	if !reflect.DeepEqual(exported, input) {
		t.Errorf("expected export %v, got %v", input, exported)
	}
}

func TestImportSpanAnnotations_DoesNotModifyCurrent(t *testing.T) {
	tokens := twoTokens()
	current := NewSpanStore()
	current.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 0}, Field: "text", Length: 3}, false, false)

	store := ImportSpanAnnotations([]OffsetAnnotation{
		{Variable: "v", Value: "B", Field: "text", Offset: 4, Length: 5},
	}, tokens, current)

	if current.Len() != 1 {
		t.Errorf("expected current store untouched, got %d positions", current.Len())
	}
	if len(store.At(0)) != 1 || len(store.At(1)) != 1 {
		t.Errorf("expected one annotation at both tokens, got %v / %v", store.At(0), store.At(1))
	}
}

func TestImportSpanAnnotations_OffsetsInsideTokens(t *testing.T) {
	tokens := twoTokens()

	// starts inside "The", ends inside "quick"
	store := ImportSpanAnnotations([]OffsetAnnotation{
		{Variable: "v", Value: "A", Field: "text", Offset: 1, Length: 5},
	}, tokens, nil)

	ann, ok := store.Get(0, NewAnnotationID("v", "A"))
	if !ok {
		t.Fatal("expected annotation at token 0")
	}
	if ann.Span != (Span{0, 1}) {
		t.Errorf("expected span [0,1], got %v", ann.Span)
	}
	if ann.Offset != 1 || ann.Length != 8 {
		t.Errorf("expected offset 1 length 8, got %d/%d", ann.Offset, ann.Length)
	}
}

func TestImportSpanAnnotations_BoundariesInWhitespace(t *testing.T) {
	tokens := Tokenize([]TextField{{Name: "text", Value: "one  two  three"}})

	// starts in the gap before "two" and ends in the gap after it
	store := ImportSpanAnnotations([]OffsetAnnotation{
		{Variable: "v", Value: "A", Field: "text", Offset: 4, Length: 5},
	}, tokens, nil)

	ann, ok := store.Get(1, NewAnnotationID("v", "A"))
	if !ok {
		t.Fatal("expected annotation at token 1")
	}
	if ann.Span != (Span{1, 1}) {
		t.Errorf("expected span [1,1], got %v", ann.Span)
	}
	if ann.Offset != 5 || ann.Length != 3 {
		t.Errorf("expected snapped offset 5 length 3, got %d/%d", ann.Offset, ann.Length)
	}
	if store.Len() != 1 {
		t.Errorf("expected one annotated token, got %d", store.Len())
	}
}

func TestImportSpanAnnotations_FieldEdgeWhitespace(t *testing.T) {
	tokens := Tokenize([]TextField{{Name: "text", Value: " hello world "}})

	tests := []struct {
		name           string
		ann            OffsetAnnotation
		index          int
		offset, length int
	}{
		{
			name:   "starts before the first token",
			ann:    OffsetAnnotation{Variable: "v", Value: "A", Field: "text", Offset: 0, Length: 6},
			index:  0,
			offset: 1,
			length: 5,
		},
		{
			name:   "ends after the last token",
			ann:    OffsetAnnotation{Variable: "v", Value: "A", Field: "text", Offset: 7, Length: 6},
			index:  1,
			offset: 7,
			length: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := ImportSpanAnnotations([]OffsetAnnotation{tt.ann}, tokens, nil)
			if store.Len() != 1 {
				t.Fatalf("expected one annotated token, got %d", store.Len())
			}
			ann, ok := store.Get(tt.index, tt.ann.ID())
			if !ok {
				t.Fatalf("expected annotation at token %d", tt.index)
			}
			if ann.Span != (Span{tt.index, tt.index}) {
				t.Errorf("expected span [%d,%d], got %v", tt.index, tt.index, ann.Span)
			}
			if ann.Offset != tt.offset || ann.Length != tt.length {
				t.Errorf("expected offset %d length %d, got %d/%d", tt.offset, tt.length, ann.Offset, ann.Length)
			}
		})
	}

	// whole field including both edges
	store := ImportSpanAnnotations([]OffsetAnnotation{
		{Variable: "v", Value: "B", Field: "text", Offset: 0, Length: 13},
	}, tokens, nil)
	ann, ok := store.Get(0, NewAnnotationID("v", "B"))
	if !ok || ann.Span != (Span{0, 1}) {
		t.Errorf("expected B over [0,1], got %v (found %v)", ann.Span, ok)
	}
}

func TestImportSpanAnnotations_SkipsUnmatched(t *testing.T) {
	tokens := twoTokens()

	store := ImportSpanAnnotations([]OffsetAnnotation{
		{Variable: "v", Value: "A", Field: "other", Offset: 0, Length: 3},
		{Variable: "v", Value: "B", Field: "text", Offset: 0, Length: 100},
		{Variable: "v", Value: "C", Field: "text", Offset: 0, Length: 0},
	}, tokens, nil)

	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d positions", store.Len())
	}
}

func TestRoundTrip_ExportImport(t *testing.T) {
	tokens := Tokenize([]TextField{
		{Name: "title", Value: "Markets rally on news"},
		{Name: "text", Value: "Stocks rose sharply. Bonds fell.\nOil was flat."},
	})

	input := []OffsetAnnotation{
		{Variable: "topic", Value: "economy", Field: "title", Offset: 0, Length: 13},
		{Variable: "topic", Value: "finance", Field: "text", Offset: 0, Length: 20},
		{Variable: "topic", Value: "economy", Field: "text", Offset: 21, Length: 10},
		{Variable: "tone", Value: "positive", Field: "text", Offset: 7, Length: 4},
		{Variable: "tone", Value: "neutral", Field: "text", Offset: 33, Length: 13},
	}

	store := ImportSpanAnnotations(input, tokens, nil)
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}

	exported := store.Export()
	if !reflect.DeepEqual(sortedExport(exported), sortedExport(input)) {
		t.Errorf("round trip mismatch:\nwant %v\ngot  %v", sortedExport(input), sortedExport(exported))
	}

	reimported := ImportSpanAnnotations(exported, tokens, nil)
	if !reflect.DeepEqual(reimported.Snapshot(), store.Snapshot()) {
		t.Error("expected re-imported store to equal the original store")
	}
}

func TestToggle_AddAndRemove(t *testing.T) {
	store := NewSpanStore()
	ann := IndexedAnnotation{Variable: "v", Value: "A", Span: Span{1, 3}, Field: "text", Offset: 4, Length: 10}

	store.Toggle(ann, false, false)
	for i := 1; i <= 3; i++ {
		got, ok := store.Get(i, ann.ID())
		if !ok {
			t.Fatalf("expected annotation at %d", i)
		}
		if got.Index != i {
			t.Errorf("expected index %d, got %d", i, got.Index)
		}
	}
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}

	store.Toggle(ann, true, false)
	if store.Len() != 0 {
		t.Errorf("expected empty store after removal, got %d positions", store.Len())
	}
}

func TestToggle_ReplacesSameIDFromWholeOldSpan(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 4}, Field: "text"}, false, false)

	// new span only touches token 2, but the old span must disappear entirely
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{2, 2}, Field: "text"}, false, false)

	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("expected only token 2 annotated, got %v", store.Indices())
	}
	ann, ok := store.Get(2, NewAnnotationID("v", "A"))
	if !ok || ann.Span != (Span{2, 2}) {
		t.Errorf("expected span [2,2] at token 2, got %v (%v)", ann.Span, ok)
	}
}

func TestToggle_RemoveIsIdempotent(t *testing.T) {
	store := NewSpanStore()
	a := IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 2}, Field: "text"}
	b := IndexedAnnotation{Variable: "w", Value: "B", Span: Span{1, 1}, Field: "text"}
	store.Toggle(a, false, false)
	store.Toggle(b, false, false)

	store.Toggle(a, true, false)
	once := store.Snapshot()
	version := store.Version()

	store.Toggle(a, true, false)
	if !reflect.DeepEqual(once, store.Snapshot()) {
		t.Error("expected second removal to leave the store unchanged")
	}
	if store.Version() != version {
		t.Errorf("expected version %d after no-op removal, got %d", version, store.Version())
	}
}

func TestToggle_KeepEmpty(t *testing.T) {
	store := NewSpanStore()
	ann := IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 1}, Field: "text", Length: 9}
	store.Toggle(ann, false, false)

	store.Toggle(ann, true, true)

	emptyID := NewAnnotationID("v", EmptyValue)
	for i := 0; i <= 1; i++ {
		placeholder, ok := store.Get(i, emptyID)
		if !ok {
			t.Fatalf("expected EMPTY placeholder at %d", i)
		}
		if placeholder.Span != (Span{0, 1}) {
			t.Errorf("expected placeholder span [0,1], got %v", placeholder.Span)
		}
		if _, ok := store.Get(i, ann.ID()); ok {
			t.Errorf("expected annotation removed at %d", i)
		}
	}

	// writing a value clears the placeholder only where the value lands
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "B", Span: Span{1, 1}, Field: "text"}, false, false)
	if _, ok := store.Get(1, emptyID); ok {
		t.Error("expected placeholder cleared at token 1")
	}
	placeholder, ok := store.Get(0, emptyID)
	if !ok {
		t.Fatal("expected placeholder kept at token 0")
	}
	if placeholder.Span != (Span{0, 0}) {
		t.Errorf("expected remaining placeholder span [0,0], got %v", placeholder.Span)
	}
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestToggle_KeepEmptyPerToken(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 2}}, false, false)
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "B", Span: Span{2, 2}}, false, false)

	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 2}}, true, true)

	emptyID := NewAnnotationID("v", EmptyValue)
	for i := 0; i <= 1; i++ {
		placeholder, ok := store.Get(i, emptyID)
		if !ok {
			t.Fatalf("expected EMPTY placeholder at %d", i)
		}
		if placeholder.Span != (Span{0, 1}) {
			t.Errorf("token %d: expected placeholder span [0,1], got %v", i, placeholder.Span)
		}
	}
	if _, ok := store.Get(2, emptyID); ok {
		t.Error("expected no placeholder where B remains")
	}
	if _, ok := store.Get(2, NewAnnotationID("v", "B")); !ok {
		t.Error("expected B to remain")
	}
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestToggle_KeepEmptySplitsAroundOtherValue(t *testing.T) {
	tokens := Tokenize([]TextField{{Name: "text", Value: "one two three four"}})
	store := NewSpanStore().WithTokens(tokens)

	a, err := AnnotationForSpan(tokens, "v", "A", Span{0, 3})
	if err != nil {
		t.Fatal(err)
	}
	b, err := AnnotationForSpan(tokens, "v", "B", Span{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	store.Toggle(a, false, false)
	store.Toggle(b, false, false)

	store.Toggle(a, true, true)

	emptyID := NewAnnotationID("v", EmptyValue)
	tests := []struct {
		index          int
		span           Span
		offset, length int
	}{
		{0, Span{0, 0}, 0, 3},
		{2, Span{2, 3}, 8, 10},
		{3, Span{2, 3}, 8, 10},
	}
	for _, tt := range tests {
		placeholder, ok := store.Get(tt.index, emptyID)
		if !ok {
			t.Fatalf("expected EMPTY placeholder at %d", tt.index)
		}
		if placeholder.Span != tt.span {
			t.Errorf("token %d: expected span %v, got %v", tt.index, tt.span, placeholder.Span)
		}
		if placeholder.Offset != tt.offset || placeholder.Length != tt.length {
			t.Errorf("token %d: expected offset %d length %d, got %d/%d",
				tt.index, tt.offset, tt.length, placeholder.Offset, placeholder.Length)
		}
	}
	if _, ok := store.Get(1, emptyID); ok {
		t.Error("expected no placeholder at token 1")
	}
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestToggle_KeepEmptyWhenSpanMoves(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 3}}, false, false)

	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{2, 2}}, false, true)

	emptyID := NewAnnotationID("v", EmptyValue)
	want := map[int]Span{0: {0, 1}, 1: {0, 1}, 3: {3, 3}}
	for index, span := range want {
		placeholder, ok := store.Get(index, emptyID)
		if !ok {
			t.Fatalf("expected EMPTY placeholder at %d", index)
		}
		if placeholder.Span != span {
			t.Errorf("token %d: expected span %v, got %v", index, span, placeholder.Span)
		}
	}

	anns := store.At(2)
	if len(anns) != 1 || anns[0].Value != "A" || anns[0].Span != (Span{2, 2}) {
		t.Errorf("expected only A [2,2] at token 2, got %v", anns)
	}
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestToggle_InvertedSpanIsNoop(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{3, 1}}, false, false)
	if store.Len() != 0 || store.Version() != 0 {
		t.Errorf("expected untouched store, got %d positions version %d", store.Len(), store.Version())
	}
}

func TestReplace_SingleValuePerVariable(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 1}, Field: "text"}, false, false)
	store.Toggle(IndexedAnnotation{Variable: "w", Value: "X", Span: Span{0, 1}, Field: "text"}, false, false)

	store.Replace(IndexedAnnotation{Variable: "v", Value: "B", Span: Span{0, 1}, Field: "text"}, false)

	for i := 0; i <= 1; i++ {
		anns := store.At(i)
		if len(anns) != 2 {
			t.Fatalf("token %d: expected 2 annotations, got %v", i, anns)
		}
		values := map[string]string{}
		for _, a := range anns {
			values[a.Variable] = a.Value
		}
		if values["v"] != "B" || values["w"] != "X" {
			t.Errorf("token %d: expected v=B w=X, got %v", i, values)
		}
	}
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestReplace_PartialOverlapRemovesWholeOldSpan(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 3}}, false, false)

	store.Replace(IndexedAnnotation{Variable: "v", Value: "B", Span: Span{3, 5}}, false)

	for i := 0; i <= 2; i++ {
		if len(store.At(i)) != 0 {
			t.Errorf("expected token %d to be empty, got %v", i, store.At(i))
		}
	}
	for i := 3; i <= 5; i++ {
		if _, ok := store.Get(i, NewAnnotationID("v", "B")); !ok {
			t.Errorf("expected B at token %d", i)
		}
	}
}

func TestReplace_KeepEmptyOutsideNewSpan(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 3}}, false, false)

	store.Replace(IndexedAnnotation{Variable: "v", Value: "B", Span: Span{2, 3}}, true)

	emptyID := NewAnnotationID("v", EmptyValue)
	for i := 0; i <= 1; i++ {
		placeholder, ok := store.Get(i, emptyID)
		if !ok {
			t.Fatalf("expected EMPTY placeholder at %d", i)
		}
		if placeholder.Span != (Span{0, 1}) {
			t.Errorf("token %d: expected span [0,1], got %v", i, placeholder.Span)
		}
	}
	for i := 2; i <= 3; i++ {
		anns := store.At(i)
		if len(anns) != 1 || anns[0].Value != "B" {
			t.Errorf("token %d: expected only B, got %v", i, anns)
		}
	}
	if err := store.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestExportWithText(t *testing.T) {
	tokens := twoTokens()
	store := ImportSpanAnnotations([]OffsetAnnotation{
		{Variable: "v", Value: "A", Field: "text", Offset: 0, Length: 9},
	}, tokens, nil)

	out := store.ExportWithText(tokens)
	if len(out) != 1 {
		t.Fatalf("expected 1 annotation, got %d", len(out))
	}
	if out[0].Text != "The quick" {
		t.Errorf("expected text 'The quick', got %q", out[0].Text)
	}
	if out[0].TokenSpan == nil || *out[0].TokenSpan != (Span{0, 1}) {
		t.Errorf("expected token span [0,1], got %v", out[0].TokenSpan)
	}
}

func TestSpanStore_CloneIsIndependent(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 0}}, false, false)

	clone := store.Clone()
	clone.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 0}}, true, false)

	if store.Len() != 1 {
		t.Error("expected original store to keep its annotation")
	}
	if clone.Len() != 0 {
		t.Error("expected clone to be empty")
	}
}

func TestSpanStore_MarshalJSON(t *testing.T) {
	store := NewSpanStore()
	store.Toggle(IndexedAnnotation{Variable: "v", Value: "A", Span: Span{0, 0}, Field: "text", Length: 3}, false, false)

	data, err := json.Marshal(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]map[string]IndexedAnnotation
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ann, ok := decoded["0"]["v|A"]
	if !ok {
		t.Fatalf("expected v|A at token 0, got %s", data)
	}
	if ann.Span != (Span{0, 0}) || ann.Length != 3 {
		t.Errorf("unexpected annotation %+v", ann)
	}
}
