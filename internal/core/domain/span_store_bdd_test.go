package domain

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/cucumber/godog"
)

type spanStoreFeature struct {
	tokens   []Token
	store    *SpanStore
	exported []OffsetAnnotation
}

func (f *spanStoreFeature) aUnitWithField(field, text string) error {
	f.tokens = Tokenize([]TextField{{Name: field, Value: text}})
	f.store = NewSpanStore()
	return nil
}

func (f *spanStoreFeature) annotationIsImported(variable, value string, offset, length int) error {
	field := f.tokens[0].Field
	f.store = ImportSpanAnnotations([]OffsetAnnotation{
		{Variable: variable, Value: value, Field: field, Offset: offset, Length: length},
	}, f.tokens, f.store)
	return nil
}

func (f *spanStoreFeature) edit(variable, value string, start, end int, apply func(IndexedAnnotation)) error {
	ann, err := AnnotationForSpan(f.tokens, variable, value, Span{start, end})
	if err != nil {
		return err
	}
	apply(ann)
	return nil
}

func (f *spanStoreFeature) isToggled(variable, value string, start, end int) error {
	return f.edit(variable, value, start, end, func(ann IndexedAnnotation) { f.store.Toggle(ann, false, false) })
}

func (f *spanStoreFeature) isRemoved(variable, value string, start, end int) error {
	return f.edit(variable, value, start, end, func(ann IndexedAnnotation) { f.store.Toggle(ann, true, false) })
}

func (f *spanStoreFeature) replaces(variable, value string, start, end int) error {
	return f.edit(variable, value, start, end, func(ann IndexedAnnotation) { f.store.Replace(ann, false) })
}

func (f *spanStoreFeature) tokenHolds(index int, id string, start, end int) error {
	ann, ok := f.store.Get(index, AnnotationID(id))
	if !ok {
		return fmt.Errorf("token %d does not hold %s: %v", index, id, f.store.At(index))
	}
	if ann.Span != (Span{start, end}) {
		return fmt.Errorf("token %d: expected span [%d,%d], got %v", index, start, end, ann.Span)
	}
	return nil
}

func (f *spanStoreFeature) tokenHoldsCount(index, count int) error {
	if got := len(f.store.At(index)); got != count {
		return fmt.Errorf("token %d: expected %d annotations, got %d", index, count, got)
	}
	return nil
}

func (f *spanStoreFeature) tokenHoldsNothing(index int) error {
	return f.tokenHoldsCount(index, 0)
}

func (f *spanStoreFeature) exportingYields(count int) error {
	f.exported = f.store.Export()
	if len(f.exported) != count {
		return fmt.Errorf("expected %d exported annotations, got %v", count, f.exported)
	}
	return nil
}

func (f *spanStoreFeature) exportContains(variable, value string, offset, length int) error {
	for _, a := range f.exported {
		if a.Variable == variable && a.Value == value && a.Offset == offset && a.Length == length {
			return nil
		}
	}
	return fmt.Errorf("export %v lacks %s=%s at %d+%d", f.exported, variable, value, offset, length)
}

func (f *spanStoreFeature) storeIsConsistent() error {
	return f.store.CheckInvariants()
}

func (f *spanStoreFeature) roundTrip() error {
	reimported := ImportSpanAnnotations(f.store.Export(), f.tokens, nil)
	if !reflect.DeepEqual(reimported.Snapshot(), f.store.Snapshot()) {
		return fmt.Errorf("round trip changed the store")
	}
	return nil
}

func initializeSpanStoreScenario(ctx *godog.ScenarioContext) {
	f := &spanStoreFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		*f = spanStoreFeature{}
		return ctx, nil
	})

	ctx.Step(`^a unit with field "([^"]*)" containing "([^"]*)"$`, f.aUnitWithField)
	ctx.Step(`^the annotation "([^"]*)" = "([^"]*)" is imported at offset (\d+) with length (\d+)$`, f.annotationIsImported)
	ctx.Step(`^"([^"]*)" = "([^"]*)" is toggled over tokens (\d+) to (\d+)$`, f.isToggled)
	ctx.Step(`^"([^"]*)" = "([^"]*)" is removed over tokens (\d+) to (\d+)$`, f.isRemoved)
	ctx.Step(`^"([^"]*)" = "([^"]*)" replaces over tokens (\d+) to (\d+)$`, f.replaces)
	ctx.Step(`^token (\d+) holds "([^"]*)" spanning (\d+) to (\d+)$`, f.tokenHolds)
	ctx.Step(`^token (\d+) holds (\d+) annotations?$`, f.tokenHoldsCount)
	ctx.Step(`^token (\d+) holds no annotations$`, f.tokenHoldsNothing)
	ctx.Step(`^exporting yields (\d+) annotations?$`, f.exportingYields)
	ctx.Step(`^the export contains "([^"]*)" = "([^"]*)" at offset (\d+) with length (\d+)$`, f.exportContains)
	ctx.Step(`^the store is consistent$`, f.storeIsConsistent)
	ctx.Step(`^exporting and importing again gives the same store$`, f.roundTrip)
}

func TestSpanStoreFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "span-store",
		ScenarioInitializer: initializeSpanStoreScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
