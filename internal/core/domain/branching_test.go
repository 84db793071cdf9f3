package domain

import (
	"reflect"
	"testing"
)

func survey() []Question {
	return []Question{
		{Name: "relevant", Codes: []CodeDefinition{
			{Code: "yes"},
			{Code: "no", MakesIrrelevant: []string{RemainingQuestions}},
		}},
		{Name: "actor", Codes: []CodeDefinition{
			{Code: "person", RequiredFor: []string{"gender"}},
			{Code: "organisation", RequiredFor: []string{"sector"}},
			{Code: "none", MakesIrrelevant: []string{"tone"}},
		}},
		{Name: "gender", Codes: []CodeDefinition{{Code: "f"}, {Code: "m"}}},
		{Name: "sector", Codes: []CodeDefinition{{Code: "public"}, {Code: "private"}}},
		{Name: "tone", Codes: []CodeDefinition{{Code: "positive"}, {Code: "negative"}}},
	}
}

func TestIrrelevantQuestions(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		selected []string
		want     map[int]bool
	}{
		{"nothing skipped", 0, []string{"yes"}, map[int]bool{}},
		{"remaining", 0, []string{"no"}, map[int]bool{1: true, 2: true, 3: true, 4: true}},
		{"required for person", 1, []string{"person"}, map[int]bool{3: true}},
		{"required for organisation", 1, []string{"organisation"}, map[int]bool{2: true}},
		{"both required", 1, []string{"person", "organisation"}, map[int]bool{}},
		{"named question", 1, []string{"none"}, map[int]bool{2: true, 3: true, 4: true}},
		{"unknown answer", 1, []string{"alien"}, map[int]bool{2: true, 3: true}},
		{"out of range", 9, []string{"no"}, map[int]bool{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IrrelevantQuestions(survey(), tt.current, tt.selected)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
