package domain

// RemainingQuestions in makes_irrelevant skips every question after the current one.
const RemainingQuestions = "REMAINING"

// IrrelevantQuestions returns the indices of questions that no longer need an
// answer after the codes in selected were chosen for questions[current].
//
// A selected code's makes_irrelevant names questions (or REMAINING) to skip.
// A question named in the required_for of any code of the current question is
// skipped unless one of the selected codes requires it.
func IrrelevantQuestions(questions []Question, current int, selected []string) map[int]bool {
	irrelevant := make(map[int]bool)
	if current < 0 || current >= len(questions) {
		return irrelevant
	}

	byName := make(map[string]int, len(questions))
	for i, q := range questions {
		byName[q.Name] = i
	}
	mark := func(name string) {
		if i, ok := byName[name]; ok && i != current {
			irrelevant[i] = true
		}
	}

	codes := make(map[string]CodeDefinition, len(questions[current].Codes))
	for _, def := range questions[current].Codes {
		codes[def.Code] = def
	}

	required := make(map[string]bool)
	for _, value := range selected {
		def, ok := codes[value]
		if !ok {
			continue
		}
		for _, name := range def.MakesIrrelevant {
			if name == RemainingQuestions {
				for i := current + 1; i < len(questions); i++ {
					irrelevant[i] = true
				}
				continue
			}
			mark(name)
		}
		for _, name := range def.RequiredFor {
			required[name] = true
		}
	}

	for _, def := range questions[current].Codes {
		for _, name := range def.RequiredFor {
			if !required[name] {
				mark(name)
			}
		}
	}

	return irrelevant
}
