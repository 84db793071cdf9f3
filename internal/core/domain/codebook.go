package domain

import (
	"fmt"
	"sort"
)

// CodebookType selects how a job is coded
type CodebookType string

const (
	// CodebookTypeAnnotate tags token spans with variable codes
	CodebookTypeAnnotate CodebookType = "annotate"
	// CodebookTypeQuestions asks structured questions about the whole unit
	CodebookTypeQuestions CodebookType = "questions"
)

// CodeDefinition is one entry of a flat codebook edge list.
type CodeDefinition struct {
	Code            string   `json:"code" yaml:"code" validate:"required"`
	Parent          string   `json:"parent,omitempty" yaml:"parent,omitempty"`
	Active          *bool    `json:"active,omitempty" yaml:"active,omitempty"` // nil means active
	Folded          bool     `json:"folded,omitempty" yaml:"folded,omitempty"`
	Color           string   `json:"color,omitempty" yaml:"color,omitempty"`
	MakesIrrelevant []string `json:"makes_irrelevant,omitempty" yaml:"makes_irrelevant,omitempty"`
	RequiredFor     []string `json:"required_for,omitempty" yaml:"required_for,omitempty"`
}

// Code is a compiled codebook entry with its position in the hierarchy.
type Code struct {
	Code                string   `json:"code"`
	Parent              string   `json:"parent"`
	Tree                []string `json:"tree"` // Ancestors, root first
	Active              bool     `json:"active"`
	ActiveParent        bool     `json:"active_parent"`
	Folded              bool     `json:"folded"`
	FoldToParent        string   `json:"fold_to_parent,omitempty"`
	Children            []string `json:"children"`
	TotalChildren       int      `json:"total_children"`
	TotalActiveChildren int      `json:"total_active_children"`
	Color               string   `json:"color"`
	MakesIrrelevant     []string `json:"makes_irrelevant"`
	RequiredFor         []string `json:"required_for"`
}

// Selectable reports whether coders can pick this code
func (c Code) Selectable() bool {
	return c.Active && c.ActiveParent
}

// CodeMap maps code string to compiled code
type CodeMap map[string]Code

// CompileCodes builds the code hierarchy from a flat edge list.
// Parents that are referenced but not defined become inactive root codes.
// A parent chain that loops back on itself returns a *CyclicCodebookError.
func CompileCodes(defs []CodeDefinition) (CodeMap, error) {
	codes := make(map[string]*Code, len(defs))
	order := make([]string, 0, len(defs))

	for _, def := range defs {
		if def.Code == "" {
			return nil, fmt.Errorf("%w: code without a name", ErrInvalidInput)
		}
		if _, ok := codes[def.Code]; ok {
			return nil, fmt.Errorf("%w: duplicate code %q", ErrInvalidInput, def.Code)
		}

		active := true
		if def.Active != nil {
			active = *def.Active
		}
		color := def.Color
		if color == "" {
			color = RandomColor(def.Code)
		}

		codes[def.Code] = &Code{
			Code:            def.Code,
			Parent:          def.Parent,
			Tree:            []string{},
			Active:          active,
			ActiveParent:    true,
			Folded:          def.Folded,
			Children:        []string{},
			Color:           color,
			MakesIrrelevant: nonNil(def.MakesIrrelevant),
			RequiredFor:     nonNil(def.RequiredFor),
		}
		order = append(order, def.Code)
	}

	for _, code := range order {
		parent := codes[code].Parent
		if parent == "" {
			continue
		}
		if _, ok := codes[parent]; ok {
			continue
		}
		codes[parent] = &Code{
			Code:            parent,
			Tree:            []string{},
			ActiveParent:    true,
			Children:        []string{},
			Color:           RandomColor(parent),
			MakesIrrelevant: []string{},
			RequiredFor:     []string{},
		}
		order = append(order, parent)
	}

	for _, name := range order {
		code := codes[name]
		visited := map[string]bool{name: true}
		path := []string{name}

		var ancestors []string
		for parent := code.Parent; parent != ""; parent = codes[parent].Parent {
			path = append(path, parent)
			if visited[parent] {
				return nil, &CyclicCodebookError{Code: name, Path: path}
			}
			visited[parent] = true
			ancestors = append(ancestors, parent)

			p := codes[parent]
			if p.Folded {
				if !p.Active {
					code.ActiveParent = false
				}
				code.FoldToParent = parent
			}
		}

		for i := len(ancestors) - 1; i >= 0; i-- {
			code.Tree = append(code.Tree, ancestors[i])
		}
	}

	for _, name := range order {
		code := codes[name]
		if code.Parent != "" {
			parent := codes[code.Parent]
			parent.Children = append(parent.Children, name)
		}
		for _, ancestor := range code.Tree {
			codes[ancestor].TotalChildren++
			if code.Selectable() {
				codes[ancestor].TotalActiveChildren++
			}
		}
	}

	out := make(CodeMap, len(codes))
	for name, code := range codes {
		out[name] = *code
	}
	return out, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// Selectable returns the subset of codes coders can pick
func (m CodeMap) Selectable() CodeMap {
	out := make(CodeMap, len(m))
	for name, code := range m {
		if code.Selectable() {
			out[name] = code
		}
	}
	return out
}

// CodeTreeItem is one row of the flattened display tree
type CodeTreeItem struct {
	Code
	Level int `json:"level"`
	Index int `json:"index"`
}

// CodeTreeArray flattens the hierarchy depth first, parents before children.
// Roots are ordered by name; children keep codebook order.
func CodeTreeArray(codeMap CodeMap) []CodeTreeItem {
	var roots []string
	for name, code := range codeMap {
		if code.Parent == "" {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)

	items := make([]CodeTreeItem, 0, len(codeMap))
	var walk func(name string, level int)
	walk = func(name string, level int) {
		code, ok := codeMap[name]
		if !ok {
			return
		}
		items = append(items, CodeTreeItem{Code: code, Level: level, Index: len(items)})
		for _, child := range code.Children {
			walk(child, level+1)
		}
	}
	for _, root := range roots {
		walk(root, 0)
	}
	return items
}

// Variable is a named annotation dimension with its codes.
type Variable struct {
	Name        string           `json:"name" yaml:"name" validate:"required"`
	Instruction string           `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	Multiple    bool             `json:"multiple,omitempty" yaml:"multiple,omitempty"` // Allow several values per token
	Codes       []CodeDefinition `json:"codes" yaml:"codes" validate:"dive"`
}

// Question is a variable asked about a whole unit in questions mode.
type Question struct {
	Name     string           `json:"name" yaml:"name" validate:"required"`
	Question string           `json:"question" yaml:"question"`
	Type     string           `json:"type,omitempty" yaml:"type,omitempty"`
	Codes    []CodeDefinition `json:"codes" yaml:"codes" validate:"dive"`
}

// Codebook describes what coders annotate in a job
type Codebook struct {
	Type      CodebookType `json:"type" yaml:"type"`
	Variables []Variable   `json:"variables,omitempty" yaml:"variables,omitempty" validate:"dive"`
	Questions []Question   `json:"questions,omitempty" yaml:"questions,omitempty" validate:"dive"`
}

// CompiledVariable is a variable with its selectable codes
type CompiledVariable struct {
	Name        string  `json:"name"`
	Instruction string  `json:"instruction,omitempty"`
	Multiple    bool    `json:"multiple"`
	CodeMap     CodeMap `json:"code_map"`
}

// VariableMap maps variable name to compiled variable
type VariableMap map[string]CompiledVariable

// CompileVariables compiles the codes of every variable.
// Each CodeMap holds only selectable codes.
func CompileVariables(variables []Variable) (VariableMap, error) {
	out := make(VariableMap, len(variables))
	for _, v := range variables {
		if v.Name == "" {
			return nil, fmt.Errorf("%w: variable without a name", ErrInvalidInput)
		}
		if _, ok := out[v.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate variable %q", ErrInvalidInput, v.Name)
		}
		codeMap, err := CompileCodes(v.Codes)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", v.Name, err)
		}
		out[v.Name] = CompiledVariable{
			Name:        v.Name,
			Instruction: v.Instruction,
			Multiple:    v.Multiple,
			CodeMap:     codeMap.Selectable(),
		}
	}
	return out, nil
}
