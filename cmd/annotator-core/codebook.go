package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driving"
	"github.com/custodia-labs/annotator-core/internal/core/services"
)

var codebookCmd = &cobra.Command{
	Use:   "codebook FILE",
	Short: "Compile a YAML codebook and print its code trees",
	Long: `Compiles a codebook the same way the API does and prints every variable
as a tree, with the display color of each code. Cyclic parent chains and
invalid definitions are reported as errors.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codebook, err := readCodebook(args[0])
		if err != nil {
			return err
		}

		compiled, err := services.NewCodebookService(nil, nil).Compile(cmd.Context(), *codebook)
		if err != nil {
			return fmt.Errorf("compile %s: %w", args[0], err)
		}

		fmt.Fprint(cmd.OutOrStdout(), renderCodebook(compiled))
		return nil
	},
}

var (
	variableStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	noteStyle     = lipgloss.NewStyle().Faint(true)
	inactiveStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
)

// readCodebook parses and validates a YAML codebook file
func readCodebook(path string) (*domain.Codebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read codebook: %w", err)
	}

	var codebook domain.Codebook
	if err := yaml.Unmarshal(data, &codebook); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if codebook.Type == "" {
		codebook.Type = domain.CodebookTypeAnnotate
	}

	if err := validator.New().Struct(codebook); err != nil {
		return nil, fmt.Errorf("invalid codebook %s: %w", path, err)
	}
	return &codebook, nil
}

// renderCodebook draws one tree per variable, variables in name order
func renderCodebook(compiled *driving.CompiledCodebook) string {
	names := make([]string, 0, len(compiled.Variables))
	for name := range compiled.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}

		variable := compiled.Variables[name]
		b.WriteString(variableStyle.Render(name))
		if variable.Multiple {
			b.WriteString(" " + noteStyle.Render("(multiple)"))
		}
		b.WriteString("\n")
		if variable.Instruction != "" {
			b.WriteString(noteStyle.Render(variable.Instruction) + "\n")
		}

		for _, item := range compiled.Trees[name] {
			b.WriteString(renderTreeItem(item))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderTreeItem(item domain.CodeTreeItem) string {
	swatch := lipgloss.NewStyle().
		Background(lipgloss.Color(terminalColor(item.Color))).
		Render("  ")

	label := item.Code.Code
	if !item.Active {
		label = inactiveStyle.Render(label)
	}

	line := strings.Repeat("  ", item.Level) + swatch + " " + label
	if item.Folded && item.FoldToParent != "" {
		line += " " + noteStyle.Render("folds into "+item.FoldToParent)
	}
	if item.TotalChildren > 0 {
		line += " " + noteStyle.Render(fmt.Sprintf("[%d/%d active]", item.TotalActiveChildren, item.TotalChildren))
	}
	return line
}

// terminalColor drops the alpha suffix of #rrggbbaa colors
func terminalColor(color string) string {
	if strings.HasPrefix(color, "#") && len(color) == 9 {
		return color[:7]
	}
	return color
}
