package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/annotator-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/annotator-core/internal/core/domain"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driven"
	"github.com/custodia-labs/annotator-core/internal/core/ports/driving"
	"github.com/custodia-labs/annotator-core/internal/core/services"
)

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Seed a YAML annotation job (codebook and units) into PostgreSQL",
	Long: `Reads a job file and stores its codebook and units. Existing jobs and
units with the same IDs are updated. The codebook is compiled first, so a
job with an invalid codebook is never stored.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		file, err := readJobFile(args[0])
		if err != nil {
			return err
		}

		db, err := connectPostgres(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := seedJob(ctx, postgres.NewJobStore(db), services.NewCodebookService(nil, nil), file); err != nil {
			return err
		}
		log.Printf("Loaded job %s with %d units", file.ID, len(file.Units))
		return nil
	},
}

// jobFile is the YAML layout of a seeded job:
//
//	id: news-2024
//	title: News topics
//	codebook:
//	  type: annotate
//	  variables: [...]
//	units:
//	  - id: article-1
//	    fields:
//	      - {name: title, value: "..."}
type jobFile struct {
	domain.Job `yaml:",inline"`
	Units      []*domain.Unit `yaml:"units" validate:"dive"`
}

func readJobFile(path string) (*jobFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var file jobFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if file.Codebook.Type == "" {
		file.Codebook.Type = domain.CodebookTypeAnnotate
	}

	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid job file %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Units))
	for _, unit := range file.Units {
		if seen[unit.ID] {
			return nil, fmt.Errorf("invalid job file %s: %w: duplicate unit %s", path, domain.ErrInvalidInput, unit.ID)
		}
		seen[unit.ID] = true
	}
	return &file, nil
}

// seedJob compiles the codebook and stores the job followed by its units
func seedJob(ctx context.Context, store driven.JobStore, codebooks driving.CodebookService, file *jobFile) error {
	if _, err := codebooks.Compile(ctx, file.Codebook); err != nil {
		return fmt.Errorf("codebook of job %s: %w", file.ID, err)
	}

	job := file.Job
	if err := store.SaveJob(ctx, &job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	if len(file.Units) == 0 {
		return nil
	}
	if err := store.SaveUnits(ctx, job.ID, file.Units); err != nil {
		return fmt.Errorf("save units of job %s: %w", job.ID, err)
	}
	return nil
}
