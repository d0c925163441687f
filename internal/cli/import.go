package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"quiz-practice-service/internal/app"
	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewImportCmd loads a v1 question payload from disk into the configured store.
func NewImportCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a v1 question payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			if err := runMigrations(cmd.Context(), cfg); err != nil {
				return err
			}
			st, closeStore := openStore(cfg)
			defer closeStore()
			return importFile(cmd.Context(), app.NewCatalogService(st, nil), file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the JSON payload")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func importFile(ctx context.Context, catalog *app.CatalogService, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var payload app.ImportPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	result, err := catalog.Import(ctx, payload)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) && len(de.Fields) > 0 {
			for field, messages := range de.Fields {
				config.Logger().WithFields(logrus.Fields{"field": field, "problems": messages}).Error("invalid payload")
			}
		}
		return err
	}
	config.Logger().WithFields(logrus.Fields{
		"subject_id": result.SubjectID,
		"unit_id":    result.UnitID,
		"questions":  result.QuestionsUpserted,
	}).Info("import complete")
	return nil
}
