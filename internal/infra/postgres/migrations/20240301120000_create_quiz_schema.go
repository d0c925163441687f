package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 20240301120000_create_quiz_schema.up.sql
var createQuizSchemaSQL string

// Migrations is the ordered set applied by `migrate` and on server start.
var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createQuizSchemaSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS
				user_profiles, quiz_attempt_answers, quiz_attempts,
				quiz_session_questions, quiz_sessions, questions, topics, units, subjects`)
			return err
		},
	)
}
