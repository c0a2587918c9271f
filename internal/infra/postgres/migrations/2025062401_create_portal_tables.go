package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_portal_tables.sql
var createPortalTablesSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createPortalTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS response_ratings;
				DROP TABLE IF EXISTS text_responses;
				DROP TABLE IF EXISTS recordings;
				DROP TABLE IF EXISTS scenarios;
				DROP TABLE IF EXISTS profiles`)
			return err
		},
	)
}
