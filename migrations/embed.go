// Package migrations embeds the journal schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/homytech-sync/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Source returns the embedded migration files.
func Source() database.MigrationSource {
	return database.MigrationSource{FS: migrationsFS, Dir: "."}
}
