// Package migrations embeds the SQL schema for the local snapshot history.
package migrations

import (
	"embed"

	"github.com/nerrad567/hashpipe-gateway/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
