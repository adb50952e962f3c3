// Package migrations embeds SQL migration files.
package migrations

import "embed"

// PostgresFS contains the schema migrations for the postgres store.
//
//go:embed *.sql
var PostgresFS embed.FS

// PostgresDir is the directory within PostgresFS where migrations live.
const PostgresDir = "."
