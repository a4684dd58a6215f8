// Package postgres embeds SQL migration files.
package postgres

import "embed"

// PostgresFS contains the migrations for the users database.
//
//go:embed *.sql
var PostgresFS embed.FS

// PostgresDir is the directory within PostgresFS where migrations live.
const PostgresDir = "."
