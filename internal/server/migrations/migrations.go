// Package migrations embeds the goose SQL migrations for the Postgres
// coordination backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
