// Package migrations embeds the order API's goose SQL migrations.
package migrations

import "embed"

//go:embed *.sql
var MigrationsFS embed.FS
