// Package migrations embeds the schema migration files so they are compiled
// into the binary and applied at startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
