// Package migrations embeds the sqlkv schema migration files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
