// Package migrations embeds the Postgres schema so the migrate binary ships without loose files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
