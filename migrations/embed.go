// Package migrations embeds the journal schema into the binary.
package migrations

import "embed"

// FS holds the *.up.sql migration files.
//
//go:embed *.sql
var FS embed.FS
