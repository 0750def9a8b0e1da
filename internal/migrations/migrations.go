// Package migrations embeds the postgres schema applied by cmd/migrate and
// the repository integration tests.
package migrations

import "embed"

// FS holds the numbered golang-migrate files.
//
//go:embed *.sql
var FS embed.FS
