// Package pgmigrations embeds the SQL schema for the Postgres job store.
package pgmigrations

import "embed"

// FS holds the golang-migrate up/down files.
//
//go:embed *.sql
var FS embed.FS
