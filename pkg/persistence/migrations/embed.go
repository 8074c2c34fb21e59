// Package migrations embeds the schema migration files so they ship
// inside the compiled binary, the way dittofs's postgres store embeds
// its own migration set for golang-migrate's iofs source.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
