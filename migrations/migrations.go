// Package migrations embeds the Postgres schema applied by `callpilot migrate`.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
