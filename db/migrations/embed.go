// Package migrations embeds the schema migrations so the API binary can
// migrate without a checkout of this directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
