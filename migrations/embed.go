// Package migrations embeds the tenant schema SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
