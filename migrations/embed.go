// Package migrations embeds the branch schema SQL files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
