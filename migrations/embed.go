// Package migrations embeds the service's golang-migrate SQL files.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
