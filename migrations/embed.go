// Package migrations embeds the per-dialect SQL migrations applied at startup
// and in tests.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
