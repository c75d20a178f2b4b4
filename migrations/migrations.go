// Package migrations embeds the SQL schema for the local store and the
// remote service. Each dialect lives in its own directory and is handed to
// migration.Runner through fs.Sub.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
