// Package migrations embeds the SQL schema migrations so the server and the
// migrate command run the same files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
