// Package migrations embeds the SQL schema files so the server binary
// can migrate on startup without shipping the directory alongside it.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
