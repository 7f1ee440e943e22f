// Package appfs embeds the static assets shipped with the binaries: SQL migrations, email templates and data files.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
