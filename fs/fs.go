package appfs

import "embed"

// FS holds the SQL migrations run by goose.
//go:embed migrations/*.sql
var FS embed.FS
