package postgres

import _ "embed"

// Schema holds the DDL for the snapshot and scan id tables.
//
//go:embed schema.sql
var Schema string
