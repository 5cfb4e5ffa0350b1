// Package db embeds the SQL schema applied at startup.
package db

import _ "embed"

// Schema holds the idempotent DDL for orders, tables, discounts and the
// supporting catalog tables. Statements use IF NOT EXISTS so re-applying on
// every boot is safe.
//
//go:embed migrations/001_schema.sql
var Schema string
