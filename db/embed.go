// Package db provides the embedded ledger schema.
package db

import _ "embed"

// Schema contains the DDL statements for all ledger tables. Every statement
// is idempotent so the schema can be applied on each start.
//
//go:embed migrations/001_schema.sql
var Schema string
