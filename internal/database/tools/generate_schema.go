// Command generate_schema migrates a scratch database and writes the
// resulting schema to internal/database/sqlc/schema.sql. Run it from the
// module root, usually through go generate.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cfs-go/internal/database"
	"cfs-go/internal/database/migrations"
)

const header = `-- Generated from internal/database/migrations/files by
-- internal/database/tools/generate_schema.go. Do not edit.
-- Regenerate with: go generate ./internal/database
`

func main() {
	out := filepath.Join("internal", "database", "sqlc", "schema.sql")
	if len(os.Args) > 1 {
		out = os.Args[1]
	}
	if err := run(out); err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", out)
}

func run(out string) error {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return fmt.Errorf("opening scratch database: %w", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return err
	}
	st, err := migrations.Check(db)
	if err != nil {
		return err
	}

	schema, err := dumpSchema(db)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("%s-- Schema version: %d\n\n%s", header, st.Version, schema)
	return os.WriteFile(out, []byte(body), 0644)
}

// dumpSchema returns the CREATE statements of every table and index,
// tables first. SQLite internals and the migration bookkeeping table are
// left out.
func dumpSchema(db *sql.DB) (string, error) {
	rows, err := db.Query(`
		SELECT sql FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY CASE type WHEN 'table' THEN 0 ELSE 1 END, name`)
	if err != nil {
		return "", fmt.Errorf("reading sqlite_master: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("reading sqlite_master: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	return b.String(), rows.Err()
}
