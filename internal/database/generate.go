package database

// sqlc/schema.sql is derived from the migrations and feeds both sqlc and the
// Schema used by in-memory test databases. After adding a migration or
// editing sqlc/queries, run:
//
//	go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
//go:generate sh -c "cd ../.. && sqlc generate -f internal/database/sqlc/sqlc.yaml"
