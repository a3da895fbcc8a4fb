// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package, using pgx through
// database/sql. It also embeds the goose migrations that create the schema.
package postgres
