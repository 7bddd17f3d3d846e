// Package postgres implements store.Store on PostgreSQL using pgx/v5.
// The schema ships as embedded SQL migrations applied by Migrate.
package postgres
