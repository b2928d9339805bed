// Package pg wires up the PostgreSQL connection pool used by the
// notification store: pooled connect with startup retries, health probing,
// goose-based schema migrations, and helpers for classifying pgx errors.
package pg
