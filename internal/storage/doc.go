// Package storage provides the SQLite-backed local data layer for the
// PetPilot client: versioned schema migrations, per-entity repositories
// with domain validation, cascading deletes, and table snapshots for
// backup/restore. The database is a single-writer embedded resource;
// access is serialized through one connection.
package storage
