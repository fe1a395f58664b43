// Package database provides durable implementations of the marketplace ledgers:
// an embedded SQLite store and a PostgreSQL store.
//
// Amounts and token ids exceed 64 bits, so both stores keep them as base-10 text
// (NUMERIC in PostgreSQL) and addresses as lowercase hex.
package database
