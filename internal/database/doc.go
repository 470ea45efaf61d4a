// Package database manages the PostgreSQL connection pool used by the
// account credential store and the order store.
package database
