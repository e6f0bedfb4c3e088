//go:build cgo_sqlite

package main

import (
	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriver = "sqlite3"

// sqliteParams enables the WAL journal and a busy timeout in go-sqlite3's
// connection string syntax.
const sqliteParams = "_journal_mode=WAL&_busy_timeout=5000"
