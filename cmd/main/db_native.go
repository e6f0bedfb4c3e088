//go:build !cgo_sqlite

package main

import (
	_ "modernc.org/sqlite"
)

const sqliteDriver = "sqlite"

// sqliteParams enables the WAL journal and a busy timeout for every pooled
// connection, in modernc's _pragma syntax.
const sqliteParams = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
