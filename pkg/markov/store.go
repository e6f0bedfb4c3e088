package markov

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
)

// SetupSchema initializes the necessary tables in the provided database.
// This function should be called once on a new database before any other
// operations are performed. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS markov_vocabulary (
    token_id INTEGER PRIMARY KEY,
    token_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    token_count INTEGER NOT NULL DEFAULT 0
);
`
		schemaChains = `
CREATE TABLE IF NOT EXISTS markov_chains (
    model_id INTEGER NOT NULL,
    token_id INTEGER NOT NULL,
    next_token_id INTEGER NOT NULL,
    frequency  INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, token_id, next_token_id)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	// If the transaction succeeds, tx.Commit() will be called first, and the rollback will do nothing. If it fails, this will clean up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaVocab); err != nil {
		return fmt.Errorf("could not create vocabulary schema: %w", err)
	}

	if _, err = tx.Exec(schemaModels); err != nil {
		return fmt.Errorf("could not create models schema: %w", err)
	}

	if _, err = tx.Exec(schemaChains); err != nil {
		return fmt.Errorf("could not create chains schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// Store persists frequency models in a SQLite database. It holds the database
// connection and prepared SQL statements for efficient database interaction.
// Models are loaded into memory as *Model for evaluation and generation.
type Store struct {
	db                *sql.DB
	stmtGetModelInfo  *sql.Stmt
	stmtGetModels     *sql.Stmt
	stmtPruneModel    *sql.Stmt
	stmtModelChains   *sql.Stmt
	stmtModelWords    *sql.Stmt
	stmtModelFreq     *sql.Stmt
	stmtGetChains     *sql.Stmt
	stmtGetVocabLen   *sql.Stmt
	stmtInsertVocab   *sql.Stmt
	stmtUpsertModel   *sql.Stmt
	stmtInsertChain   *sql.Stmt
	stmtDeleteChains  *sql.Stmt
	stmtGetNextTokens *sql.Stmt
	logger            *slog.Logger
}

// NewStore creates and returns a new Store. The schema must already exist
// (see SetupSchema). It pre-compiles all necessary SQL statements, returning
// an error if any preparation fails.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{
		db:     db,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	statements := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtGetModelInfo, `SELECT model_id, token_count FROM markov_models WHERE model_name = ?;`},
		{&s.stmtGetModels, `SELECT model_id, model_name, token_count FROM markov_models;`},
		{&s.stmtPruneModel, `DELETE FROM markov_chains WHERE model_id = ? AND frequency <= ?;`},
		{&s.stmtModelChains, `SELECT COUNT(*) FROM markov_chains WHERE model_id = ?;`},
		{&s.stmtModelWords, `SELECT COUNT(DISTINCT token_id) FROM markov_chains WHERE model_id = ?;`},
		{&s.stmtModelFreq, `SELECT coalesce(SUM(frequency), 0) FROM markov_chains WHERE model_id = ?;`},
		{&s.stmtGetChains, `
SELECT cur.token_text, nxt.token_text, c.frequency
FROM markov_chains c
JOIN markov_vocabulary cur ON cur.token_id = c.token_id
JOIN markov_vocabulary nxt ON nxt.token_id = c.next_token_id
WHERE c.model_id = ?;`},
		{&s.stmtGetVocabLen, `SELECT COUNT(*) FROM markov_vocabulary;`},
		{&s.stmtInsertVocab, `INSERT INTO markov_vocabulary (token_text) VALUES (?) ON CONFLICT(token_text) DO UPDATE SET token_text=excluded.token_text RETURNING token_id;`},
		{&s.stmtUpsertModel, `INSERT INTO markov_models (model_name, token_count) VALUES (?, ?) ON CONFLICT(model_name) DO UPDATE SET token_count=excluded.token_count RETURNING model_id;`},
		{&s.stmtInsertChain, `INSERT INTO markov_chains (model_id, token_id, next_token_id, frequency) VALUES (?, ?, ?, ?) ON CONFLICT(model_id, token_id, next_token_id) DO UPDATE SET frequency = frequency + excluded.frequency;`},
		{&s.stmtDeleteChains, `DELETE FROM markov_chains WHERE model_id = ?;`},
		{&s.stmtGetNextTokens, `
SELECT nxt.token_text, c.frequency
FROM markov_chains c
JOIN markov_vocabulary cur ON cur.token_id = c.token_id
JOIN markov_vocabulary nxt ON nxt.token_id = c.next_token_id
WHERE c.model_id = ? AND cur.token_text = ?
ORDER BY nxt.token_text;`},
	}

	for _, st := range statements {
		stmt, err := db.Prepare(st.query)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("could not prepare statement: %w", err)
		}
		*st.dst = stmt
	}

	return s, nil
}

// Close releases all prepared SQL statements held by the Store. It should be
// called when the Store is no longer needed to free up database resources.
// The database connection itself is left open.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{
		s.stmtGetModelInfo,
		s.stmtGetModels,
		s.stmtPruneModel,
		s.stmtModelChains,
		s.stmtModelWords,
		s.stmtModelFreq,
		s.stmtGetChains,
		s.stmtGetVocabLen,
		s.stmtInsertVocab,
		s.stmtUpsertModel,
		s.stmtInsertChain,
		s.stmtDeleteChains,
		s.stmtGetNextTokens,
	} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
// Providing a `log/slog.Logger` will enable logging for saving, importing,
// pruning and other operations.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}
