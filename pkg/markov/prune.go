package markov

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Prune returns a copy of m without the links observed minFreq times or
// fewer. Words left without any successor are dropped, so the copy keeps the
// invariant that every present word has at least one successor. m itself is
// not modified.
func (m *Model) Prune(minFreq int) *Model {
	pruned := NewModel()
	for current, successors := range m.chains {
		for next, n := range successors {
			if n > minFreq {
				pruned.add(current, next, n)
			}
		}
	}
	return pruned
}

// PruneModel removes all chain links from a stored model that have a frequency
// less than or equal to `minFreq`. This is useful for reducing the size of a model
// by removing rare, and often noisy, transitions.
func (s *Store) PruneModel(ctx context.Context, model ModelInfo, minFreq int) error {
	res, err := s.stmtPruneModel.ExecContext(ctx, model.Id, minFreq)
	if err != nil {
		return fmt.Errorf("could not prune model %d: %w", model.Id, err)
	}
	rowsAffected, _ := res.RowsAffected()

	s.logger.InfoContext(ctx, "Model pruned",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
		slog.Int("min_frequency", minFreq),
		slog.Int64("chains_removed", rowsAffected),
	)
	return nil
}

// VocabularyPrune performs a database-wide cleanup, removing words that
// appear as a successor fewer than `minFrequency` times across all models,
// together with every chain link that starts or ends at them. Vocabulary
// entries no longer referenced by any chain are removed as well. This is a
// destructive operation and should be used with caution.
func (s *Store) VocabularyPrune(ctx context.Context, minFrequency int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for pruning: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	const rareTokens = `SELECT next_token_id FROM markov_chains GROUP BY next_token_id HAVING SUM(frequency) < ?`

	res, err := tx.ExecContext(ctx,
		`DELETE FROM markov_chains WHERE token_id IN (`+rareTokens+`) OR next_token_id IN (`+rareTokens+`)`,
		minFrequency, minFrequency)
	if err != nil {
		return fmt.Errorf("failed to delete chains of rare tokens: %w", err)
	}
	chainsRemoved, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
DELETE FROM markov_vocabulary WHERE token_id NOT IN (
    SELECT token_id FROM markov_chains UNION SELECT next_token_id FROM markov_chains
)`)
	if err != nil {
		return fmt.Errorf("failed to delete unused vocabulary: %w", err)
	}
	vocabRemoved, _ := res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Vocabulary pruned",
		slog.Int("min_frequency", minFrequency),
		slog.Int64("chains_removed", chainsRemoved),
		slog.Int64("vocab_removed", vocabRemoved),
	)
	return nil
}
