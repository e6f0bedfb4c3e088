package markov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
)

// ErrModelNotFound is returned when no stored model has the requested name.
var ErrModelNotFound = errors.New("model not found")

// ModelInfo holds the metadata of a stored model: its unique ID, its name and
// the number of corpus tokens it was built from.
type ModelInfo struct {
	Id         int    `json:"id"`
	Name       string `json:"name"`
	TokenCount int    `json:"token_count"`
}

// ExportedModel is the serializable representation of a stored model,
// used for JSON-based import and export.
type ExportedModel struct {
	Name       string          `json:"name"`
	TokenCount int             `json:"token_count"`
	Vocabulary map[string]int  `json:"vocabulary"` // token_text -> token_id
	Chains     []ExportedChain `json:"chains"`
}

// ExportedChain is the serializable representation of a single
// word -> next word link, used within an ExportedModel.
type ExportedChain struct {
	TokenID     int `json:"token_id"`
	NextTokenID int `json:"next_token_id"`
	Frequency   int `json:"frequency"`
}

// GetModelInfos retrieves metadata for all models currently in the database,
// returning them in a map keyed by model name.
func (s *Store) GetModelInfos(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var model ModelInfo
		if err = rows.Scan(&model.Id, &model.Name, &model.TokenCount); err != nil {
			return nil, err
		}
		models[model.Name] = model
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// GetModelInfo retrieves the metadata for a single model specified by name.
// If the model does not exist the error matches both ErrModelNotFound and
// sql.ErrNoRows.
func (s *Store) GetModelInfo(ctx context.Context, modelName string) (ModelInfo, error) {
	info := ModelInfo{Name: modelName}
	err := s.stmtGetModelInfo.QueryRowContext(ctx, modelName).Scan(&info.Id, &info.TokenCount)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelInfo{}, fmt.Errorf("%w: %q: %w", ErrModelNotFound, modelName, err)
	}
	if err != nil {
		return ModelInfo{}, err
	}
	return info, nil
}

// SaveModel writes m to the database under name, replacing any chains
// previously stored under that name. tokenCount records the size of the corpus
// the model was built from. The operation is performed within a transaction.
func (s *Store) SaveModel(ctx context.Context, name string, m *Model, tokenCount int) (ModelInfo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	info := ModelInfo{Name: name, TokenCount: tokenCount}
	if err = tx.StmtContext(ctx, s.stmtUpsertModel).QueryRowContext(ctx, name, tokenCount).Scan(&info.Id); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to upsert model '%s': %w", name, err)
	}
	if _, err = tx.StmtContext(ctx, s.stmtDeleteChains).ExecContext(ctx, info.Id); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to clear chains for model '%s': %w", name, err)
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtInsertChain := tx.StmtContext(ctx, s.stmtInsertChain)

	vocabCache := make(map[string]int)
	tokenID := func(text string) (int, error) {
		if id, ok := vocabCache[text]; ok {
			return id, nil
		}
		var id int
		if err := stmtInsertVocab.QueryRowContext(ctx, text).Scan(&id); err != nil {
			return 0, fmt.Errorf("sql insert vocabulary error for token '%s': %w", text, err)
		}
		vocabCache[text] = id
		return id, nil
	}

	var links int
	for current, successors := range m.chains {
		currentID, err := tokenID(current)
		if err != nil {
			return ModelInfo{}, err
		}
		for next, freq := range successors {
			nextID, err := tokenID(next)
			if err != nil {
				return ModelInfo{}, err
			}
			if _, err = stmtInsertChain.ExecContext(ctx, info.Id, currentID, nextID, freq); err != nil {
				return ModelInfo{}, fmt.Errorf("failed to insert chain link (%s -> %s): %w", current, next, err)
			}
			links++
		}
	}

	if err = tx.Commit(); err != nil {
		return ModelInfo{}, err
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.Int("model_id", info.Id),
		slog.Int("words", m.Len()),
		slog.Int("chains_written", links),
	)

	return info, nil
}

// LoadModel reads every chain of a stored model into memory.
func (s *Store) LoadModel(ctx context.Context, info ModelInfo) (*Model, error) {
	rows, err := s.stmtGetChains.QueryContext(ctx, info.Id)
	if err != nil {
		return nil, fmt.Errorf("could not query chains for model '%s': %w", info.Name, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	m := NewModel()
	for rows.Next() {
		var current, next string
		var freq int
		if err = rows.Scan(&current, &next, &freq); err != nil {
			return nil, err
		}
		if freq > 0 {
			m.add(current, next, freq)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetNextTokens retrieves all recorded successors of word in a stored model,
// sorted by text, together with the sum of their frequencies. If the word is
// not found, it returns a nil slice and a total frequency of 0.
func (s *Store) GetNextTokens(ctx context.Context, model ModelInfo, word string) ([]ChainToken, int, error) {
	rows, err := s.stmtGetNextTokens.QueryContext(ctx, model.Id, word)
	if err != nil {
		return nil, 0, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var tokens []ChainToken
	var totalFreq int
	for rows.Next() {
		var token ChainToken
		if err = rows.Scan(&token.Text, &token.Freq); err != nil {
			return nil, 0, err
		}
		tokens = append(tokens, token)
		totalFreq += token.Freq
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}
	return tokens, totalFreq, nil
}

// RemoveModel deletes a model and all of its associated chain data from the
// database. The operation is performed within a transaction.
func (s *Store) RemoveModel(ctx context.Context, model ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_chains WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove chains for model %d: %w", model.Id, err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", model.Id); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", model.Id, err)
	}

	s.logger.InfoContext(ctx, "Model removed successfully",
		slog.String("model_name", model.Name),
		slog.Int("model_id", model.Id),
	)

	return tx.Commit()
}

// ExportModel serializes a stored model into a JSON format and writes it to
// the provided io.Writer. This is useful for backups or for transferring models.
func (s *Store) ExportModel(ctx context.Context, modelInfo ModelInfo, w io.Writer) error {
	rows, err := s.db.QueryContext(ctx, "SELECT token_id, next_token_id, frequency FROM markov_chains WHERE model_id = ?", modelInfo.Id)
	if err != nil {
		return fmt.Errorf("could not query chains for export: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	exportedChains := make([]ExportedChain, 0)
	tokenIDs := make(map[int]struct{})

	for rows.Next() {
		var chain ExportedChain
		if err := rows.Scan(&chain.TokenID, &chain.NextTokenID, &chain.Frequency); err != nil {
			return err
		}
		exportedChains = append(exportedChains, chain)
		tokenIDs[chain.TokenID] = struct{}{}
		tokenIDs[chain.NextTokenID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tokenIDToText := make(map[string]int)
	if len(tokenIDs) > 0 {
		args := make([]interface{}, 0, len(tokenIDs))
		placeholders := make([]string, 0, len(tokenIDs))
		for id := range tokenIDs {
			args = append(args, id)
			placeholders = append(placeholders, "?")
		}
		// Grab every token we need with one query
		query := fmt.Sprintf(`SELECT token_id, token_text FROM markov_vocabulary WHERE token_id IN (%s)`, strings.Join(placeholders, ","))
		vRows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		for vRows.Next() {
			var id int
			var text string
			if err := vRows.Scan(&id, &text); err != nil {
				_ = vRows.Close()
				return err
			}
			tokenIDToText[text] = id
		}
		_ = vRows.Close()
		if err := vRows.Err(); err != nil {
			return err
		}
	}

	exported := ExportedModel{
		Name:       modelInfo.Name,
		TokenCount: modelInfo.TokenCount,
		Vocabulary: tokenIDToText,
		Chains:     exportedChains,
	}

	s.logger.InfoContext(ctx, "Model exported",
		slog.String("model_name", modelInfo.Name),
		slog.Int("model_id", modelInfo.Id),
		slog.Int("vocab_items_exported", len(tokenIDToText)),
		slog.Int("chains_exported", len(exportedChains)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// ImportModel reads a JSON representation of a model from an io.Reader and
// merges its data into the database. If the model name already exists, the
// new chain data is merged with the existing data (frequencies are added),
// exactly as Model.Merge does in memory. If the model does not exist, it is
// created. The entire operation is transactional and handles re-mapping of
// vocabulary IDs.
func (s *Store) ImportModel(ctx context.Context, r io.Reader) (ModelInfo, error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to decode json model: %w", err)
	}
	if imported.Name == "" {
		return ModelInfo{}, errors.New("imported model has no name")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("could not begin transaction for import: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	info := ModelInfo{Name: imported.Name}
	err = tx.QueryRowContext(ctx, "SELECT model_id, token_count FROM markov_models WHERE model_name = ?", imported.Name).Scan(&info.Id, &info.TokenCount)
	if errors.Is(err, sql.ErrNoRows) {
		res, err := tx.ExecContext(ctx, "INSERT INTO markov_models (model_name, token_count) VALUES (?, 0)", imported.Name)
		if err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert new model '%s': %w", imported.Name, err)
		}
		newID, _ := res.LastInsertId()
		info.Id = int(newID)
	} else if err != nil {
		return ModelInfo{}, fmt.Errorf("failed to query for model '%s': %w", imported.Name, err)
	}

	info.TokenCount += imported.TokenCount
	if _, err = tx.ExecContext(ctx, "UPDATE markov_models SET token_count = ? WHERE model_id = ?", info.TokenCount, info.Id); err != nil {
		return ModelInfo{}, fmt.Errorf("failed to update token count for '%s': %w", imported.Name, err)
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtInsertChain := tx.StmtContext(ctx, s.stmtInsertChain)

	vocabIDMap := make(map[int]int) // old_id -> new_id
	for text, oldID := range imported.Vocabulary {
		var newID int
		if err := stmtInsertVocab.QueryRowContext(ctx, text).Scan(&newID); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to get/insert vocab '%s': %w", text, err)
		}
		vocabIDMap[oldID] = newID
	}

	for _, chain := range imported.Chains {
		if chain.Frequency <= 0 {
			continue
		}
		newTokenID, ok := vocabIDMap[chain.TokenID]
		if !ok {
			return ModelInfo{}, fmt.Errorf("import consistency error: old token id %d not found in vocab map", chain.TokenID)
		}
		newNextTokenID, ok := vocabIDMap[chain.NextTokenID]
		if !ok {
			return ModelInfo{}, fmt.Errorf("import consistency error: old token id %d not found in vocab map", chain.NextTokenID)
		}

		if _, err = stmtInsertChain.ExecContext(ctx, info.Id, newTokenID, newNextTokenID, chain.Frequency); err != nil {
			return ModelInfo{}, fmt.Errorf("failed to insert chain link (%d -> %d): %w", newTokenID, newNextTokenID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return ModelInfo{}, err
	}

	s.logger.InfoContext(ctx, "Model imported successfully",
		slog.String("model_name", imported.Name),
		slog.Int("target_model_id", info.Id),
		slog.Int("vocab_items_merged", len(imported.Vocabulary)),
		slog.Int("chains_merged", len(imported.Chains)),
	)

	return info, nil
}
