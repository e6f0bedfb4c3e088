package markov

import (
	"context"
	"sort"
)

// DBStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type DBStats struct {
	Models    []ModelInfo        // A list of models in the database, sorted by name
	Stats     map[int]ModelStats // A mapping of model ids to their stats
	VocabSize int                // The number of unique tokens in all models' vocabularies
}

// ModelStats holds aggregated statistics for a single frequency model.
type ModelStats struct {
	Words          int `json:"words"`           // The number of words with at least one successor.
	Transitions    int `json:"transitions"`     // The number of unique word->next_word links.
	TotalFrequency int `json:"total_frequency"` // The sum of all link counts; the number of observed pairs.
}

// Stats returns the statistics of an in-memory model.
func (m *Model) Stats() ModelStats {
	stats := ModelStats{Words: m.Len()}
	for _, successors := range m.chains {
		stats.Transitions += len(successors)
		for _, n := range successors {
			stats.TotalFrequency += n
		}
	}
	return stats
}

// GetModelStats returns the statistics of a single stored model.
func (s *Store) GetModelStats(ctx context.Context, model ModelInfo) (ModelStats, error) {
	var stats ModelStats
	if err := s.stmtModelWords.QueryRowContext(ctx, model.Id).Scan(&stats.Words); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelChains.QueryRowContext(ctx, model.Id).Scan(&stats.Transitions); err != nil {
		return ModelStats{}, err
	}
	if err := s.stmtModelFreq.QueryRowContext(ctx, model.Id).Scan(&stats.TotalFrequency); err != nil {
		return ModelStats{}, err
	}
	return stats, nil
}

// GetStats returns a snapshot of statistics for the entire database,
// including global counts and per-model stats.
func (s *Store) GetStats(ctx context.Context) (*DBStats, error) {
	modelInfos, err := s.GetModelInfos(ctx)
	if err != nil {
		return nil, err
	}

	var vocabLen int
	if err = s.stmtGetVocabLen.QueryRowContext(ctx).Scan(&vocabLen); err != nil {
		return nil, err
	}

	models := make([]ModelInfo, 0, len(modelInfos))
	modelStats := make(map[int]ModelStats, len(modelInfos))
	for _, v := range modelInfos {
		models = append(models, v)
		stats, err := s.GetModelStats(ctx, v)
		if err != nil {
			return nil, err
		}
		modelStats[v.Id] = stats
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Name < models[j].Name
	})

	return &DBStats{
		Models:    models,
		Stats:     modelStats,
		VocabSize: vocabLen,
	}, nil
}
