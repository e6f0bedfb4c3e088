package markov

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EpochResult reports one pass of Train.
type EpochResult struct {
	Epoch    int
	Loss     float64
	Duration time.Duration
}

// Train builds a model from tokens epochs times and evaluates the loss of each
// pass against the same tokens. Since Build is deterministic every pass yields
// the same model; the passes exist to report loss and timing. The model of the
// final pass is returned together with the per-epoch results.
//
// epochs below 1 are treated as a single pass.
func (b *Builder) Train(ctx context.Context, tokens []string, epochs int, epsilon float64) (*Model, []EpochResult, error) {
	if epochs < 1 {
		epochs = 1
	}

	started := time.Now()
	results := make([]EpochResult, 0, epochs)
	var model *Model

	for epoch := 1; epoch <= epochs; epoch++ {
		epochStart := time.Now()

		m, err := b.Build(ctx, tokens)
		if err != nil {
			return nil, results, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		model = m

		result := EpochResult{
			Epoch:    epoch,
			Loss:     Loss(tokens, model, epsilon),
			Duration: time.Since(epochStart),
		}
		results = append(results, result)

		b.logger.InfoContext(ctx, "Epoch completed",
			slog.Int("epoch", epoch),
			slog.Int("epochs", epochs),
			slog.Float64("loss", result.Loss),
			slog.Duration("duration", result.Duration),
		)
	}

	b.logger.InfoContext(ctx, "Training completed",
		slog.Int("tokens", len(tokens)),
		slog.Int("words", model.Len()),
		slog.Int("transitions", model.Transitions()),
		slog.Duration("duration", time.Since(started)),
	)

	return model, results, nil
}
