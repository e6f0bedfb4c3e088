package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CTAG07/nextword/pkg/markov"
	"github.com/urfave/cli/v3"
)

func trainCmd() *cli.Command {
	return &cli.Command{
		Name:  "train",
		Usage: "Build a model from the dataset and report the loss of every epoch",
		Flags: append(trainingFlags(),
			&cli.StringFlag{
				Name:  "save",
				Usage: "store the trained model in the database under this name",
			},
			&cli.IntFlag{
				Name:  "prune",
				Usage: "drop links seen this many times or fewer before reporting and saving",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			applyFlags(cmd, config)
			if err = config.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			tokens, err := markov.LoadCorpus(config.Server.DatasetPath, markov.NewDefaultTokenizer())
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			builder := markov.NewBuilder(config.Markov.buildOptions(logger)...)
			model, results, err := builder.Train(ctx, tokens, config.Markov.Epochs, config.Markov.Epsilon)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: training failed: %v", err), 1)
			}

			w := cmd.Root().Writer
			for _, result := range results {
				_, _ = fmt.Fprintf(w, "Epoch %d/%d: loss %.6f (%s)\n", result.Epoch, len(results), result.Loss, result.Duration)
			}
			if minFreq := cmd.Int("prune"); minFreq > 0 {
				model = model.Prune(minFreq)
				logger.Info("Model pruned", "min_frequency", minFreq, "words", model.Len())
			}
			stats := model.Stats()
			_, _ = fmt.Fprintf(w, "Model: %d tokens, %d words, %d transitions\n", len(tokens), stats.Words, stats.Transitions)

			name := cmd.String("save")
			if name == "" {
				return nil
			}
			info, err := saveModel(ctx, config, logger, name, model, len(tokens))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			_, _ = fmt.Fprintf(w, "Saved model %q (id %d)\n", info.Name, info.Id)
			return nil
		},
	}
}

// buildFromDataset tokenizes the configured dataset and trains a model on it.
func buildFromDataset(ctx context.Context, config *Config, logger *slog.Logger) (*markov.Model, int, error) {
	tokens, err := markov.LoadCorpus(config.Server.DatasetPath, markov.NewDefaultTokenizer())
	if err != nil {
		return nil, 0, err
	}
	builder := markov.NewBuilder(config.Markov.buildOptions(logger)...)
	model, _, err := builder.Train(ctx, tokens, config.Markov.Epochs, config.Markov.Epsilon)
	if err != nil {
		return nil, 0, err
	}
	return model, len(tokens), nil
}

func saveModel(ctx context.Context, config *Config, logger *slog.Logger, name string, model *markov.Model, tokenCount int) (markov.ModelInfo, error) {
	db, store, err := openStore(config.Server.DatabasePath, logger)
	if err != nil {
		return markov.ModelInfo{}, err
	}
	defer closeStore(db, store, logger)

	return store.SaveModel(ctx, name, model, tokenCount)
}
