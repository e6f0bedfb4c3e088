package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/CTAG07/nextword/pkg/markov"
	"github.com/urfave/cli/v3"
)

func generateCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "prompt",
			Aliases: []string{"p"},
			Usage:   "prompt to continue (read from stdin when omitted)",
		},
		modelFlag("stored model to generate from (default: build from the dataset)"),
	}
	flags = append(flags, trainingFlags()...)
	flags = append(flags, generationFlags()...)

	return &cli.Command{
		Name:  "generate",
		Usage: "Continue a prompt with the most frequent unused successors",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			applyFlags(cmd, config)
			if err = config.Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			model, err := resolveModel(ctx, cmd, config, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			opts, err := config.Markov.generateOptions(config.Markov.newRand(), logger, 0)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			root := cmd.Root()
			sentence, err := generateInteractive(ctx, root.Reader, root.Writer, cmd.String("prompt"), model, opts)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			_, _ = fmt.Fprintf(root.Writer, "Generated: %s\n", sentence)
			return nil
		},
	}
}

// resolveModel loads the model named by --model from the database, or builds
// one from the dataset when no model was named.
func resolveModel(ctx context.Context, cmd *cli.Command, config *Config, logger *slog.Logger) (*markov.Model, error) {
	if !cmd.IsSet("model") {
		model, _, err := buildFromDataset(ctx, config, logger)
		return model, err
	}

	db, store, err := openStore(config.Server.DatabasePath, logger)
	if err != nil {
		return nil, err
	}
	defer closeStore(db, store, logger)

	info, err := store.GetModelInfo(ctx, config.Server.ModelName)
	if err != nil {
		return nil, err
	}
	return store.LoadModel(ctx, info)
}

// generateInteractive continues prompt, printing every step to w. An empty
// prompt is read from r, and the user is asked again until the prompt has at
// least one word.
func generateInteractive(ctx context.Context, r io.Reader, w io.Writer, prompt string, model *markov.Model, opts []markov.GenerateOption) (string, error) {
	reader := bufio.NewReader(r)

	for {
		if strings.TrimSpace(prompt) == "" {
			_, _ = fmt.Fprint(w, "Enter a prompt: ")
			line, err := reader.ReadString('\n')
			if err != nil && line == "" {
				if errors.Is(err, io.EOF) {
					return "", errors.New("no prompt given")
				}
				return "", fmt.Errorf("failed to read prompt: %w", err)
			}
			prompt = strings.TrimRight(line, "\r\n")
		}

		steps, err := markov.GenerateStream(ctx, prompt, model, opts...)
		if errors.Is(err, markov.ErrEmptyPrompt) {
			_, _ = fmt.Fprintln(w, "The prompt has no words, please try again.")
			prompt = ""
			continue
		}
		if err != nil {
			return "", err
		}

		sentence := prompt
		for step := range steps {
			_, _ = fmt.Fprintf(w, "Step %d: %s\n", step.N, step.Sentence)
			sentence = step.Sentence
		}
		if err = ctx.Err(); err != nil {
			return "", err
		}
		return markov.Capitalize(sentence), nil
	}
}
