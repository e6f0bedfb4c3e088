package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/CTAG07/nextword/pkg/markov"
	"github.com/natefinch/atomic"
	"github.com/urfave/cli/v3"
)

func modelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "models",
		Aliases: []string{"ls"},
		Usage:   "List the stored models",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			db, store, err := openStore(config.Server.DatabasePath, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer closeStore(db, store, logger)

			stats, err := store.GetStats(ctx)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: failed to read models: %v", err), 1)
			}
			printModels(cmd.Root().Writer, stats)
			return nil
		},
	}
}

func printModels(w io.Writer, stats *markov.DBStats) {
	if len(stats.Models) == 0 {
		_, _ = fmt.Fprintln(w, "No models stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tTOKENS\tWORDS\tTRANSITIONS\tPAIRS")
	for _, info := range stats.Models {
		s := stats.Stats[info.Id]
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", info.Name, info.TokenCount, s.Words, s.Transitions, s.TotalFrequency)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "\n%d model(s), %d words in the vocabulary\n", len(stats.Models), stats.VocabSize)
}

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a stored model as JSON",
		Flags: []cli.Flag{
			modelFlag("stored model to export (default: the configured model_name)"),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "output file (default: stdout)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			applyFlags(cmd, config)

			db, store, err := openStore(config.Server.DatabasePath, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer closeStore(db, store, logger)

			info, err := store.GetModelInfo(ctx, config.Server.ModelName)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			out := cmd.String("out")
			if out == "" {
				if err = store.ExportModel(ctx, info, cmd.Root().Writer); err != nil {
					return cli.Exit(fmt.Sprintf("error: export failed: %v", err), 1)
				}
				return nil
			}

			var buf bytes.Buffer
			if err = store.ExportModel(ctx, info, &buf); err != nil {
				return cli.Exit(fmt.Sprintf("error: export failed: %v", err), 1)
			}
			if err = atomic.WriteFile(out, &buf); err != nil {
				return cli.Exit(fmt.Sprintf("error: failed to write %s: %v", out, err), 1)
			}
			logger.Info("Model exported", "model_name", info.Name, "path", out)
			return nil
		},
	}
}

func importCmd() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Merge a JSON model into the database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "in",
				Aliases:  []string{"i"},
				Usage:    "JSON file produced by export",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(cmd.String("in"))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer func(f *os.File) {
				_ = f.Close()
			}(f)

			db, store, err := openStore(config.Server.DatabasePath, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer closeStore(db, store, logger)

			info, err := store.ImportModel(ctx, f)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: import failed: %v", err), 1)
			}
			_, _ = fmt.Fprintf(cmd.Root().Writer, "Imported model %q (id %d, %d tokens)\n", info.Name, info.Id, info.TokenCount)
			return nil
		},
	}
}
