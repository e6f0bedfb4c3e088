package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func serveCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "address the API listens on",
		},
		modelFlag("stored model to serve, trained from the dataset if missing"),
	}
	flags = append(flags, trainingFlags()...)
	flags = append(flags, generationFlags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve predictions over HTTP",
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

			db, store, err := openStore(config.Server.DatabasePath, logger)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer closeStore(db, store, logger)

			server := NewServer(config, logger, store, &ServedModel{})
			if err = server.loadServedModel(ctx); err != nil {
				// The API still starts; a model can be imported or loaded later.
				logger.Warn("No model loaded", "model_name", config.Server.ModelName, "error", err)
			}

			if err = server.Run(ctx); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			logger.Info("nextword has shut down.")
			return nil
		},
	}
}
