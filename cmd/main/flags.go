package main

import (
	"github.com/urfave/cli/v3"
)

func datasetFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "dataset",
		Aliases: []string{"d"},
		Usage:   "path to the training corpus",
	}
}

func modelFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "model",
		Aliases: []string{"m"},
		Usage:   usage,
	}
}

func trainingFlags() []cli.Flag {
	return []cli.Flag{
		datasetFlag(),
		&cli.IntFlag{
			Name:  "epochs",
			Usage: "number of training passes",
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "number of concurrent build workers (0 = number of CPUs)",
		},
		&cli.Float64Flag{
			Name:  "epsilon",
			Usage: "constant added to every probability before the logarithm",
		},
	}
}

func generationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "max-words",
			Aliases: []string{"n", "num-words"},
			Usage:   "maximum number of generation steps",
		},
		&cli.IntFlag{
			Name:  "min-steps",
			Usage: "words appended before min_steps and random policies may stop",
		},
		&cli.StringFlag{
			Name:    "policy",
			Aliases: []string{"stop-policy"},
			Usage:   "stop policy (strict, min_steps, random)",
		},
		&cli.Float64Flag{
			Name:  "stop-probability",
			Usage: "chance of a random stop after each word under the random policy",
		},
		&cli.StringFlag{
			Name:  "filler",
			Usage: "word appended at dead ends under the min_steps policy",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "seed for random stops (0 = time based)",
		},
	}
}

// applyFlags copies every explicitly set flag over the loaded configuration.
// Flags that were not given keep the value from the config file.
func applyFlags(c *cli.Command, cfg *Config) {
	if c.IsSet("dataset") {
		cfg.Server.DatasetPath = c.String("dataset")
	}
	if c.IsSet("model") {
		cfg.Server.ModelName = c.String("model")
	}
	if c.IsSet("addr") {
		cfg.Server.ApiAddr = c.String("addr")
	}
	if c.IsSet("epochs") {
		cfg.Markov.Epochs = c.Int("epochs")
	}
	if c.IsSet("workers") {
		cfg.Markov.WorkerCount = c.Int("workers")
	}
	if c.IsSet("epsilon") {
		cfg.Markov.Epsilon = c.Float64("epsilon")
	}
	if c.IsSet("max-words") {
		cfg.Markov.MaxWords = c.Int("max-words")
	}
	if c.IsSet("min-steps") {
		cfg.Markov.MinSteps = c.Int("min-steps")
	}
	if c.IsSet("policy") {
		cfg.Markov.StopPolicy = c.String("policy")
	}
	if c.IsSet("stop-probability") {
		cfg.Markov.StopProbability = c.Float64("stop-probability")
	}
	if c.IsSet("filler") {
		cfg.Markov.Filler = c.String("filler")
	}
	if c.IsSet("seed") {
		cfg.Markov.Seed = c.Int64("seed")
	}
}
