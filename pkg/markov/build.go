package markov

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// span is a half-open range [start, end) of adjacent-pair indexes.
type span struct {
	start int
	end   int
}

// BuildOption is a function that configures a Builder.
type BuildOption func(*Builder)

// WithWorkers sets how many goroutines accumulate pairs in parallel.
// Values below 1 mean a single worker. Default: runtime.NumCPU()
func WithWorkers(n int) BuildOption {
	return func(b *Builder) {
		if n < 1 {
			n = 1
		}
		b.workers = n
	}
}

// WithBuildLogger sets the logger used by the Builder. By default, all logs
// are discarded.
func WithBuildLogger(logger *slog.Logger) BuildOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Builder constructs frequency models from token sequences, splitting the work
// across a fixed number of workers.
type Builder struct {
	workers int
	logger  *slog.Logger
}

// NewBuilder creates a Builder with default settings, which can be overridden
// by providing one or more BuildOption functions.
func NewBuilder(opts ...BuildOption) *Builder {
	b := &Builder{
		workers: runtime.NumCPU(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Workers returns the configured worker count.
func (b *Builder) Workers() int {
	return b.workers
}

// BuildSequential counts every adjacent pair of tokens on the calling
// goroutine. Sequences shorter than two tokens produce an empty model.
func BuildSequential(tokens []string) *Model {
	m := NewModel()
	accumulate(m, tokens, span{start: 0, end: len(tokens) - 1})
	return m
}

// accumulate counts the pairs (tokens[i], tokens[i+1]) for i in s.
func accumulate(m *Model, tokens []string, s span) {
	for i := s.start; i < s.end; i++ {
		m.add(tokens[i], tokens[i+1], 1)
	}
}

// partition splits the pairs of a sequence of n tokens into at most workers
// contiguous, disjoint spans whose sizes differ by at most one. Empty spans
// are never returned.
func partition(n, workers int) []span {
	pairs := n - 1
	if pairs <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > pairs {
		workers = pairs
	}
	spans := make([]span, 0, workers)
	size, extra := pairs/workers, pairs%workers
	start := 0
	for i := 0; i < workers; i++ {
		end := start + size
		if i < extra {
			end++
		}
		spans = append(spans, span{start: start, end: end})
		start = end
	}
	return spans
}

// Build counts every adjacent pair of tokens using the Builder's workers.
//
// Each worker accumulates its block of pairs into a private model. Only after
// every worker has finished are the private models added into the result, one
// at a time under a mutex. The counts are therefore identical to
// BuildSequential for any number of workers.
//
// If ctx is cancelled before the workers finish, Build returns ctx.Err() and
// no model; partial results are never merged.
func (b *Builder) Build(ctx context.Context, tokens []string) (*Model, error) {
	spans := partition(len(tokens), b.workers)
	partials := make([]*Model, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range spans {
		g.Go(func() error {
			local := NewModel()
			// Check for cancellation every chunk of pairs rather than every pair.
			const chunk = 1 << 14
			for start := s.start; start < s.end; start += chunk {
				if err := gctx.Err(); err != nil {
					return err
				}
				accumulate(local, tokens, span{start: start, end: min(start+chunk, s.end)})
			}
			partials[i] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := NewModel()
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, local := range partials {
		wg.Add(1)
		go func(local *Model) {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			result.Merge(local)
		}(local)
	}
	wg.Wait()

	b.logger.DebugContext(ctx, "Model built",
		slog.Int("tokens", len(tokens)),
		slog.Int("workers", len(spans)),
		slog.Int("words", result.Len()),
		slog.Int("transitions", result.Transitions()),
	)

	return result, nil
}
