package markov

import (
	"context"
)

// GenerateStream runs the same decoding as Generate but returns a read-only
// channel of Steps, one per appended word. This allows callers to show
// progress as the sentence grows. The channel will be closed once generation
// is complete or the context is cancelled.
//
// ErrEmptyPrompt is returned immediately, before any goroutine is started.
func GenerateStream(ctx context.Context, prompt string, m *Model, opts ...GenerateOption) (<-chan Step, error) {
	gen, err := newGeneration(prompt, m, newGenerateOptions(opts))
	if err != nil {
		return nil, err
	}

	stepChan := make(chan Step)

	go func() {
		defer close(stepChan)

		if ctx.Err() != nil {
			return
		}
		gen.run(func(step Step) bool {
			select {
			case <-ctx.Done():
				gen.options.logger.DebugContext(ctx, "Generation stream cancelled by context")
				return false
			case stepChan <- step:
				return true
			}
		})
	}()

	return stepChan, nil
}
