package markov

import (
	"errors"
	"fmt"
	"os"
)

// ErrDatasetUnavailable is returned when the corpus file cannot be opened or read.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// LoadCorpus reads the file at path and tokenizes it with t. Lines are joined
// by whitespace, so a word never spans a line break.
func LoadCorpus(path string, t Tokenizer) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	tokens, err := ReadTokens(t.NewStream(f))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrDatasetUnavailable, path, err)
	}
	return tokens, nil
}
