package markov

import (
	"io"
)

// Tokenizer is an interface that defines the contract for turning raw text
// into normalized word tokens. This allows the builder and generator to be
// independent of the specific normalization strategy.
type Tokenizer interface {
	// Tokenize splits text into an ordered sequence of normalized tokens.
	// Units that normalize to the empty string are dropped.
	Tokenize(text string) []string
	// NewStream returns a stateful StreamTokenizer for processing an io.Reader.
	NewStream(io.Reader) StreamTokenizer
}

// StreamTokenizer is an interface for a stateful tokenizer that processes a
// stream of data, returning one token at a time.
type StreamTokenizer interface {
	// Next returns the next token from the stream. It returns io.EOF as the
	// error when the stream is fully consumed.
	Next() (string, error)
}

// ReadTokens drains a StreamTokenizer into a slice.
func ReadTokens(stream StreamTokenizer) ([]string, error) {
	var tokens []string
	for {
		token, err := stream.Next()
		if err == io.EOF {
			return tokens, nil
		}
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, token)
	}
}
