package markov

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// asciiPunctuation is the set of characters removed from every word by default.
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// DefaultTokenizer is a default implementation of the Tokenizer interface.
// It splits text on whitespace, strips punctuation from each unit and folds
// the remainder to lowercase. Its behavior can be customized with functional
// options.
type DefaultTokenizer struct {
	punct [128]bool
}

// Option Is a function that configures a DefaultTokenizer.
type Option func(*DefaultTokenizer)

// WithPunctuation sets the ASCII characters stripped from each word.
// Non-ASCII characters in chars are ignored.
// Default: every character of `!"#$%&'()*+,-./:;<=>?@[\]^_`{|}~`
func WithPunctuation(chars string) Option {
	return func(t *DefaultTokenizer) {
		t.punct = [128]bool{}
		for i := 0; i < len(chars); i++ {
			if c := chars[i]; c < 128 {
				t.punct[c] = true
			}
		}
	}
}

// NewDefaultTokenizer creates a new tokenizer with default settings, which can be
// overridden by providing one or more Option functions.
func NewDefaultTokenizer(opts ...Option) *DefaultTokenizer {
	t := &DefaultTokenizer{}
	WithPunctuation(asciiPunctuation)(t)

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Normalize strips punctuation from a single word and lowercases it. The
// result may be empty.
func (t *DefaultTokenizer) Normalize(word string) string {
	return t.normalize(word, cases.Lower(language.Und))
}

func (t *DefaultTokenizer) normalize(word string, lower cases.Caser) string {
	stripped := strings.Map(func(r rune) rune {
		if r < 128 && t.punct[r] {
			return -1
		}
		return r
	}, word)
	if stripped == "" {
		return ""
	}
	return lower.String(stripped)
}

// Tokenize splits text on whitespace and returns the non-empty normalized words
// in their original order.
func (t *DefaultTokenizer) Tokenize(text string) []string {
	// A Caser carries state, so each call gets its own.
	lower := cases.Lower(language.Und)
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if token := t.normalize(field, lower); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// NewStream Returns the stream processor.
func (t *DefaultTokenizer) NewStream(r io.Reader) StreamTokenizer {
	return &DefaultStreamTokenizer{
		reader:    bufio.NewReader(r),
		tokenizer: t,
		lower:     cases.Lower(language.Und),
	}
}

// DefaultStreamTokenizer is the default implementation of the StreamTokenizer interface.
// It reads whitespace-separated words of any length and normalizes each one,
// splitting exactly where Tokenize does.
type DefaultStreamTokenizer struct {
	reader    *bufio.Reader
	tokenizer *DefaultTokenizer
	lower     cases.Caser
	word      strings.Builder
}

// Next returns the next non-empty token from the stream. When the stream is
// exhausted, it returns an empty string and io.EOF. Any other error indicates
// a problem reading from the underlying stream.
func (s *DefaultStreamTokenizer) Next() (string, error) {
	for {
		word, err := s.readWord()
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if token := s.tokenizer.normalize(word, s.lower); token != "" {
			return token, nil
		}
		if err != nil {
			return "", io.EOF
		}
	}
}

// readWord skips leading whitespace and returns the following run of
// non-whitespace bytes. Invalid UTF-8 bytes are kept as they are, matching
// strings.Fields.
func (s *DefaultStreamTokenizer) readWord() (string, error) {
	s.word.Reset()
	for {
		r, size, err := s.reader.ReadRune()
		if err != nil {
			return s.word.String(), err
		}
		switch {
		case r == utf8.RuneError && size == 1:
			_ = s.reader.UnreadRune()
			b, _ := s.reader.ReadByte()
			s.word.WriteByte(b)
		case unicode.IsSpace(r):
			if s.word.Len() > 0 {
				return s.word.String(), nil
			}
		default:
			s.word.WriteRune(r)
		}
	}
}
