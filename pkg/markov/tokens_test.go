package markov

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tokenizer := NewDefaultTokenizer()

	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "Punctuation and case", input: "Hello, World!! foo-bar", expected: []string{"hello", "world", "foobar"}},
		{name: "Empty input", input: "", expected: []string{}},
		{name: "Only whitespace", input: " \t\n  ", expected: []string{}},
		{name: "Only punctuation is dropped", input: "a -- b ... c", expected: []string{"a", "b", "c"}},
		{name: "Apostrophes are stripped", input: "Don't STOP", expected: []string{"dont", "stop"}},
		{name: "Newlines separate words", input: "end\nstart", expected: []string{"end", "start"}},
		{name: "Digits are kept", input: "Route 66.", expected: []string{"route", "66"}},
		{name: "Non-ASCII letters are lowercased", input: "ÉCOLE Über", expected: []string{"école", "über"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tokenizer.Tokenize(tc.input)
			if !reflect.DeepEqual(got, tc.expected) {
				t.Errorf("Tokenize(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestTokenizeIdempotent(t *testing.T) {
	tokenizer := NewDefaultTokenizer()
	inputs := []string{
		"Hello, World!! foo-bar",
		testCorpus,
		"  Mixed CASE; with (brackets) and \"quotes\"  ",
		"!!! ??? ...",
	}
	for _, input := range inputs {
		first := tokenizer.Tokenize(input)
		second := tokenizer.Tokenize(strings.Join(first, " "))
		if !reflect.DeepEqual(first, second) {
			t.Errorf("tokenizing %q twice changed the result: %q then %q", input, first, second)
		}
	}
}

func TestWithPunctuation(t *testing.T) {
	tokenizer := NewDefaultTokenizer(WithPunctuation(","))
	got := tokenizer.Tokenize("Hello, world-wide!")
	expected := []string{"hello", "world-wide!"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Tokenize() = %q, want %q", got, expected)
	}
}

func TestStreamMatchesTokenize(t *testing.T) {
	tokenizer := NewDefaultTokenizer()
	input := testCorpus + "\n\n  Another line, with MORE words.\n"

	streamed, err := ReadTokens(tokenizer.NewStream(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("ReadTokens() error = %v", err)
	}
	if !reflect.DeepEqual(streamed, tokenizer.Tokenize(input)) {
		t.Errorf("stream tokens %q differ from Tokenize %q", streamed, tokenizer.Tokenize(input))
	}
}

func TestStreamEOF(t *testing.T) {
	stream := NewDefaultTokenizer().NewStream(strings.NewReader("... !!"))
	token, err := stream.Next()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF for a stream with no tokens, got token %q and error %v", token, err)
	}
}

func TestStreamLongWord(t *testing.T) {
	tokenizer := NewDefaultTokenizer()
	long := strings.Repeat("x", 2*1024*1024)
	input := "The cat " + long + "! sat"

	streamed, err := ReadTokens(tokenizer.NewStream(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("ReadTokens() error = %v", err)
	}
	expected := tokenizer.Tokenize(input)
	if len(expected) != 4 {
		t.Fatalf("expected Tokenize to return 4 tokens, got %d", len(expected))
	}
	if !reflect.DeepEqual(streamed, expected) {
		t.Errorf("stream returned %d tokens, Tokenize returned %d", len(streamed), len(expected))
	}
}

func TestStreamInvalidUTF8(t *testing.T) {
	tokenizer := NewDefaultTokenizer()
	input := "ab\xffcd \xfe end"

	streamed, err := ReadTokens(tokenizer.NewStream(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("ReadTokens() error = %v", err)
	}
	if expected := tokenizer.Tokenize(input); !reflect.DeepEqual(streamed, expected) {
		t.Errorf("stream tokens %q differ from Tokenize %q", streamed, expected)
	}
}
