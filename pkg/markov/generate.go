package markov

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrEmptyPrompt is returned when a prompt contains no tokens, leaving the
// generator without a word to continue from.
var ErrEmptyPrompt = errors.New("empty prompt")

// StopPolicy decides what happens when no unused successor is available, and
// whether generation may end early.
type StopPolicy int

const (
	// StopStrict ends generation as soon as the last word has no unused successor.
	StopStrict StopPolicy = iota
	// StopMinSteps appends a filler word instead of stopping until at least
	// minSteps words have been appended.
	StopMinSteps
	// StopRandom skips dead-end steps until minSteps words have been appended,
	// and after that may end generation at random after any appended word.
	StopRandom
)

// String returns the configuration name of the policy.
func (p StopPolicy) String() string {
	switch p {
	case StopStrict:
		return "strict"
	case StopMinSteps:
		return "min_steps"
	case StopRandom:
		return "random"
	default:
		return fmt.Sprintf("StopPolicy(%d)", int(p))
	}
}

// ParseStopPolicy converts a configuration name into a StopPolicy.
func ParseStopPolicy(s string) (StopPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return StopStrict, nil
	case "min_steps", "minsteps", "min-steps":
		return StopMinSteps, nil
	case "random":
		return StopRandom, nil
	default:
		return StopStrict, fmt.Errorf("unknown stop policy %q", s)
	}
}

// Step describes one word appended during generation.
type Step struct {
	N        int    // 1-based index of the appended word
	Word     string // the appended word
	Sentence string // the sentence so far, before capitalization
	Filler   bool   // whether Word is the filler rather than a model successor
}

// generateOptions Is used by the generate functions to configure default options.
type generateOptions struct {
	maxWords        int
	minSteps        int
	policy          StopPolicy
	filler          string
	stopProbability float64
	rng             *rand.Rand
	tokenizer       Tokenizer
	logger          *slog.Logger
}

// GenerateOption is a function that configures generation parameters. It's used
// as a variadic argument in generation functions like Generate and GenerateStream.
type GenerateOption func(*generateOptions)

// WithMaxWords caps the number of generation steps. Default: 15
func WithMaxWords(n int) GenerateOption {
	return func(o *generateOptions) { o.maxWords = n }
}

// WithMinSteps sets how many words StopMinSteps and StopRandom append before
// they allow generation to end. It has no effect under StopStrict. Default: 4
func WithMinSteps(n int) GenerateOption {
	return func(o *generateOptions) { o.minSteps = n }
}

// WithStopPolicy selects the stopping behavior. Default: StopStrict
func WithStopPolicy(p StopPolicy) GenerateOption {
	return func(o *generateOptions) { o.policy = p }
}

// WithFiller sets the word StopMinSteps appends at a dead end. Default: "word"
func WithFiller(word string) GenerateOption {
	return func(o *generateOptions) { o.filler = word }
}

// WithStopProbability sets the chance that StopRandom ends generation after
// each appended word once minSteps is reached. Default: 1/3
func WithStopProbability(p float64) GenerateOption {
	return func(o *generateOptions) { o.stopProbability = p }
}

// WithRand sets the random source used by StopRandom. The source is only read
// from the generating goroutine. Default: a PCG source with a fixed seed.
func WithRand(r *rand.Rand) GenerateOption {
	return func(o *generateOptions) { o.rng = r }
}

// WithTokenizer sets the tokenizer used to split the prompt.
// Default: NewDefaultTokenizer()
func WithTokenizer(t Tokenizer) GenerateOption {
	return func(o *generateOptions) { o.tokenizer = t }
}

// WithGenerateLogger sets the logger used to report why generation stopped.
// By default, all logs are discarded.
func WithGenerateLogger(logger *slog.Logger) GenerateOption {
	return func(o *generateOptions) { o.logger = logger }
}

func newGenerateOptions(opts []GenerateOption) *generateOptions {
	options := &generateOptions{
		maxWords:        15,
		minSteps:        4,
		policy:          StopStrict,
		filler:          "word",
		stopProbability: 1.0 / 3.0,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.tokenizer == nil {
		options.tokenizer = NewDefaultTokenizer()
	}
	if options.logger == nil {
		options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if options.rng == nil {
		options.rng = rand.New(rand.NewPCG(0, 0))
	}
	return options
}

// Predict returns the successor of last with the highest count that is not in
// used. Successors are scanned in ascending order and only a strictly greater
// count replaces the current best, so ties go to the lexicographically
// smallest word. It returns false if last is not in the model or every
// successor has been used.
func Predict(last string, m *Model, used map[string]struct{}) (string, bool) {
	var next string
	best := 0
	for _, choice := range m.Successors(last) {
		if _, ok := used[choice.Text]; ok {
			continue
		}
		if choice.Freq > best {
			best = choice.Freq
			next = choice.Text
		}
	}
	return next, best > 0
}

// generation holds the state of one Generate call.
type generation struct {
	model    *Model
	options  *generateOptions
	context  []string
	used     map[string]struct{}
	sentence strings.Builder
}

func newGeneration(prompt string, m *Model, options *generateOptions) (*generation, error) {
	tokens := options.tokenizer.Tokenize(prompt)
	if len(tokens) == 0 {
		return nil, ErrEmptyPrompt
	}
	gen := &generation{
		model:   m,
		options: options,
		context: tokens,
		used:    make(map[string]struct{}, len(tokens)+options.maxWords),
	}
	for _, token := range tokens {
		gen.used[token] = struct{}{}
	}
	gen.sentence.WriteString(prompt)
	return gen, nil
}

// run executes the decoding loop, calling emit after every appended word.
// If emit returns false the loop ends immediately. It returns the capitalized
// sentence.
func (gen *generation) run(emit func(Step) bool) string {
	o := gen.options
	appended := 0
	reason := "max words reached"

loop:
	for step := 0; step < o.maxWords; step++ {
		last := gen.context[len(gen.context)-1]
		next, ok := Predict(last, gen.model, gen.used)
		filler := false

		if !ok {
			switch o.policy {
			case StopMinSteps:
				if appended >= o.minSteps {
					reason = "dead end"
					break loop
				}
				if _, seen := gen.used[o.filler]; seen || o.filler == "" {
					continue
				}
				next, filler = o.filler, true
			case StopRandom:
				if appended >= o.minSteps {
					reason = "dead end"
					break loop
				}
				continue
			default:
				reason = "dead end"
				break loop
			}
		}

		gen.sentence.WriteByte(' ')
		gen.sentence.WriteString(next)
		gen.context = append(gen.context, next)
		gen.used[next] = struct{}{}
		appended++

		if emit != nil && !emit(Step{N: appended, Word: next, Sentence: gen.sentence.String(), Filler: filler}) {
			reason = "cancelled"
			break
		}

		if o.policy == StopRandom && appended >= o.minSteps && o.rng.Float64() < o.stopProbability {
			reason = "random stop"
			break
		}
	}

	o.logger.Debug("Generation finished",
		slog.String("policy", o.policy.String()),
		slog.String("reason", reason),
		slog.Int("appended", appended),
		slog.Int("max_words", o.maxWords),
	)

	return Capitalize(gen.sentence.String())
}

// Generate extends prompt with words from m and returns the resulting
// sentence with its first character upper-cased. The prompt is kept verbatim;
// words are appended separated by single spaces. No word already in the
// prompt or already generated is appended again.
//
// It returns ErrEmptyPrompt if the prompt has no tokens.
func Generate(prompt string, m *Model, opts ...GenerateOption) (string, error) {
	gen, err := newGeneration(prompt, m, newGenerateOptions(opts))
	if err != nil {
		return "", err
	}
	return gen.run(nil), nil
}

// Completion is the result of Complete.
type Completion struct {
	Sentence string   // the sentence as Generate returns it
	Words    []string // the appended words, in order
}

// Complete is Generate that also reports which words were appended to the
// prompt.
func Complete(prompt string, m *Model, opts ...GenerateOption) (Completion, error) {
	gen, err := newGeneration(prompt, m, newGenerateOptions(opts))
	if err != nil {
		return Completion{}, err
	}
	words := make([]string, 0, gen.options.maxWords)
	sentence := gen.run(func(step Step) bool {
		words = append(words, step.Word)
		return true
	})
	return Completion{Sentence: sentence, Words: words}, nil
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	upper := unicode.ToUpper(r)
	if upper == r {
		return s
	}
	return string(upper) + s[size:]
}
