package markov

import (
	"sort"
)

// ChainToken represents a potential next word in the chain, together with
// how many times it was observed directly after the current word.
type ChainToken struct {
	Text string
	Freq int
}

// Model is a first-order frequency model: for every word it records how often
// each other word followed it in the corpus.
//
// A word is present only if at least one successor was observed, and every
// stored count is at least 1. A Model is not modified after it has been built,
// so it is safe for concurrent readers.
type Model struct {
	chains map[string]map[string]int
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{chains: make(map[string]map[string]int)}
}

// add increments the count of next under current by n.
func (m *Model) add(current, next string, n int) {
	successors, ok := m.chains[current]
	if !ok {
		successors = make(map[string]int)
		m.chains[current] = successors
	}
	successors[next] += n
}

// Merge adds every count from other into m. Counts are summed, so the result
// does not depend on the order in which models are merged.
func (m *Model) Merge(other *Model) {
	for current, successors := range other.chains {
		for next, n := range successors {
			if n > 0 {
				m.add(current, next, n)
			}
		}
	}
}

// Len returns the number of words that have at least one successor.
func (m *Model) Len() int {
	return len(m.chains)
}

// Transitions returns the number of distinct (word, successor) links.
func (m *Model) Transitions() int {
	var n int
	for _, successors := range m.chains {
		n += len(successors)
	}
	return n
}

// Count returns how many times next was observed after current.
func (m *Model) Count(current, next string) int {
	return m.chains[current][next]
}

// Total returns the sum of all successor counts of word, or 0 if the word is
// not in the model.
func (m *Model) Total(word string) int {
	var total int
	for _, n := range m.chains[word] {
		total += n
	}
	return total
}

// Has reports whether word has any recorded successors.
func (m *Model) Has(word string) bool {
	_, ok := m.chains[word]
	return ok
}

// Words returns every word with recorded successors in ascending order.
func (m *Model) Words() []string {
	words := make([]string, 0, len(m.chains))
	for word := range m.chains {
		words = append(words, word)
	}
	sort.Strings(words)
	return words
}

// Successors returns the successors of word sorted by ascending text. The
// order is stable across calls, which the generator relies on for tie-breaking.
// It returns nil if the word is not in the model.
func (m *Model) Successors(word string) []ChainToken {
	successors, ok := m.chains[word]
	if !ok {
		return nil
	}
	tokens := make([]ChainToken, 0, len(successors))
	for text, freq := range successors {
		tokens = append(tokens, ChainToken{Text: text, Freq: freq})
	}
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].Text < tokens[j].Text
	})
	return tokens
}

// Counts returns a deep copy of the underlying word -> successor -> count map.
func (m *Model) Counts() map[string]map[string]int {
	out := make(map[string]map[string]int, len(m.chains))
	for current, successors := range m.chains {
		inner := make(map[string]int, len(successors))
		for next, n := range successors {
			inner[next] = n
		}
		out[current] = inner
	}
	return out
}

// Equal reports whether both models hold exactly the same counts.
func (m *Model) Equal(other *Model) bool {
	if len(m.chains) != len(other.chains) {
		return false
	}
	for current, successors := range m.chains {
		otherSuccessors, ok := other.chains[current]
		if !ok || len(successors) != len(otherSuccessors) {
			return false
		}
		for next, n := range successors {
			if otherSuccessors[next] != n {
				return false
			}
		}
	}
	return true
}
