// Package traits turns the vision model's markdown list into a TraitSet.
package traits

import (
	"strings"
)

// Set is an ordered trait-name → value mapping. Every vocabulary name is
// present; unmatched names hold the empty string.
type Set struct {
	vocab  *Vocabulary
	values map[string]string
}

// Entry is one name/value pair in vocabulary order.
type Entry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var listMarkers = "-*+"

// Parse extracts traits from a markdown list. Only lines starting with a list
// marker are considered; the text before the first colon is the key. Unknown
// keys and malformed lines are ignored. When a key repeats, the last value wins.
func Parse(text string, vocab *Vocabulary) Set {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	set := Set{vocab: vocab, values: make(map[string]string, len(vocab.names))}
	for _, line := range strings.Split(text, "\n") {
		item := strings.TrimSpace(line)
		if item == "" || !strings.ContainsRune(listMarkers, rune(item[0])) {
			continue
		}
		item = strings.TrimSpace(item[1:])
		key, value, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if !vocab.Contains(key) {
			continue
		}
		set.values[key] = strings.TrimSpace(value)
	}
	return set
}

// Vocabulary returns the vocabulary the set was parsed against.
func (s Set) Vocabulary() *Vocabulary {
	if s.vocab == nil {
		return DefaultVocabulary()
	}
	return s.vocab
}

// Get returns the value for name, or "" when absent.
func (s Set) Get(name string) string {
	return s.values[name]
}

// Entries lists every vocabulary trait in order.
func (s Set) Entries() []Entry {
	names := s.Vocabulary().names
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		out = append(out, Entry{Name: name, Value: s.values[name]})
	}
	return out
}

// Map returns a copy of the values keyed by trait name, absent ones included.
func (s Set) Map() map[string]string {
	out := make(map[string]string, len(s.Vocabulary().names))
	for _, e := range s.Entries() {
		out[e.Name] = e.Value
	}
	return out
}

// Equal reports whether both sets hold the same names and values.
func (s Set) Equal(other Set) bool {
	a, b := s.Entries(), other.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Markdown renders the set back into the list format Parse accepts.
func (s Set) Markdown() string {
	var sb strings.Builder
	for _, e := range s.Entries() {
		sb.WriteString("- ")
		sb.WriteString(e.Name)
		sb.WriteString(": ")
		sb.WriteString(e.Value)
		sb.WriteString("\n")
	}
	return sb.String()
}
