package traits

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFlagPrefix marks boolean-like traits such as "Has Glasses".
const DefaultFlagPrefix = "Has"

// DefaultNames is the trait vocabulary requested from the vision model.
var DefaultNames = []string{
	"Gender",
	"Age Range",
	"Build",
	"Skin Tone",
	"Hair Length",
	"Hair Color",
	"Haircut Style",
	"Facial Features",
	"Facial Expression",
	"Clothing",
	"Posture",
	"Has Tattoos",
	"Has Glasses",
	"Has Beard",
	"Has Mustache",
	"Has Hat",
	"Has Jewelry",
	"Has Makeup",
	"Has Piercings",
	"Has Scars",
	"Has Wrinkles",
	"Has Freckles",
}

// Vocabulary is the ordered, case-sensitive set of trait names a parser
// accepts.
type Vocabulary struct {
	names      []string
	index      map[string]int
	flagPrefix string
}

type vocabularyFile struct {
	FlagPrefix string   `yaml:"flag_prefix"`
	Traits     []string `yaml:"traits"`
}

// NewVocabulary builds a vocabulary from names, dropping blanks and
// duplicates while keeping first-seen order.
func NewVocabulary(names []string, flagPrefix string) (*Vocabulary, error) {
	v := &Vocabulary{index: make(map[string]int, len(names)), flagPrefix: strings.TrimSpace(flagPrefix)}
	if v.flagPrefix == "" {
		v.flagPrefix = DefaultFlagPrefix
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.Contains(name, ":") {
			return nil, fmt.Errorf("traits: name %q must not contain a colon", name)
		}
		if _, ok := v.index[name]; ok {
			continue
		}
		v.index[name] = len(v.names)
		v.names = append(v.names, name)
	}
	if len(v.names) == 0 {
		return nil, errors.New("traits: vocabulary is empty")
	}
	return v, nil
}

// DefaultVocabulary returns the built-in 22 trait vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, err := NewVocabulary(DefaultNames, DefaultFlagPrefix)
	if err != nil {
		panic(err)
	}
	return v
}

// LoadVocabulary reads a YAML vocabulary file. An empty path yields the
// default vocabulary.
func LoadVocabulary(path string) (*Vocabulary, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultVocabulary(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("traits: read vocabulary: %w", err)
	}
	return ParseVocabulary(raw)
}

// ParseVocabulary decodes the YAML form:
//
//	flag_prefix: Has
//	traits:
//	  - Gender
//	  - Has Glasses
func ParseVocabulary(raw []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("traits: decode vocabulary: %w", err)
	}
	return NewVocabulary(file.Traits, file.FlagPrefix)
}

// Names returns the trait names in declaration order.
func (v *Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

// Contains reports an exact, case-sensitive match.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.index[name]
	return ok
}

// FlagPrefix returns the prefix identifying boolean-like traits.
func (v *Vocabulary) FlagPrefix() string {
	return v.flagPrefix
}

// IsFlag reports whether name is a boolean-like trait.
func (v *Vocabulary) IsFlag(name string) bool {
	return strings.HasPrefix(name, v.flagPrefix)
}

// Instruction renders the list the vision model is asked to fill in.
func (v *Vocabulary) Instruction() string {
	var sb strings.Builder
	sb.WriteString("Describe the person in this photo as a markdown list, one line per trait, using exactly these trait names:\n")
	for _, name := range v.names {
		sb.WriteString("- ")
		sb.WriteString(name)
		if v.IsFlag(name) {
			sb.WriteString(": Yes or No")
		} else {
			sb.WriteString(": <value>")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
