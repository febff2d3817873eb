// Package meme holds the meme topic and style catalog and composes prompts
// for the provider's fine-tuned meme models.
package meme

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownTopic = errors.New("meme: unknown topic")
	ErrUnknownStyle = errors.New("meme: unknown style")
	ErrEmptyPrompt  = errors.New("meme: prompt is required")
)

// Topic is a meme template backed by a provider model tag such as
// "@meme_grumpy_cat".
type Topic struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Model string `yaml:"model" json:"model"`
}

type Style struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Catalog is an ordered set of topics and styles. The first entry of each is
// the default selection.
type Catalog struct {
	topics []Topic
	styles []Style
}

type catalogFile struct {
	Topics []Topic `yaml:"topics"`
	Styles []Style `yaml:"styles"`
}

var defaultTopics = []Topic{
	{ID: "distracted-boyfriend", Title: "Distracted Boyfriend", Model: "@meme_distracted_boyfriend"},
	{ID: "honest-work", Title: "But It's Honest Work", Model: "@meme_but_it_s_honest_work"},
	{ID: "monkey-puppet", Title: "Awkward Look Monkey Puppet", Model: "@meme_awkward_look_monkey_puppet"},
	{ID: "hide-pain-harold", Title: "Hide the Pain Harold", Model: "@meme_hide_the_pain_harold"},
	{ID: "grumpy-cat", Title: "Grumpy Cat", Model: "@meme_grumpy_cat"},
}

var defaultStyles = []Style{
	{ID: "photorealistic", Title: "Photorealistic"},
	{ID: "studio-ghibli", Title: "Studio Ghibli"},
	{ID: "80s-synthwave", Title: "80s Synthwave"},
	{ID: "3d-render", Title: "3D Render"},
	{ID: "child-drawing", Title: "Child Drawing"},
	{ID: "watercolor", Title: "Watercolor"},
	{ID: "pixel-art", Title: "Pixel Art"},
	{ID: "illustration", Title: "Illustration"},
	{ID: "retro-futurism", Title: "Retro Futurism"},
	{ID: "steampunk", Title: "Steampunk"},
}

// NewCatalog validates topics and styles. IDs must be unique and every topic
// needs an "@" model tag.
func NewCatalog(topics []Topic, styles []Style) (*Catalog, error) {
	c := &Catalog{}
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		t.ID = strings.TrimSpace(t.ID)
		t.Title = strings.TrimSpace(t.Title)
		t.Model = strings.TrimSpace(t.Model)
		if t.ID == "" {
			return nil, errors.New("meme: topic id is required")
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("meme: duplicate topic %q", t.ID)
		}
		if !strings.HasPrefix(t.Model, "@") || strings.ContainsAny(t.Model, " \t\n") {
			return nil, fmt.Errorf("meme: topic %q needs a model tag like @name, got %q", t.ID, t.Model)
		}
		if t.Title == "" {
			t.Title = t.ID
		}
		seen[t.ID] = struct{}{}
		c.topics = append(c.topics, t)
	}
	seen = make(map[string]struct{}, len(styles))
	for _, s := range styles {
		s.ID = strings.TrimSpace(s.ID)
		s.Title = strings.TrimSpace(s.Title)
		if s.ID == "" {
			return nil, errors.New("meme: style id is required")
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("meme: duplicate style %q", s.ID)
		}
		if s.Title == "" {
			s.Title = s.ID
		}
		seen[s.ID] = struct{}{}
		c.styles = append(c.styles, s)
	}
	if len(c.topics) == 0 || len(c.styles) == 0 {
		return nil, errors.New("meme: catalog needs at least one topic and one style")
	}
	return c, nil
}

// DefaultCatalog returns the built-in five topics and ten styles.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultTopics, defaultStyles)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadCatalog reads a YAML catalog file. An empty path yields the default
// catalog.
func LoadCatalog(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("meme: read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes the YAML form:
//
//	topics:
//	  - {id: grumpy-cat, title: Grumpy Cat, model: "@meme_grumpy_cat"}
//	styles:
//	  - {id: pixel-art, title: Pixel Art}
func ParseCatalog(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("meme: decode catalog: %w", err)
	}
	return NewCatalog(file.Topics, file.Styles)
}

func (c *Catalog) Topics() []Topic {
	return append([]Topic(nil), c.topics...)
}

func (c *Catalog) Styles() []Style {
	return append([]Style(nil), c.styles...)
}

// Topic looks up a topic by id. An empty id selects the first topic.
func (c *Catalog) Topic(id string) (Topic, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return c.topics[0], nil
	}
	for _, t := range c.topics {
		if t.ID == id {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("%w %q", ErrUnknownTopic, id)
}

// Style looks up a style by id. An empty id selects the first style.
func (c *Catalog) Style(id string) (Style, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return c.styles[0], nil
	}
	for _, s := range c.styles {
		if s.ID == id {
			return s, nil
		}
	}
	return Style{}, fmt.Errorf("%w %q", ErrUnknownStyle, id)
}

// Compose resolves the selection and renders "<model> <prompt>, <style> style".
// The model tag must lead the prompt for the provider to apply it.
func (c *Catalog) Compose(topicID, styleID, prompt string) (string, error) {
	prompt = strings.Join(strings.Fields(prompt), " ")
	if prompt == "" {
		return "", ErrEmptyPrompt
	}
	topic, err := c.Topic(topicID)
	if err != nil {
		return "", err
	}
	style, err := c.Style(styleID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s, %s style", topic.Model, prompt, style.Title), nil
}
