package traits

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseAnalysisMarkdown(t *testing.T) {
	set := Parse("- Gender: Male\n- Age Range: kid\n- Has Glasses: Yes", DefaultVocabulary())

	checks := map[string]string{
		"Gender":      "Male",
		"Age Range":   "kid",
		"Has Glasses": "Yes",
		"Build":       "",
		"Has Beard":   "",
	}
	for name, want := range checks {
		if got := set.Get(name); got != want {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
	if n := len(set.Entries()); n != len(DefaultNames) {
		t.Fatalf("entries = %d, want %d", n, len(DefaultNames))
	}
}

func TestParseIsLenient(t *testing.T) {
	text := `Here is the analysis:

- Gender: Female
- gender: ignored because keys are case sensitive
- Hair Color:   dark brown
  * Clothing: denim jacket: with patches
- Favourite Food: pizza
- Posture
+ Build: athletic
Skin Tone: not a list item
`
	set := Parse(text, nil)

	tests := []struct {
		name string
		want string
	}{
		{name: "Gender", want: "Female"},
		{name: "Hair Color", want: "dark brown"},
		{name: "Clothing", want: "denim jacket: with patches"},
		{name: "Build", want: "athletic"},
		{name: "Posture", want: ""},
		{name: "Skin Tone", want: ""},
	}
	for _, tc := range tests {
		if got := set.Get(tc.name); got != tc.want {
			t.Fatalf("%s = %q, want %q", tc.name, got, tc.want)
		}
	}
	if got := set.Get("Favourite Food"); got != "" {
		t.Fatalf("unknown key should be dropped, got %q", got)
	}
}

func TestParseDeterministic(t *testing.T) {
	inputs := []string{
		"",
		"- Gender: Male\n- Gender: Female",
		"* Has Hat: Yes\n- Has Hat: No\n- Clothing: suit",
		"no list here\n: -\n-:\n- : value",
	}
	for _, in := range inputs {
		first := Parse(in, nil)
		second := Parse(in, nil)
		if !first.Equal(second) {
			t.Fatalf("parse not deterministic for %q", in)
		}
	}
}

func TestMarkdownReparsesToSameSet(t *testing.T) {
	set := Parse("- Gender: Male\n- Has Scars: Yes\n- Clothing: red cape", nil)
	again := Parse(set.Markdown(), nil)
	if !set.Equal(again) {
		t.Fatalf("reparsed set differs:\n%s\nvs\n%s", set.Markdown(), again.Markdown())
	}
}

func TestLoadVocabularyFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "traits.yaml")
	content := "flag_prefix: Wears\ntraits:\n  - Gender\n  - Wears Cape\n  - Gender\n  - \"  \"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write vocabulary: %v", err)
	}

	vocab, err := LoadVocabulary(path)
	if err != nil {
		t.Fatalf("LoadVocabulary error: %v", err)
	}
	names := vocab.Names()
	if len(names) != 2 || names[0] != "Gender" || names[1] != "Wears Cape" {
		t.Fatalf("unexpected names: %#v", names)
	}
	if !vocab.IsFlag("Wears Cape") || vocab.IsFlag("Gender") {
		t.Fatalf("flag prefix not applied: %q", vocab.FlagPrefix())
	}

	set := Parse("- Wears Cape: Yes\n- Has Glasses: Yes", vocab)
	if set.Get("Wears Cape") != "Yes" {
		t.Fatalf("custom trait not parsed")
	}
	if set.Get("Has Glasses") != "" {
		t.Fatalf("trait outside vocabulary should be ignored")
	}
}

func TestLoadVocabularyDefaults(t *testing.T) {
	vocab, err := LoadVocabulary("")
	if err != nil {
		t.Fatalf("LoadVocabulary error: %v", err)
	}
	if len(vocab.Names()) != len(DefaultNames) {
		t.Fatalf("default vocabulary size = %d", len(vocab.Names()))
	}
}

func TestNewVocabularyRejectsInvalid(t *testing.T) {
	if _, err := NewVocabulary(nil, ""); err == nil {
		t.Fatal("expected error for empty vocabulary")
	}
	if _, err := NewVocabulary([]string{"Bad: name"}, ""); err == nil {
		t.Fatal("expected error for name with colon")
	}
	if _, err := ParseVocabulary([]byte("traits: [unterminated")); err == nil {
		t.Fatal("expected yaml decode error")
	}
}
