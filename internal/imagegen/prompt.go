package imagegen

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"actionfigure/internal/traits"
)

const promptPreamble = "@action_figure:1.20 Create an action figure blister pack, containing an action figure and a few accessories, tucked neatly inside the blister pack alongside the figure are must-have."

// BuildPrompt renders the generation prompt for a trait set. It is a pure
// function of the set's names and values.
func BuildPrompt(set traits.Set) string {
	parts := []string{
		promptPreamble,
		"Inside of the blister pack there is one full-body collectible action figure. Render the image in a detailed 3D toy aesthetic, the action figure is presented in transparent blister pack with a colorful paper back.",
		fmt.Sprintf("The action figure is a %s %s of %s build with %s skin.",
			set.Get("Age Range"), displayGender(set.Get("Gender")), set.Get("Build"), set.Get("Skin Tone")),
		fmt.Sprintf("The face is detailed, the hair is %s, the hair color is %s and the hair is styled %s. The figurine face also has %s.",
			set.Get("Hair Length"), set.Get("Hair Color"), set.Get("Haircut Style"), set.Get("Facial Features")),
		fmt.Sprintf("The action figure has a %s expression and is wearing %s. The action figure is in a %s pose.",
			set.Get("Facial Expression"), set.Get("Clothing"), set.Get("Posture")),
	}
	if features := AdditionalFeatures(set); len(features) > 0 {
		parts = append(parts, "The action figure also has the following features: "+strings.Join(features, ", ")+".")
	}
	return strings.Join(parts, "\n")
}

// AdditionalFeatures lists the flag traits valued exactly "Yes", prefix
// stripped and lower-cased ("Has Glasses" → "glasses"), in vocabulary order.
func AdditionalFeatures(set traits.Set) []string {
	vocab := set.Vocabulary()
	lower := cases.Lower(language.English)
	var out []string
	for _, e := range set.Entries() {
		if !vocab.IsFlag(e.Name) || e.Value != "Yes" {
			continue
		}
		label := strings.TrimSpace(strings.TrimPrefix(e.Name, vocab.FlagPrefix()))
		if label == "" {
			continue
		}
		out = append(out, lower.String(label))
	}
	return out
}

func displayGender(gender string) string {
	switch gender {
	case "Male":
		return "Man"
	case "Female":
		return "Woman"
	default:
		return gender
	}
}
