package books

import (
	"errors"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Pace is the declared reading-pace preference.
type Pace string

const (
	PaceSlowBurn Pace = "slow-burn"
	PaceFast     Pace = "fast-paced"
	PaceVariety  Pace = "variety"
)

// Length is the declared book-length preference.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthEpic   Length = "epic"
	LengthAny    Length = "any"
)

// Vocabularies offered by the onboarding questionnaire. Books and
// preferences may carry other tags; these are the ones the UI offers.
var (
	KnownGenres = []string{"Romance", "Fantasy", "Mystery", "Sci-fi", "Contemporary", "Historical", "Non-fiction"}
	KnownVibes  = []string{"Cozy", "Dark", "Dreamy", "Spicy", "Cottagecore", "Melancholy", "Feel-good"}
	KnownThemes = []string{"Healing", "Found family", "Enemies-to-lovers", "Coming-of-age", "Grief", "Adventure", "Self-discovery"}
)

// Preferences is the user's declared taste profile. It is replaced wholesale
// on every onboarding submission and never partially mutated.
type Preferences struct {
	Genres []string `json:"genres" yaml:"genres" validate:"dive,required,max=64"`
	Vibes  []string `json:"vibes" yaml:"vibes" validate:"dive,required,max=64"`
	Themes []string `json:"themes" yaml:"themes" validate:"dive,required,max=64"`
	Pace   Pace     `json:"pacePreference,omitempty" yaml:"pace,omitempty" validate:"omitempty,oneof=slow-burn fast-paced variety"`
	Length Length   `json:"lengthPreference,omitempty" yaml:"length,omitempty" validate:"omitempty,oneof=short medium epic any"`
}

var validate = validator.New()

// IsEmpty reports whether the profile carries nothing that can influence
// ranking.
func (p *Preferences) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.Genres) == 0 && len(p.Vibes) == 0 && len(p.Themes) == 0 && p.Length == ""
}

// Sanitize returns a copy of p with malformed fields treated as absent:
// blank and duplicate tags are dropped, questionnaire labels are mapped to
// their enum values and unknown enum values are cleared. It never fails.
func (p Preferences) Sanitize() Preferences {
	out := Preferences{
		Genres: cleanTags(p.Genres),
		Vibes:  cleanTags(p.Vibes),
		Themes: cleanTags(p.Themes),
		Pace:   ParsePace(string(p.Pace)),
		Length: ParseLength(string(p.Length)),
	}

	err := validate.Struct(out)
	var verrs validator.ValidationErrors
	if err == nil || !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		field := fe.StructField()
		switch {
		case strings.HasPrefix(field, "Genres"):
			out.Genres = validTags(out.Genres)
		case strings.HasPrefix(field, "Vibes"):
			out.Vibes = validTags(out.Vibes)
		case strings.HasPrefix(field, "Themes"):
			out.Themes = validTags(out.Themes)
		case field == "Pace":
			out.Pace = ""
		case field == "Length":
			out.Length = ""
		}
	}
	return out
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func validTags(tags []string) []string {
	return slices.DeleteFunc(slices.Clone(tags), func(t string) bool {
		return validate.Var(t, "required,max=64") != nil
	})
}

// ParsePace maps an enum value or a questionnaire label ("Slow burn",
// "Fast-paced", "I like variety") to a Pace. Unknown input yields "".
func ParsePace(s string) Pace {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "slow"):
		return PaceSlowBurn
	case strings.Contains(s, "fast"):
		return PaceFast
	case strings.Contains(s, "variety"):
		return PaceVariety
	}
	return ""
}

// ParseLength maps an enum value or a questionnaire label
// ("Short & sweet (< 300 pages)", "Epic (> 450 pages)", ...) to a Length.
// Unknown input yields "".
func ParseLength(s string) Length {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "short"):
		return LengthShort
	case strings.Contains(s, "epic"):
		return LengthEpic
	case strings.Contains(s, "medium"):
		return LengthMedium
	case s == "any" || strings.Contains(s, "doesn't matter") || strings.Contains(s, "does not matter"):
		return LengthAny
	}
	return ""
}
