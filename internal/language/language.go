package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize canonicalizes a user-supplied language code or name to a BCP 47
// tag string ("en", "pt-BR"). Returns empty string for unrecognized input.
func Normalize(code string) string {
	tag, ok := parse(code)
	if !ok {
		return ""
	}
	return tag.String()
}

// DisplayName returns the English name of a language for use in job titles
// ("pt-BR" -> "Brazilian Portuguese"). Unrecognized input falls back to the
// uppercased raw code, empty input to "Unknown".
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	tag, ok := parse(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	name := display.English.Tags().Name(tag)
	if name == "" {
		return strings.ToUpper(trimmed)
	}
	return name
}

// SelfName returns the language's name in that language itself ("de" ->
// "Deutsch"), used when labeling bilingual output chapters.
func SelfName(code string) string {
	tag, ok := parse(code)
	if !ok {
		return DisplayName(code)
	}
	name := display.Self.Name(tag)
	if name == "" {
		return DisplayName(code)
	}
	return name
}

// Equal reports whether two codes refer to the same base language, ignoring
// region and script ("pt" and "pt-BR" are equal).
func Equal(a, b string) bool {
	tagA, okA := parse(a)
	tagB, okB := parse(b)
	if !okA || !okB {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	baseA, confA := tagA.Base()
	baseB, confB := tagB.Base()
	if confA == language.No || confB == language.No {
		return tagA == tagB
	}
	return baseA == baseB
}

func parse(code string) (language.Tag, bool) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return language.Und, false
	}
	tag, err := language.Parse(trimmed)
	if err != nil || tag == language.Und {
		// Accept full names like "german" as a convenience.
		if byName, ok := lookupByName(trimmed); ok {
			return byName, true
		}
		return language.Und, false
	}
	return tag, true
}

var namedLanguages = map[string]language.Tag{
	"english":    language.English,
	"spanish":    language.Spanish,
	"french":     language.French,
	"german":     language.German,
	"italian":    language.Italian,
	"portuguese": language.Portuguese,
	"japanese":   language.Japanese,
	"korean":     language.Korean,
	"chinese":    language.Chinese,
	"russian":    language.Russian,
	"arabic":     language.Arabic,
	"hindi":      language.Hindi,
	"dutch":      language.Dutch,
	"polish":     language.Polish,
	"swedish":    language.Swedish,
	"ukrainian":  language.Ukrainian,
	"turkish":    language.Turkish,
}

func lookupByName(name string) (language.Tag, bool) {
	tag, ok := namedLanguages[strings.ToLower(name)]
	return tag, ok
}
