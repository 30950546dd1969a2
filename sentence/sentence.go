// Package sentence turns a list of words into a human readable sentence,
// e.g. ["a", "b", "c"] becomes "a, b, and c".
package sentence

import (
	"strings"

	"golang.org/x/text/language"
)

// Connectors are the separators placed between joined words.
type Connectors struct {
	Words    string // between all but the last two words
	TwoWords string // between exactly two words
	LastWord string // before the last of three or more words
}

// English connectors, used when no better locale match exists
var English = Connectors{
	Words:    ", ",
	TwoWords: " and ",
	LastWord: ", and ",
}

var localized = map[language.Tag]Connectors{
	language.English: English,
	language.German: {
		Words:    ", ",
		TwoWords: " und ",
		LastWord: " und ",
	},
	language.French: {
		Words:    ", ",
		TwoWords: " et ",
		LastWord: " et ",
	},
	language.Spanish: {
		Words:    ", ",
		TwoWords: " y ",
		LastWord: " y ",
	},
	language.Portuguese: {
		Words:    ", ",
		TwoWords: " e ",
		LastWord: " e ",
	},
}

// English must stay first: the matcher falls back to the first entry
var supported = []language.Tag{
	language.English,
	language.German,
	language.French,
	language.Spanish,
	language.Portuguese,
}

var matcher = language.NewMatcher(supported)

// Join concatenates words into a sentence using the given connectors.
// An empty list gives an empty string and a single word is returned as-is.
func Join(words []string, c Connectors) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	case 2:
		return words[0] + c.TwoWords + words[1]
	}

	var sb strings.Builder
	last := len(words) - 1
	for i, w := range words[:last] {
		if i > 0 {
			sb.WriteString(c.Words)
		}
		sb.WriteString(w)
	}
	sb.WriteString(c.LastWord)
	sb.WriteString(words[last])
	return sb.String()
}

// ToSentence joins words with the English connectors
func ToSentence(words []string) string {
	return Join(words, English)
}

// Supported returns the languages that have their own connectors
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// ForLanguage picks the connectors best matching the given language
func ForLanguage(tag language.Tag) Connectors {
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return English
	}
	return localized[supported[idx]]
}

// ForAcceptLanguage picks connectors from an Accept-Language header value.
// Unparseable or empty headers give English.
func ForAcceptLanguage(header string) Connectors {
	header = strings.TrimSpace(header)
	if header == "" {
		return English
	}

	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return English
	}

	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return English
	}
	return localized[supported[idx]]
}
