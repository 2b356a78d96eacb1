// Package lang enumerates the languages the assistant speaks.
package lang

import (
	"fmt"
	"strings"
)

type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
	Telugu  Language = "te"
)

// Default is the primary language used when nothing else is configured.
const Default = English

var locales = map[Language]string{
	English: "en-IN",
	Hindi:   "hi-IN",
	Telugu:  "te-IN",
}

// All returns every supported language, primary first.
func All() []Language {
	return []Language{English, Hindi, Telugu}
}

func (l Language) Valid() bool {
	_, ok := locales[l]
	return ok
}

// Locale returns the speech engine tag, e.g. "hi-IN".
func (l Language) Locale() string {
	if tag, ok := locales[l]; ok {
		return tag
	}
	return locales[Default]
}

func (l Language) String() string { return string(l) }

func Parse(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("unsupported language %q", s)
	}
	return l, nil
}

// FromLocale maps a locale tag back to its language code ("te-IN" -> "te").
// Unknown tags yield the bare prefix so engines can still try it.
func FromLocale(tag string) string {
	code, _, _ := strings.Cut(strings.TrimSpace(tag), "-")
	return strings.ToLower(code)
}
