package models

import (
	"encoding/json"
	"strings"
)

// Language selects the syntax-highlighting mode of a note.
// It is persisted as a small integer code so names can change freely.
type Language int

const (
	LanguageNone Language = iota
	LanguageAgda
	LanguageCabal
	LanguageCypher
	LanguageHaskell
	LanguageSQLite
	LanguageSwift
)

var languageNames = [...]string{
	LanguageNone:    "Text",
	LanguageAgda:    "Agda",
	LanguageCabal:   "Cabal",
	LanguageCypher:  "Cypher",
	LanguageHaskell: "Haskell",
	LanguageSQLite:  "SQLite",
	LanguageSwift:   "Swift",
}

// Languages lists every known language in code order.
func Languages() []Language {
	out := make([]Language, len(languageNames))
	for i := range languageNames {
		out[i] = Language(i)
	}
	return out
}

// Valid reports whether l is a known code.
func (l Language) Valid() bool {
	return l >= 0 && int(l) < len(languageNames)
}

// Name returns the display name; unknown codes render as Text.
func (l Language) Name() string {
	if !l.Valid() {
		return languageNames[LanguageNone]
	}
	return languageNames[l]
}

func (l Language) String() string {
	return l.Name()
}

// ParseLanguage maps a display name (case-insensitive) to a Language.
func ParseLanguage(name string) (Language, bool) {
	for i, n := range languageNames {
		if strings.EqualFold(n, name) {
			return Language(i), true
		}
	}
	if strings.EqualFold(name, "none") || name == "" {
		return LanguageNone, true
	}
	return LanguageNone, false
}

type languageJSON struct {
	Kind int `json:"kind"`
}

// MarshalJSON encodes the language as {"kind": code}.
func (l Language) MarshalJSON() ([]byte, error) {
	if !l.Valid() {
		l = LanguageNone
	}
	return json.Marshal(languageJSON{Kind: int(l)})
}

// UnmarshalJSON never fails: unknown or malformed codes fall back to LanguageNone.
func (l *Language) UnmarshalJSON(data []byte) error {
	*l = LanguageNone

	var obj languageJSON
	if err := json.Unmarshal(data, &obj); err == nil {
		if c := Language(obj.Kind); c.Valid() {
			*l = c
		}
		return nil
	}

	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		if c := Language(code); c.Valid() {
			*l = c
		}
	}
	return nil
}
