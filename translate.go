package psadiag

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cloudfoundry/jibber_jabber"
	"golang.org/x/text/language"
)

const (
	DefaultLanguage     = "en"
	preferencesFilename = "preferences.json"
)

// Translator resolves dotted message keys ("messages.update.title") against
// the embedded lang/<code>.json files. Strings may contain template
// variables which are expanded on lookup.
type Translator struct {
	language    string
	langStrings map[string]map[string]interface{}
	variables   StringMap
	prefPath    string
}

// NewTranslator returns a Translator without any variable lookup.
func NewTranslator() *Translator {
	return NewTranslatorVar(StringMap{})
}

// NewTranslatorVar returns a Translator with a variable lookup. It scans for
// any json files inside the lang folder in the resources box. The language
// starts out as the persisted preference, falling back to the closest match
// for the system locale.
func NewTranslatorVar(variables StringMap) *Translator {
	languageFiles := MustGetResourceFiltered("lang", regexp.MustCompile(`\.json$`))
	languages := make(map[string]map[string]interface{})
	for filename, content := range languageFiles {
		languageTag := regexp.MustCompile(`.*/([^/]+)\.json`).ReplaceAllString(filename, "$1")
		langStrings := make(map[string]interface{})
		err := json.Unmarshal([]byte(content), &langStrings)
		if err != nil {
			log.Printf("Unable to parse language file %s\n", filename)
			continue
		}
		languages[languageTag] = langStrings
	}
	return newTranslator(languages, variables, filepath.Join(ConfigDir(), preferencesFilename))
}

func newTranslator(
	languages map[string]map[string]interface{}, variables StringMap, prefPath string,
) *Translator {
	t := Translator{
		langStrings: languages,
		variables:   variables,
		prefPath:    prefPath,
	}
	lang := t.loadLanguagePreference()
	if lang == "" {
		lang = t.getLocale()
	}
	if err := t.setLanguage(lang); err != nil {
		if err = t.setLanguage(DefaultLanguage); err != nil {
			return nil
		}
	}
	return &t
}

// Get returns the localized string for a given dotted key. Unknown keys are
// returned unchanged so a missing translation never hides which message was
// meant.
func (t *Translator) Get(key string) string {
	return t.Tr(key, nil)
}

// Tr returns the localized string for a given dotted key, with the given
// parameters (on top of the translator's own variables) expanded into it.
func (t *Translator) Tr(key string, params StringMap) string {
	str, ok := t.getRaw(key, t.language)
	if !ok {
		log.Printf("Translation key not found: %s", key)
		return key
	}
	return ExpandVariables(str, MergeVariables(t.variables, params))
}

// GetLanguage returns the identifier (e.g. "en") for the current language.
func (t *Translator) GetLanguage() string { return t.language }

// GetLanguages returns a list of identifiers for all available languages.
// The default language (if it has strings available) will be the first in
// the list, the rest is sorted alphabetically.
func (t *Translator) GetLanguages() (languages []string) {
	hasDefault := false
	for lang := range t.langStrings {
		if lang != DefaultLanguage {
			languages = append(languages, lang)
		} else {
			hasDefault = true
		}
	}
	sort.Strings(languages)
	if hasDefault {
		languages = append([]string{DefaultLanguage}, languages...)
	}
	return languages
}

// SetLanguage sets the translator's language and persists it as the user's
// preference.
func (t *Translator) SetLanguage(language string) error {
	if err := t.setLanguage(language); err != nil {
		return err
	}
	t.saveLanguagePreference()
	return nil
}

func (t *Translator) setLanguage(language string) error {
	if _, ok := t.langStrings[language]; !ok {
		return fmt.Errorf("no language '%s'", language)
	}
	t.language = language
	return nil
}

// getRaw returns the raw string for a dotted key in the given language,
// trying the default language when the key (or the language) is missing.
func (t *Translator) getRaw(key, lang string) (string, bool) {
	for _, l := range []string{lang, DefaultLanguage} {
		strings, ok := t.langStrings[l]
		if !ok {
			continue
		}
		if value, ok := lookupDotted(strings, key); ok {
			return value, true
		}
	}
	return "", false
}

// lookupDotted walks a nested string map along a dotted key path.
func lookupDotted(strs map[string]interface{}, key string) (string, bool) {
	parts := strings.Split(key, ".")
	var current interface{} = strs
	for _, part := range parts {
		node, ok := current.(map[string]interface{})
		if !ok {
			return "", false
		}
		current, ok = node[part]
		if !ok {
			return "", false
		}
	}
	value, ok := current.(string)
	return value, ok
}

// getLocale returns the current system locale matched against the available
// languages, as a language code string (e.g.: "en").
func (t *Translator) getLocale() string {
	languageTags := []language.Tag{language.Raw.Make(DefaultLanguage)}
	for languageTag := range t.langStrings {
		if languageTag != DefaultLanguage && languageTag != "" {
			languageTags = append(languageTags, language.Raw.Make(languageTag))
		}
	}
	locale, _ := jibber_jabber.DetectIETF()
	match, _, _ := language.NewMatcher(languageTags).Match(language.Make(locale))
	return match.String()
}

func (t *Translator) saveLanguagePreference() {
	if err := os.MkdirAll(filepath.Dir(t.prefPath), 0755); err != nil {
		log.Printf("Failed to save language preference: %s", err)
		return
	}
	data, _ := json.Marshal(map[string]string{"language": t.language})
	if err := os.WriteFile(t.prefPath, data, 0644); err != nil {
		log.Printf("Failed to save language preference: %s", err)
	}
}

func (t *Translator) loadLanguagePreference() string {
	data, err := os.ReadFile(t.prefPath)
	if err != nil {
		return ""
	}
	prefs := make(map[string]string)
	if err = json.Unmarshal(data, &prefs); err != nil {
		log.Printf("Failed to load language preference: %s", err)
		return ""
	}
	return prefs["language"]
}
