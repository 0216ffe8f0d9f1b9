// Package i18n is the localized-string lookup keyed by locale and message key.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLocale is used when a conversant has no locale on record.
const DefaultLocale = "pt-BR"

//go:embed locales/*.yaml
var localeFiles embed.FS

// Translator renders a message key for a locale.
type Translator interface {
	T(locale, key string, args ...any) string
}

// Catalog holds the messages of every bundled locale.
type Catalog struct {
	fallback string
	messages map[string]map[string]string
}

// Load parses the embedded locale files. fallback is used for unknown
// locales and missing keys; empty means DefaultLocale.
func Load(fallback string) (*Catalog, error) {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultLocale
	}
	entries, err := localeFiles.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales: %w", err)
	}
	c := &Catalog{fallback: fallback, messages: make(map[string]map[string]string)}
	for _, e := range entries {
		raw, err := localeFiles.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", e.Name(), err)
		}
		var msgs map[string]string
		if err := yaml.Unmarshal(raw, &msgs); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", e.Name(), err)
		}
		c.messages[strings.TrimSuffix(e.Name(), ".yaml")] = msgs
	}
	if _, ok := c.messages[fallback]; !ok {
		return nil, fmt.Errorf("i18n: fallback locale %q is not bundled", fallback)
	}
	return c, nil
}

// Locales lists the bundled locale names.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.messages))
	for l := range c.messages {
		out = append(out, l)
	}
	return out
}

// Has reports whether key exists for locale without falling back.
func (c *Catalog) Has(locale, key string) bool {
	_, ok := c.messages[locale][key]
	return ok
}

// T renders key for locale. Unknown locales resolve by language prefix
// ("pt" -> "pt-BR") and then to the fallback; a missing key renders as the
// key itself.
func (c *Catalog) T(locale, key string, args ...any) string {
	tmpl, ok := c.lookup(locale, key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (c *Catalog) lookup(locale, key string) (string, bool) {
	if msgs, ok := c.messages[c.resolve(locale)]; ok {
		if s, ok := msgs[key]; ok {
			return s, true
		}
	}
	s, ok := c.messages[c.fallback][key]
	return s, ok
}

func (c *Catalog) resolve(locale string) string {
	if _, ok := c.messages[locale]; ok {
		return locale
	}
	lang, _, _ := strings.Cut(strings.ToLower(locale), "-")
	for l := range c.messages {
		if strings.HasPrefix(strings.ToLower(l), lang) && lang != "" {
			return l
		}
	}
	return c.fallback
}
