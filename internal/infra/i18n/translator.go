package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Translator resolves user-facing message keys. Gateway codes and internal
// reasons never reach the client; handlers translate a reason key instead.
type Translator struct {
	lang         string
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	t, err := newTranslatorFromBytes(data)
	if err != nil {
		return nil, err
	}
	t.lang = langCode
	return t, nil
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

func (t *Translator) Lang() string { return t.lang }

func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Bundle holds one Translator per loaded language and falls back to def.
type Bundle struct {
	def   *Translator
	langs map[string]*Translator
}

func NewBundle(fsys fs.FS, def string, others ...string) (*Bundle, error) {
	d, err := NewTranslator(fsys, def)
	if err != nil {
		return nil, err
	}
	b := &Bundle{def: d, langs: map[string]*Translator{def: d}}
	for _, l := range others {
		if l == def {
			continue
		}
		tr, err := NewTranslator(fsys, l)
		if err != nil {
			return nil, err
		}
		b.langs[l] = tr
	}
	return b, nil
}

// For picks the translator for lang, or the default one.
func (b *Bundle) For(lang string) *Translator {
	if t, ok := b.langs[lang]; ok {
		return t
	}
	return b.def
}
