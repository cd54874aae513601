package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"apiview/internal/ports"
)

// Registry resolves parsers by file extension and by language. It is built
// once and read-only afterwards.
type Registry struct {
	parsers     []ports.Parser
	byExtension map[string]ports.Parser
	byLanguage  map[string]ports.Parser
	byName      map[string]ports.Parser
}

var _ ports.ParserRegistry = (*Registry)(nil)

func NewRegistry(parsers ...ports.Parser) (*Registry, error) {
	r := &Registry{
		byExtension: make(map[string]ports.Parser),
		byLanguage:  make(map[string]ports.Parser),
		byName:      make(map[string]ports.Parser),
	}
	for _, p := range parsers {
		if p == nil {
			continue
		}
		if _, dup := r.byName[p.Name()]; dup {
			return nil, fmt.Errorf("parser %q registered twice", p.Name())
		}
		r.byName[p.Name()] = p
		r.parsers = append(r.parsers, p)

		for _, ext := range p.Extensions() {
			ext = strings.ToLower(ext)
			if other, dup := r.byExtension[ext]; dup {
				return nil, fmt.Errorf("extension %q claimed by %q and %q", ext, other.Name(), p.Name())
			}
			r.byExtension[ext] = p
		}
		for _, language := range p.Languages() {
			r.byLanguage[languageKey(language)] = p
		}
	}
	return r, nil
}

// NewDefaultRegistry registers every built-in parser. languageDefaults maps
// a language to the parser name used when no file name resolves.
func NewDefaultRegistry(languageDefaults map[string]string) (*Registry, error) {
	r, err := NewRegistry(NewYAMLParser(), NewTOMLParser(), NewTokensParser())
	if err != nil {
		return nil, err
	}
	for language, name := range languageDefaults {
		if err := r.SetLanguageDefault(language, name); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) SetLanguageDefault(language string, parserName string) error {
	p, ok := r.byName[strings.TrimSpace(parserName)]
	if !ok {
		return fmt.Errorf("unknown parser %q for language %q", parserName, language)
	}
	r.byLanguage[languageKey(language)] = p
	return nil
}

// ForFile asks the parser registered for the file's extension first, then
// every parser in registration order.
func (r *Registry) ForFile(fileName string) (ports.Parser, bool) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, false
	}
	if p, ok := r.byExtension[strings.ToLower(filepath.Ext(fileName))]; ok && p.Supports(fileName) {
		return p, true
	}
	for _, p := range r.parsers {
		if p.Supports(fileName) {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) ForLanguage(language string) (ports.Parser, bool) {
	p, ok := r.byLanguage[languageKey(language)]
	return p, ok
}

func (r *Registry) Resolve(fileName string, language string) (ports.Parser, bool) {
	if p, ok := r.ForFile(fileName); ok {
		return p, true
	}
	return r.ForLanguage(language)
}

// Parsers lists registered parsers in registration order.
func (r *Registry) Parsers() []ports.Parser {
	return append([]ports.Parser(nil), r.parsers...)
}

func languageKey(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}
