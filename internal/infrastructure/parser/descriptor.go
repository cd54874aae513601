package parser

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
)

// Descriptor is the API surface description accepted in YAML and TOML form.
type Descriptor struct {
	Language string           `yaml:"language" toml:"language" json:"language" jsonschema:"description=Language of the package, for example Java"`
	Package  string           `yaml:"package" toml:"package" json:"package" jsonschema:"description=Package name"`
	Version  string           `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Package release version"`
	Doc      string           `yaml:"doc,omitempty" toml:"doc,omitempty" json:"doc,omitempty"`
	Types    []TypeDescriptor `yaml:"types,omitempty" toml:"types,omitempty" json:"types,omitempty"`
}

type TypeDescriptor struct {
	Name    string             `yaml:"name" toml:"name" json:"name"`
	Kind    string             `yaml:"kind,omitempty" toml:"kind,omitempty" json:"kind,omitempty" jsonschema:"enum=class,enum=interface,enum=enum,enum=struct,enum=module,enum=function"`
	Doc     string             `yaml:"doc,omitempty" toml:"doc,omitempty" json:"doc,omitempty"`
	Members []MemberDescriptor `yaml:"members,omitempty" toml:"members,omitempty" json:"members,omitempty"`
}

type MemberDescriptor struct {
	Signature string `yaml:"signature" toml:"signature" json:"signature"`
	Doc       string `yaml:"doc,omitempty" toml:"doc,omitempty" json:"doc,omitempty"`
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.Language) == "" {
		return fmt.Errorf("%w: language is required", domainreview.ErrMalformedUpload)
	}
	if strings.TrimSpace(d.Package) == "" {
		return fmt.Errorf("%w: package is required", domainreview.ErrMalformedUpload)
	}
	for i, typ := range d.Types {
		if strings.TrimSpace(typ.Name) == "" {
			return fmt.Errorf("%w: types[%d].name is required", domainreview.ErrMalformedUpload, i)
		}
	}
	return nil
}

// render lays the descriptor out as indented lines. Documentation and the
// release version are documentation lines so they never affect equivalence.
func (d Descriptor) render(fileName string, versionString string) domainreview.CodeFile {
	pkg := normalizeSignature(d.Package)
	lines := make([]domainreview.CodeLine, 0, 8+4*len(d.Types))

	if v := strings.TrimSpace(d.Version); v != "" {
		lines = append(lines, docLine("", "version "+v))
	}
	lines = append(lines, docLines("", d.Doc)...)
	lines = append(lines, domainreview.CodeLine{Text: "package " + pkg + " {", ElementID: pkg})

	for _, typ := range d.Types {
		name := normalizeSignature(typ.Name)
		kind := normalizeSignature(typ.Kind)
		if kind == "" {
			kind = "class"
		}
		typeID := pkg + "." + name

		lines = append(lines, docLines("  ", typ.Doc)...)
		lines = append(lines, domainreview.CodeLine{Text: "  " + kind + " " + name + " {", ElementID: typeID})
		for _, member := range typ.Members {
			signature := normalizeSignature(member.Signature)
			if signature == "" {
				continue
			}
			lines = append(lines, docLines("    ", member.Doc)...)
			lines = append(lines, domainreview.CodeLine{Text: "    " + signature, ElementID: typeID + "." + signature})
		}
		lines = append(lines, domainreview.CodeLine{Text: "  }"})
	}
	lines = append(lines, domainreview.CodeLine{Text: "}"})

	return domainreview.CodeFile{
		Language:      strings.TrimSpace(d.Language),
		PackageName:   pkg,
		VersionString: versionString,
		Name:          filepath.Base(fileName),
		Lines:         lines,
	}
}

// analyze reports descriptor smells. It never changes the rendering.
func (d Descriptor) analyze(ctx context.Context) int {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "parser.analysis"),
		slog.String("package", d.Package),
	)

	findings := 0
	for _, typ := range d.Types {
		if len(typ.Members) == 0 {
			findings++
			logging.Warn(logCtx, "type has no members", slog.String("type", typ.Name))
		}
		seen := make(map[string]struct{}, len(typ.Members))
		for _, member := range typ.Members {
			signature := normalizeSignature(member.Signature)
			if _, ok := seen[signature]; ok {
				findings++
				logging.Warn(logCtx, "duplicate member signature", slog.String("type", typ.Name), slog.String("signature", signature))
				continue
			}
			seen[signature] = struct{}{}
		}
	}
	return findings
}

func normalizeSignature(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func docLine(indent string, text string) domainreview.CodeLine {
	return domainreview.CodeLine{Text: indent + "// " + text, IsDocumentation: true}
}

func docLines(indent string, doc string) []domainreview.CodeLine {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return nil
	}
	parts := strings.Split(doc, "\n")
	out := make([]domainreview.CodeLine, 0, len(parts))
	for _, part := range parts {
		out = append(out, docLine(indent, strings.TrimSpace(part)))
	}
	return out
}
