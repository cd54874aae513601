package parser

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	domainreview "apiview/internal/domain/review"
)

const fooYAML = `
language: Java
package: foo
version: 1.0.0
doc: Widgets for everyone.
types:
  - name: Widget
    kind: class
    doc: A widget.
    members:
      - signature: "public   void spin(int times)"
        doc: Spins.
      - signature: public int size()
`

const fooTOML = `
language = "Java"
package = "foo"
version = "2.0.0"

[[types]]
name = "Widget"
kind = "class"

  [[types.members]]
  signature = "public void spin(int times)"

  [[types.members]]
  signature = "public int size()"
`

func TestYAMLAndTOMLRenderSameSurface(t *testing.T) {
	ctx := context.Background()

	fromYAML, err := NewYAMLParser().Parse(ctx, "foo.yaml", []byte(fooYAML), false)
	if err != nil {
		t.Fatalf("YAML Parse() error = %v", err)
	}
	fromTOML, err := NewTOMLParser().Parse(ctx, "foo.toml", []byte(fooTOML), true)
	if err != nil {
		t.Fatalf("TOML Parse() error = %v", err)
	}

	if fromYAML.Language != "Java" || fromYAML.PackageName != "foo" || fromYAML.Name != "foo.yaml" {
		t.Fatalf("YAML metadata = %+v", fromYAML)
	}
	if fromYAML.VersionString != "yaml-descriptor/2" {
		t.Fatalf("YAML VersionString = %q", fromYAML.VersionString)
	}
	// Docs and release version differ, the surface does not.
	if !domainreview.AreEquivalent(fromYAML, fromTOML) {
		t.Fatalf("AreEquivalent() = false\nyaml=%v\ntoml=%v",
			fromYAML.Render(domainreview.RenderOptions{}), fromTOML.Render(domainreview.RenderOptions{}))
	}

	want := []string{
		"package foo {",
		"  class Widget {",
		"    public void spin(int times)",
		"    public int size()",
		"  }",
		"}",
	}
	got := fromYAML.Render(domainreview.RenderOptions{})
	if len(got) != len(want) {
		t.Fatalf("Render() = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Render()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDescriptorParserRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	p := NewYAMLParser()

	testCases := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "empty", content: "  \n", wantErr: domainreview.ErrEmptyUpload},
		{name: "missing package", content: "language: Java\n", wantErr: domainreview.ErrMalformedUpload},
		{name: "unknown field", content: "language: Java\npackage: foo\nbogus: 1\n", wantErr: domainreview.ErrMalformedUpload},
		{name: "unnamed type", content: "language: Java\npackage: foo\ntypes:\n  - kind: class\n", wantErr: domainreview.ErrMalformedUpload},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Parse(ctx, "foo.yaml", []byte(tc.content), false)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Parse() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestTokensParserAcceptsComments(t *testing.T) {
	content := `{
  // produced by the pipeline
  "Language": "Python",
  "PackageName": "bar",
  "VersionString": "producer-9",
  "Lines": [
    {"Text": "def run():   ", "ElementId": "bar.run"},
    {"Text": "# docs", "IsDocumentation": true},
  ],
}`
	file, err := NewTokensParser().Parse(context.Background(), "out/bar.json", []byte(content), false)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if file.VersionString != "json-tokens/1" || file.Name != "bar.json" {
		t.Fatalf("metadata = %+v", file)
	}
	if len(file.Lines) != 2 || file.Lines[0].Text != "def run():" || file.Lines[0].ElementID != "bar.run" {
		t.Fatalf("lines = %+v", file.Lines)
	}
}

func TestCanUpdate(t *testing.T) {
	p := NewYAMLParser()
	cases := []struct {
		version string
		want    bool
	}{
		{version: p.VersionString(), want: false},
		{version: "", want: true},
		{version: "yaml-descriptor/1", want: true},
		{version: " yaml-descriptor/0 ", want: true},
		{version: "yaml-descriptor", want: true},
		{version: "yaml-descriptor/next", want: true},
		{version: "yaml-descriptor/3", want: false},
		{version: "toml-descriptor/1", want: false},
		{version: "json-tokens/1", want: false},
	}
	for _, tc := range cases {
		if got := p.CanUpdate(tc.version); got != tc.want {
			t.Fatalf("CanUpdate(%q) = %v, want %v", tc.version, got, tc.want)
		}
	}

	tokens := NewTokensParser()
	if tokens.CanUpdate("json-tokens/1") || tokens.CanUpdate("json-tokens/2") {
		t.Fatalf("tokens parser treats current or newer output as stale")
	}
	if !tokens.CanUpdate("json-tokens/x") {
		t.Fatalf("tokens parser keeps malformed version")
	}
}

func TestRegistryResolve(t *testing.T) {
	r, err := NewDefaultRegistry(map[string]string{"Java": "toml-descriptor"})
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error = %v", err)
	}

	if p, ok := r.ForFile("api/Foo.YML"); !ok || p.Name() != "yaml-descriptor" {
		t.Fatalf("ForFile(.YML) = %v, %v", p, ok)
	}
	if _, ok := r.ForFile("foo.jar"); ok {
		t.Fatalf("ForFile(.jar) resolved a parser")
	}
	if p, ok := r.Resolve("renamed", "java"); !ok || p.Name() != "toml-descriptor" {
		t.Fatalf("Resolve() by language = %v, %v", p, ok)
	}
	if p, ok := r.Resolve("foo.json", "java"); !ok || p.Name() != "json-tokens" {
		t.Fatalf("Resolve() prefers file name, got %v", p)
	}
}

// manifestParser claims one well-known file name instead of an extension.
type manifestParser struct {
	*DescriptorParser
}

func (manifestParser) Name() string         { return "api-manifest" }
func (manifestParser) Extensions() []string { return nil }
func (manifestParser) Supports(fileName string) bool {
	return filepath.Base(fileName) == "API.manifest"
}

func TestRegistryForFileAsksParsers(t *testing.T) {
	r, err := NewRegistry(NewYAMLParser(), manifestParser{NewYAMLParser()})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	if p, ok := r.ForFile("pkg/API.manifest"); !ok || p.Name() != "api-manifest" {
		t.Fatalf("ForFile(API.manifest) = %v, %v", p, ok)
	}
	if p, ok := r.ForFile("pkg/api.yaml"); !ok || p.Name() != "yaml-descriptor" {
		t.Fatalf("ForFile(api.yaml) = %v, %v", p, ok)
	}
	if _, ok := r.ForFile("other.manifest"); ok {
		t.Fatalf("ForFile(other.manifest) resolved a parser")
	}
	if _, ok := r.ForFile("  "); ok {
		t.Fatalf("ForFile(blank) resolved a parser")
	}
}

func TestNewRegistryRejectsExtensionClash(t *testing.T) {
	if _, err := NewRegistry(NewYAMLParser(), NewYAMLParser()); err == nil {
		t.Fatalf("NewRegistry() error = nil for duplicate parser")
	}
}

func TestDescriptorSchema(t *testing.T) {
	raw, err := DescriptorSchema()
	if err != nil {
		t.Fatalf("DescriptorSchema() error = %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		t.Fatalf("unmarshal schema: %v", err)
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", raw)
	}
	if _, ok := props["types"]; !ok {
		t.Fatalf("schema properties missing types: %v", props)
	}
}
