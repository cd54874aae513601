package ports

import (
	"context"

	domainreview "apiview/internal/domain/review"
)

// Parser converts one kind of uploaded descriptor into a CodeFile.
type Parser interface {
	Name() string
	Languages() []string
	Extensions() []string
	// Supports reports whether the parser accepts the file name.
	Supports(fileName string) bool
	// VersionString identifies the output format this parser produces today.
	VersionString() string
	Parse(ctx context.Context, fileName string, content []byte, runAnalysis bool) (domainreview.CodeFile, error)
	// CanUpdate reports whether content stored with versionString came from
	// an older revision of this parser. Output of other parsers or of newer
	// revisions is never claimed.
	CanUpdate(versionString string) bool
}

type ParserRegistry interface {
	ForFile(fileName string) (Parser, bool)
	ForLanguage(language string) (Parser, bool)
	// Resolve prefers the file name and falls back to the language.
	Resolve(fileName string, language string) (Parser, bool)
}
