package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

const tokensFormatRevision = 1

// TokensParser accepts a pre-rendered code file as JSON. Comments and
// trailing commas are tolerated.
type TokensParser struct{}

var _ ports.Parser = TokensParser{}

func NewTokensParser() TokensParser { return TokensParser{} }

func (TokensParser) Name() string          { return "json-tokens" }
func (TokensParser) Languages() []string   { return nil }
func (TokensParser) Extensions() []string  { return []string{".json"} }
func (p TokensParser) VersionString() string {
	return fmt.Sprintf("%s/%d", p.Name(), tokensFormatRevision)
}

func (p TokensParser) Supports(fileName string) bool {
	return hasExtension(fileName, p.Extensions())
}

func (p TokensParser) CanUpdate(versionString string) bool {
	return canUpdate(p.Name(), tokensFormatRevision, versionString)
}

func (p TokensParser) Parse(ctx context.Context, fileName string, content []byte, _ bool) (domainreview.CodeFile, error) {
	if ctx == nil {
		return domainreview.CodeFile{}, fmt.Errorf("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domainreview.CodeFile{}, errs.Wrap(err, "check context")
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return domainreview.CodeFile{}, domainreview.ErrEmptyUpload
	}

	var file domainreview.CodeFile
	if err := json.Unmarshal(jsonc.ToJSON(content), &file); err != nil {
		return domainreview.CodeFile{}, fmt.Errorf("%w: %s: %v", domainreview.ErrMalformedUpload, p.Name(), err)
	}
	file.Language = strings.TrimSpace(file.Language)
	file.PackageName = strings.TrimSpace(file.PackageName)
	if file.Language == "" || file.PackageName == "" {
		return domainreview.CodeFile{}, fmt.Errorf("%w: Language and PackageName are required", domainreview.ErrMalformedUpload)
	}

	for i := range file.Lines {
		file.Lines[i].Text = strings.TrimRight(file.Lines[i].Text, " \t\r")
	}
	file.VersionString = p.VersionString()
	file.Name = filepath.Base(fileName)
	return file, nil
}
