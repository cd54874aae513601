package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

// Bump when the rendering of descriptors changes so stored reviews refresh.
const descriptorFormatRevision = 2

type decodeFunc func(content []byte, out *Descriptor) error

// DescriptorParser parses Descriptor documents in one serialization.
type DescriptorParser struct {
	name       string
	extensions []string
	decode     decodeFunc
}

var _ ports.Parser = (*DescriptorParser)(nil)

func NewYAMLParser() *DescriptorParser {
	return &DescriptorParser{
		name:       "yaml-descriptor",
		extensions: []string{".yaml", ".yml"},
		decode: func(content []byte, out *Descriptor) error {
			dec := yaml.NewDecoder(bytes.NewReader(content))
			dec.KnownFields(true)
			return dec.Decode(out)
		},
	}
}

func NewTOMLParser() *DescriptorParser {
	return &DescriptorParser{
		name:       "toml-descriptor",
		extensions: []string{".toml"},
		decode: func(content []byte, out *Descriptor) error {
			dec := toml.NewDecoder(bytes.NewReader(content))
			dec.DisallowUnknownFields()
			return dec.Decode(out)
		},
	}
}

func (p *DescriptorParser) Name() string         { return p.name }
func (p *DescriptorParser) Languages() []string  { return nil }
func (p *DescriptorParser) Extensions() []string { return append([]string(nil), p.extensions...) }

func (p *DescriptorParser) VersionString() string {
	return fmt.Sprintf("%s/%d", p.name, descriptorFormatRevision)
}

func (p *DescriptorParser) Supports(fileName string) bool {
	return hasExtension(fileName, p.extensions)
}

func (p *DescriptorParser) CanUpdate(versionString string) bool {
	return canUpdate(p.name, descriptorFormatRevision, versionString)
}

func (p *DescriptorParser) Parse(ctx context.Context, fileName string, content []byte, runAnalysis bool) (domainreview.CodeFile, error) {
	if ctx == nil {
		return domainreview.CodeFile{}, fmt.Errorf("context is required")
	}
	if err := ctx.Err(); err != nil {
		return domainreview.CodeFile{}, errs.Wrap(err, "check context")
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return domainreview.CodeFile{}, domainreview.ErrEmptyUpload
	}

	var desc Descriptor
	if err := p.decode(content, &desc); err != nil {
		return domainreview.CodeFile{}, fmt.Errorf("%w: %s: %v", domainreview.ErrMalformedUpload, p.name, err)
	}
	if err := desc.validate(); err != nil {
		return domainreview.CodeFile{}, err
	}
	if runAnalysis {
		desc.analyze(ctx)
	}
	return desc.render(fileName, p.VersionString()), nil
}

func hasExtension(fileName string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		return false
	}
	for _, candidate := range extensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// canUpdate reports whether output stamped with versionString predates the
// given parser revision. Empty or malformed stamps count as outdated; stamps
// of another parser family or of a newer revision are left alone.
func canUpdate(family string, revision int, versionString string) bool {
	versionString = strings.TrimSpace(versionString)
	if versionString == "" {
		return true
	}
	name, number, ok := strings.Cut(versionString, "/")
	if !ok {
		return true
	}
	stored, err := strconv.Atoi(number)
	if err != nil || stored < 0 {
		return true
	}
	if name != family {
		return false
	}
	return stored < revision
}
