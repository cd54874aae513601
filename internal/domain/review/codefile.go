package review

import "strings"

// CodeFile is the structured, comparable form of a parsed upload.
type CodeFile struct {
	Language      string     `cbor:"1,keyasint" json:"Language"`
	PackageName   string     `cbor:"2,keyasint" json:"PackageName"`
	VersionString string     `cbor:"3,keyasint" json:"VersionString"`
	Name          string     `cbor:"4,keyasint" json:"Name"`
	Lines         []CodeLine `cbor:"5,keyasint" json:"Lines"`
}

// CodeLine is one rendered line. ElementID is an anchor used for navigation
// and diffing; it is not part of the surface text.
type CodeLine struct {
	Text            string `cbor:"1,keyasint" json:"Text"`
	ElementID       string `cbor:"2,keyasint,omitempty" json:"ElementId,omitempty"`
	IsDocumentation bool   `cbor:"3,keyasint,omitempty" json:"IsDocumentation,omitempty"`
}

type RenderOptions struct {
	ShowDocumentation bool
	ShowAnchors       bool
}

// Render returns the text lines of f in order.
func (f CodeFile) Render(opts RenderOptions) []string {
	out := make([]string, 0, len(f.Lines))
	for _, line := range f.Lines {
		if line.IsDocumentation && !opts.ShowDocumentation {
			continue
		}
		text := line.Text
		if opts.ShowAnchors && line.ElementID != "" {
			text = text + "  #" + line.ElementID
		}
		out = append(out, text)
	}
	return out
}

// Text renders f for reading, documentation included.
func (f CodeFile) Text() string {
	return strings.Join(f.Render(RenderOptions{ShowDocumentation: true}), "\n")
}

// Ref builds the artifact reference metadata for a freshly parsed file.
func (f CodeFile) Ref(reviewFileID string, hasOriginal bool) ArtifactRef {
	return ArtifactRef{
		ReviewFileID:  reviewFileID,
		Name:          f.Name,
		Language:      f.Language,
		PackageName:   f.PackageName,
		VersionString: f.VersionString,
		HasOriginal:   hasOriginal,
		ContentHash:   Fingerprint(f),
	}
}
