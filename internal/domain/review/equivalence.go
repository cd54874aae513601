package review

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

var comparableRender = RenderOptions{}

// AreEquivalent reports whether a and b expose the same API surface: the same
// rendered lines in the same order, with documentation and anchors left out.
func AreEquivalent(a, b CodeFile) bool {
	left := a.Render(comparableRender)
	right := b.Render(comparableRender)
	if len(left) != len(right) {
		return false
	}
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

// Fingerprint hashes the comparable rendering of f. Different fingerprints
// imply non-equivalent files; equal fingerprints still need AreEquivalent.
func Fingerprint(f CodeFile) string {
	h := blake3.New()
	for _, line := range f.Render(comparableRender) {
		_, _ = h.WriteString(line)
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// MayBeEquivalent is the cheap pre-check on stored fingerprints. Missing
// fingerprints cannot rule anything out.
func MayBeEquivalent(a, b ArtifactRef) bool {
	if a.ContentHash == "" || b.ContentHash == "" {
		return true
	}
	return a.ContentHash == b.ContentHash
}
