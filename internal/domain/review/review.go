package review

import "time"

// Review is a container of revisions about one logical package.
// Revisions are kept in insertion order; the last one is the current surface.
type Review struct {
	ReviewID     string
	Author       string
	Name         string
	CreationDate time.Time
	IsClosed     bool
	IsAutomatic  bool
	RunAnalysis  bool
	Revisions    []Revision

	// ETag is the storage version the review was read at. Zero means never stored.
	ETag int64

	// LegacyFiles holds files of documents written before revisions existed.
	// NormalizeLegacy folds them into a revision.
	LegacyFiles []ArtifactRef
}

// Revision is one uploaded snapshot of the API surface.
type Revision struct {
	RevisionID   string
	Author       string
	Label        string
	CreationDate time.Time
	Files        []ArtifactRef
	Approvers    []string
}

// ArtifactRef describes one parsed file of a revision.
type ArtifactRef struct {
	ReviewFileID  string
	Name          string
	Language      string
	PackageName   string
	VersionString string
	HasOriginal   bool
	ContentHash   string
}

// LastRevision returns the current revision of r.
func (r Review) LastRevision() (Revision, bool) {
	if len(r.Revisions) == 0 {
		return Revision{}, false
	}
	return r.Revisions[len(r.Revisions)-1], true
}

// RevisionIndex returns the position of revisionID in r.Revisions, or -1.
func (r Review) RevisionIndex(revisionID string) int {
	for i, rev := range r.Revisions {
		if rev.RevisionID == revisionID {
			return i
		}
	}
	return -1
}

// Language and PackageName of the review as seen through its current revision.
func (r Review) Language() string {
	if ref, ok := r.primaryFile(); ok {
		return ref.Language
	}
	return ""
}

func (r Review) PackageName() string {
	if ref, ok := r.primaryFile(); ok {
		return ref.PackageName
	}
	return ""
}

func (r Review) primaryFile() (ArtifactRef, bool) {
	last, ok := r.LastRevision()
	if !ok || len(last.Files) == 0 {
		return ArtifactRef{}, false
	}
	return last.Files[0], true
}

// Clone returns a deep copy so callers can mutate without touching the original.
func (r Review) Clone() Review {
	out := r
	out.Revisions = make([]Revision, len(r.Revisions))
	for i, rev := range r.Revisions {
		out.Revisions[i] = rev.Clone()
	}
	if r.LegacyFiles != nil {
		out.LegacyFiles = append([]ArtifactRef(nil), r.LegacyFiles...)
	}
	return out
}

func (r Revision) Clone() Revision {
	out := r
	out.Files = append([]ArtifactRef(nil), r.Files...)
	out.Approvers = append([]string(nil), r.Approvers...)
	return out
}

// IsApproved reports whether the revision carries at least one approver.
func (r Revision) IsApproved() bool {
	return len(r.Approvers) > 0
}

// HasApprover reports whether principal approved the revision.
func (r Revision) HasApprover(principal string) bool {
	for _, a := range r.Approvers {
		if a == principal {
			return true
		}
	}
	return false
}
