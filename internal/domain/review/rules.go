package review

import "strings"

// CanDeleteRevision enforces the last-revision floor: a review always keeps
// at least one revision.
func CanDeleteRevision(r Review) bool {
	return len(r.Revisions) > 1
}

// ToggleApprover removes principal from approvers if present, otherwise adds it.
// It returns the new set and whether principal is now an approver.
func ToggleApprover(approvers []string, principal string) ([]string, bool) {
	out := make([]string, 0, len(approvers)+1)
	removed := false
	for _, a := range approvers {
		if a == principal {
			removed = true
			continue
		}
		out = append(out, a)
	}
	if removed {
		return out, false
	}
	return append(out, principal), true
}

// MergeApprovers adds every entry of extra not already in approvers.
func MergeApprovers(approvers []string, extra []string) []string {
	seen := make(map[string]struct{}, len(approvers)+len(extra))
	out := make([]string, 0, len(approvers)+len(extra))
	for _, list := range [][]string{approvers, extra} {
		for _, raw := range list {
			a := strings.TrimSpace(raw)
			if a == "" {
				continue
			}
			if _, ok := seen[a]; ok {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// NormalizeLegacy folds top-level files of old documents into one synthetic
// revision. The revision reuses the review ID, which is where parsed content
// of those documents was keyed. Applying it twice changes nothing.
func NormalizeLegacy(r Review) Review {
	if len(r.Revisions) > 0 || len(r.LegacyFiles) == 0 {
		r.LegacyFiles = nil
		return r
	}
	r.Revisions = []Revision{{
		RevisionID:   r.ReviewID,
		Author:       r.Author,
		CreationDate: r.CreationDate,
		Files:        append([]ArtifactRef(nil), r.LegacyFiles...),
	}}
	r.LegacyFiles = nil
	return r
}

// NeedsRefresh reports whether any original-backed file of r was produced
// by a parser version canUpdate says is stale.
func NeedsRefresh(r Review, canUpdate func(ArtifactRef) bool) bool {
	for _, rev := range r.Revisions {
		for _, f := range rev.Files {
			if f.HasOriginal && canUpdate(f) {
				return true
			}
		}
	}
	return false
}
