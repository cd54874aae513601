package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/usecase/review"
)

func parseReviewKind(kind string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "all":
		return nil, nil
	case "manual":
		v := false
		return &v, nil
	case "automatic", "auto":
		v := true
		return &v, nil
	default:
		return nil, fmt.Errorf("invalid --kind %q (manual|automatic)", kind)
	}
}

func reviewStatus(r domainreview.Review) string {
	status := "open"
	if r.IsClosed {
		status = "closed"
	}
	if r.IsAutomatic {
		status += ",automatic"
	}
	return status
}

func writeReviewTable(out io.Writer, reviews []domainreview.Review) error {
	if len(reviews) == 0 {
		_, err := fmt.Fprintln(out, "no reviews")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "REVIEW\tSTATUS\tLANGUAGE\tPACKAGE\tREVISIONS\tAPPROVED\tNAME"); err != nil {
		return err
	}
	for _, r := range reviews {
		approved := "no"
		if last, ok := r.LastRevision(); ok && last.IsApproved() {
			approved = strings.Join(last.Approvers, ",")
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ReviewID,
			reviewStatus(r),
			valueOrDash(r.Language()),
			valueOrDash(r.PackageName()),
			len(r.Revisions),
			approved,
			r.Name,
		); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeReviewDetail(out io.Writer, r domainreview.Review, texts []review.RevisionFileText) error {
	if _, err := fmt.Fprintf(out, "%s [%s] name=%s author=%s created=%s\n",
		r.ReviewID, reviewStatus(r), r.Name, r.Author, r.CreationDate.Format(time.RFC3339)); err != nil {
		return err
	}
	for i, rev := range r.Revisions {
		approvers := "-"
		if rev.IsApproved() {
			approvers = strings.Join(rev.Approvers, ",")
		}
		if _, err := fmt.Fprintf(out, "  #%d %s author=%s label=%s approvers=%s created=%s\n",
			i+1, rev.RevisionID, rev.Author, valueOrDash(rev.Label), approvers, rev.CreationDate.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	for _, text := range texts {
		if _, err := fmt.Fprintf(out, "\n== %s (%s %s, %s)\n", text.File.Name, text.File.Language, text.File.PackageName, text.File.VersionString); err != nil {
			return err
		}
		for _, line := range text.Lines {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
