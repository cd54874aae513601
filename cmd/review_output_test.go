package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/usecase/review"
)

func TestParseReviewKind(t *testing.T) {
	got, err := parseReviewKind("manual")
	if err != nil || got == nil || *got {
		t.Fatalf("parseReviewKind(manual) = %v, %v", got, err)
	}
	got, err = parseReviewKind("automatic")
	if err != nil || got == nil || !*got {
		t.Fatalf("parseReviewKind(automatic) = %v, %v", got, err)
	}
	got, err = parseReviewKind("")
	if err != nil || got != nil {
		t.Fatalf("parseReviewKind(\"\") = %v, %v", got, err)
	}
	if _, err := parseReviewKind("weird"); err == nil {
		t.Fatalf("parseReviewKind(weird) error = nil")
	}
}

func TestWriteReviewTable(t *testing.T) {
	var buf bytes.Buffer
	reviews := []domainreview.Review{{
		ReviewID:    "r1",
		Name:        "foo",
		IsAutomatic: true,
		Revisions: []domainreview.Revision{{
			RevisionID: "v1",
			Files:      []domainreview.ArtifactRef{{Language: "Java", PackageName: "foo"}},
			Approvers:  []string{"bob"},
		}},
	}}
	if err := writeReviewTable(&buf, reviews); err != nil {
		t.Fatalf("writeReviewTable() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"REVIEW", "r1", "open,automatic", "Java", "foo", "bob"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := writeReviewTable(&buf, nil); err != nil {
		t.Fatalf("writeReviewTable() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "no reviews" {
		t.Fatalf("empty table = %q", buf.String())
	}
}

func TestWriteReviewDetail(t *testing.T) {
	var buf bytes.Buffer
	r := domainreview.Review{
		ReviewID:     "r1",
		Name:         "foo.yaml",
		Author:       "alice",
		CreationDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Revisions:    []domainreview.Revision{{RevisionID: "v1", Author: "alice", Label: "initial"}},
	}
	texts := []review.RevisionFileText{{
		File:  domainreview.ArtifactRef{Name: "foo.yaml", Language: "Java", PackageName: "foo", VersionString: "yaml-descriptor/2"},
		Lines: []string{"package foo {", "}"},
	}}
	if err := writeReviewDetail(&buf, r, texts); err != nil {
		t.Fatalf("writeReviewDetail() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"r1 [open]", "#1 v1", "label=initial", "== foo.yaml", "package foo {"} {
		if !strings.Contains(out, want) {
			t.Fatalf("detail missing %q:\n%s", want, out)
		}
	}
}

func TestExitCode(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{err: nil, want: 0},
		{err: errs.Wrap(domainreview.ErrNotFound, "get review"), want: 3},
		{err: errs.Wrap(domainreview.ErrUnauthorized, "toggle"), want: 4},
		{err: domainreview.ErrParseUnsupported, want: 5},
		{err: errs.Wrap(domainreview.ErrStorageConflict, "save review"), want: 6},
		{err: errs.Tag(errors.New("dial tcp"), domainreview.ErrStorageUnavailable), want: 7},
		{err: domainreview.ErrMalformedUpload, want: 8},
		{err: domainreview.ErrActorRequired, want: 2},
		{err: errors.New("boom"), want: 1},
	}
	for _, tc := range testCases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
