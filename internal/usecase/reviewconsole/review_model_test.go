package reviewconsole

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/usecase/review"
)

func twoReviews() []domainreview.Review {
	return []domainreview.Review{
		{
			ReviewID: "r1",
			Name:     "azure-core",
			Revisions: []domainreview.Revision{
				{RevisionID: "r1-a", Author: "alice", Files: []domainreview.ArtifactRef{{Language: "Java", PackageName: "azure-core"}}},
				{RevisionID: "r1-b", Author: "alice", Approvers: []string{"bob"}, Files: []domainreview.ArtifactRef{{Language: "Java", PackageName: "azure-core"}}},
			},
		},
		{
			ReviewID:    "r2",
			Name:        "azure-storage",
			IsAutomatic: true,
			Revisions: []domainreview.Revision{
				{RevisionID: "r2-a", Author: "pipeline", Files: []domainreview.ArtifactRef{{Language: "Python", PackageName: "azure-storage"}}},
			},
		},
	}
}

func TestRevisionTextLoadedIgnoresStaleSelection(t *testing.T) {
	model := &reviewModel{
		ctx:           context.Background(),
		reviews:       twoReviews(),
		selectedIndex: 1,
	}

	nextModel, _ := model.Update(revisionTextLoadedMsg{
		reviewID:   "r1",
		revisionID: "r1-b",
		files:      []review.RevisionFileText{{Lines: []string{"class Stale"}}},
	})

	updated, ok := nextModel.(*reviewModel)
	if !ok {
		t.Fatalf("type assertion failed: %T", nextModel)
	}
	if updated.hasText {
		t.Fatalf("stale text should be ignored")
	}
}

func TestRevisionTextLoadedAppliesCurrentSelection(t *testing.T) {
	model := &reviewModel{
		ctx:           context.Background(),
		reviews:       twoReviews(),
		selectedIndex: 0,
		revisionIndex: 1,
	}

	nextModel, _ := model.Update(revisionTextLoadedMsg{
		reviewID:   "r1",
		revisionID: "r1-a",
		files:      []review.RevisionFileText{{Lines: []string{"class Client"}}},
	})

	updated := nextModel.(*reviewModel)
	if !updated.hasText {
		t.Fatalf("current text should be applied")
	}
	if updated.textRevisionID != "r1-a" {
		t.Fatalf("textRevisionID = %q, want r1-a", updated.textRevisionID)
	}
	if !strings.Contains(updated.View(), "class Client") {
		t.Fatalf("view missing revision text: %s", updated.View())
	}
}

func TestReviewsLoadedKeepsSelectionByID(t *testing.T) {
	model := &reviewModel{
		ctx:           context.Background(),
		reviews:       twoReviews(),
		selectedIndex: 1,
	}

	reordered := twoReviews()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	nextModel, _ := model.Update(reviewsLoadedMsg{items: reordered})

	updated := nextModel.(*reviewModel)
	selected, ok := updated.selectedReview()
	if !ok || selected.ReviewID != "r2" {
		t.Fatalf("selected = %+v, want r2", selected)
	}
}

func TestReviewsLoadedEmptyClearsSelection(t *testing.T) {
	model := &reviewModel{
		ctx:           context.Background(),
		reviews:       twoReviews(),
		selectedIndex: 1,
		revisionIndex: 1,
		hasText:       true,
	}

	nextModel, _ := model.Update(reviewsLoadedMsg{})
	updated := nextModel.(*reviewModel)
	if updated.selectedIndex != 0 || updated.revisionIndex != 0 || updated.hasText {
		t.Fatalf("model = %+v, want cleared selection", updated)
	}
	if updated.status != "no reviews" {
		t.Fatalf("status = %q, want no reviews", updated.status)
	}
}

func TestRevisionNavigationStaysInBounds(t *testing.T) {
	model := &reviewModel{
		ctx:           context.Background(),
		reviews:       twoReviews(),
		selectedIndex: 0,
	}

	model.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if model.revisionIndex != 1 {
		t.Fatalf("revisionIndex = %d, want 1", model.revisionIndex)
	}
	model.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if model.revisionIndex != 1 {
		t.Fatalf("revisionIndex = %d, want 1 at the oldest revision", model.revisionIndex)
	}
	revision, _ := model.selectedRevision()
	if revision.RevisionID != "r1-a" {
		t.Fatalf("selected revision = %q, want r1-a", revision.RevisionID)
	}

	model.Update(tea.KeyMsg{Type: tea.KeyDown})
	if model.selectedIndex != 1 || model.revisionIndex != 0 {
		t.Fatalf("selection = (%d,%d), want (1,0)", model.selectedIndex, model.revisionIndex)
	}
}

func TestApproveWithoutActorIsRejected(t *testing.T) {
	model := &reviewModel{
		ctx:     context.Background(),
		reviews: twoReviews(),
	}

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}})
	if cmd != nil {
		t.Fatalf("approve without actor should not run a command")
	}
	if model.status != "approve needs an actor" {
		t.Fatalf("status = %q", model.status)
	}
}

func TestActionDoneRecordsAuditLog(t *testing.T) {
	model := &reviewModel{
		ctx:   context.Background(),
		actor: "bob",
	}

	model.Update(actionDoneMsg{action: "approve", reviewID: "r1", revisionID: "r1-b", err: domainreview.ErrUnauthorized})
	if len(model.auditLogs) != 1 {
		t.Fatalf("len(auditLogs) = %d, want 1", len(model.auditLogs))
	}
	if !strings.Contains(model.auditLogs[0], "result=unauthorized:") {
		t.Fatalf("audit line = %q, want unauthorized outcome", model.auditLogs[0])
	}
	if !strings.HasPrefix(model.status, "approve failed") {
		t.Fatalf("status = %q", model.status)
	}
}

func TestViewRendersReviewsAndApproval(t *testing.T) {
	model := &reviewModel{
		ctx:     context.Background(),
		actor:   "bob",
		reviews: twoReviews(),
	}

	view := model.View()
	if !strings.Contains(view, "r1 [manual/open] Java azure-core revisions=2 approved") {
		t.Fatalf("view missing manual review line: %s", view)
	}
	if !strings.Contains(view, "r2 [auto/open] Python azure-storage revisions=1 -") {
		t.Fatalf("view missing automatic review line: %s", view)
	}
	if !strings.Contains(view, "approved by bob") {
		t.Fatalf("view missing approvers: %s", view)
	}
}

func TestClipText(t *testing.T) {
	files := []review.RevisionFileText{
		{File: domainreview.ArtifactRef{Name: "a.json"}, Lines: []string{"1", "2", "3"}},
		{File: domainreview.ArtifactRef{Name: "b.json"}, Lines: []string{"4"}},
	}

	got := clipText(files, 3)
	want := []string{"# a.json", "1", "2", "... 3 more lines"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("clipText() = %q, want %q", got, want)
	}

	single := clipText(files[:1], 10)
	if strings.Join(single, "|") != "1|2|3" {
		t.Fatalf("clipText(single) = %q", single)
	}
}
