package review

import (
	"context"
	"errors"
	"testing"

	domainreview "apiview/internal/domain/review"
)

func ingest(t *testing.T, env *testEnv, fileName string, content []byte) IngestResult {
	t.Helper()
	result, err := env.svc.IngestAutomatic(context.Background(), IngestInput{
		Actor:    pipeline,
		FileName: fileName,
		Content:  content,
	})
	if err != nil {
		t.Fatalf("IngestAutomatic() error = %v", err)
	}
	return result
}

func approve(t *testing.T, env *testEnv, actor string, review domainreview.Review) {
	t.Helper()
	approved, err := env.svc.ToggleApproval(context.Background(), ToggleApprovalInput{
		Actor:      actor,
		ReviewID:   review.ReviewID,
		RevisionID: lastRevision(t, review).RevisionID,
	})
	if err != nil {
		t.Fatalf("ToggleApproval() error = %v", err)
	}
	if !approved {
		t.Fatalf("ToggleApproval() = false, want true")
	}
}

func TestIngestAutomaticIsIdempotent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	content := descriptor("Java", "foo", "1.0", "public void spin()")
	first := ingest(t, env, "foo-1.0.yaml", content)
	if !first.CreatedReview || !first.CreatedNewRevision {
		t.Fatalf("first ingest = %+v", first)
	}
	if !first.Review.IsAutomatic || first.Review.Name != "foo" {
		t.Fatalf("automatic review = %+v", first.Review)
	}

	second := ingest(t, env, "foo-1.0.yaml", content)
	if second.CreatedReview || second.CreatedNewRevision {
		t.Fatalf("second ingest = %+v", second)
	}
	if second.Review.ReviewID != first.Review.ReviewID {
		t.Fatalf("second ingest review = %s, want %s", second.Review.ReviewID, first.Review.ReviewID)
	}

	// A new release with only documentation changes keeps the same surface.
	docsOnly := ingest(t, env, "foo-1.0.1.yaml", descriptor("Java", "foo", "1.0.1", "public void spin()"))
	if docsOnly.CreatedNewRevision {
		t.Fatalf("documentation-only ingest created a revision")
	}

	stored, err := env.svc.GetReview(ctx, first.Review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if len(stored.Revisions) != 1 {
		t.Fatalf("len(Revisions) = %d, want 1", len(stored.Revisions))
	}

	changed := ingest(t, env, "foo-1.1.yaml", descriptor("Java", "foo", "1.1", "public void spin()", "public int size()"))
	if !changed.CreatedNewRevision || changed.CreatedReview {
		t.Fatalf("changed ingest = %+v", changed)
	}
	if len(changed.Review.Revisions) != 2 {
		t.Fatalf("len(Revisions) = %d, want 2", len(changed.Review.Revisions))
	}

	status, ok, err := env.svc.LastIngest(ctx, "java", "foo")
	if err != nil {
		t.Fatalf("LastIngest() error = %v", err)
	}
	if !ok {
		t.Fatalf("LastIngest() found = false")
	}
	if !status.CreatedNewRevision || status.RevisionID != lastRevision(t, changed.Review).RevisionID {
		t.Fatalf("LastIngest() = %+v", status)
	}
}

func TestIngestAutomaticRequiresAutomaticModifier(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.IngestAutomatic(ctx, IngestInput{
		Actor:    "alice",
		FileName: "foo.yaml",
		Content:  descriptor("Java", "foo", "1.0"),
	})
	if !errors.Is(err, domainreview.ErrUnauthorized) {
		t.Fatalf("IngestAutomatic() error = %v, want ErrUnauthorized", err)
	}

	reviews, err := env.svc.ListReviews(ctx, ListReviewsInput{IncludeClosed: true})
	if err != nil {
		t.Fatalf("ListReviews() error = %v", err)
	}
	if len(reviews) != 0 || env.objectCount(t) != 0 {
		t.Fatalf("storage changed after unauthorized ingest: reviews=%d objects=%d", len(reviews), env.objectCount(t))
	}
}

func TestIngestAutomaticKeepsPackagesApart(t *testing.T) {
	env := setupService(t)

	foo := ingest(t, env, "foo.yaml", descriptor("Java", "foo", "1.0", "public void spin()"))
	bar := ingest(t, env, "bar.yaml", descriptor("Java", "bar", "1.0", "public void spin()"))
	py := ingest(t, env, "foo-py.yaml", descriptor("Python", "foo", "1.0", "public void spin()"))

	if foo.Review.ReviewID == bar.Review.ReviewID || foo.Review.ReviewID == py.Review.ReviewID {
		t.Fatalf("packages share an automatic review")
	}
	if !bar.CreatedReview || !py.CreatedReview {
		t.Fatalf("expected new automatic reviews for bar and Python foo")
	}
}

func TestIngestAutomaticPropagatesApproval(t *testing.T) {
	env := setupService(t)

	manual := createManual(t, env, "alice", descriptor("Java", "foo", "1.0", "public void spin()"))
	approve(t, env, "alice", manual)

	result := ingest(t, env, "foo-1.0.yaml", descriptor("Java", "foo", "1.0", "public   void spin()"))
	if !result.CreatedNewRevision {
		t.Fatalf("ingest did not create a revision")
	}
	last := lastRevision(t, result.Review)
	if len(last.Approvers) != 1 || last.Approvers[0] != "alice" {
		t.Fatalf("Approvers = %v, want [alice]", last.Approvers)
	}
	if result.PropagatedFrom != manual.Revisions[0].RevisionID {
		t.Fatalf("PropagatedFrom = %q, want %q", result.PropagatedFrom, manual.Revisions[0].RevisionID)
	}

	stored, err := env.svc.GetReview(context.Background(), result.Review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if !lastRevision(t, stored).HasApprover("alice") {
		t.Fatalf("stored Approvers = %v", lastRevision(t, stored).Approvers)
	}
}

func TestIngestAutomaticDoesNotPropagateDifferentSurface(t *testing.T) {
	env := setupService(t)

	manual := createManual(t, env, "alice", descriptor("Java", "foo", "1.0", "public void spin()"))
	approve(t, env, "bob", manual)

	result := ingest(t, env, "foo-2.0.yaml", descriptor("Java", "foo", "2.0", "public void spin(int times)"))
	if got := lastRevision(t, result.Review).Approvers; len(got) != 0 {
		t.Fatalf("Approvers = %v, want empty", got)
	}
	if result.PropagatedFrom != "" {
		t.Fatalf("PropagatedFrom = %q, want empty", result.PropagatedFrom)
	}
}

func TestIngestAutomaticPropagationPrefersNewestApprovedRevision(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	content := descriptor("Java", "foo", "1.0", "public void spin()")

	older := createManual(t, env, "alice", content)
	approve(t, env, "carol", older)
	newer := createManual(t, env, "bob", content)
	approve(t, env, "dave", newer)

	// Closed manual reviews still count as approval sources.
	if _, err := env.svc.ToggleClosed(ctx, ToggleClosedInput{Actor: "bob", ReviewID: newer.ReviewID}); err != nil {
		t.Fatalf("ToggleClosed() error = %v", err)
	}

	result := ingest(t, env, "foo-1.0.yaml", content)
	last := lastRevision(t, result.Review)
	if len(last.Approvers) != 1 || last.Approvers[0] != "dave" {
		t.Fatalf("Approvers = %v, want [dave]", last.Approvers)
	}
	if result.PropagatedFrom != newer.Revisions[0].RevisionID {
		t.Fatalf("PropagatedFrom = %q, want %q", result.PropagatedFrom, newer.Revisions[0].RevisionID)
	}
}

func TestIngestAutomaticNoOpDoesNotRepropagate(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	content := descriptor("Java", "foo", "1.0", "public void spin()", "public int size()")

	manual := createManual(t, env, "alice", content)
	if len(manual.Revisions) != 1 || len(manual.Revisions[0].Approvers) != 0 {
		t.Fatalf("manual review = %+v", manual)
	}

	first := ingest(t, env, "foo-1.0.yaml", content)
	if !first.CreatedReview || len(first.Review.Revisions) != 1 {
		t.Fatalf("first ingest = %+v", first)
	}
	if got := lastRevision(t, first.Review).Approvers; len(got) != 0 {
		t.Fatalf("Approvers after first ingest = %v, want empty", got)
	}

	approve(t, env, "bob", manual)

	again := ingest(t, env, "foo-1.0.yaml", content)
	if again.CreatedNewRevision {
		t.Fatalf("re-ingest created a revision")
	}
	stored, err := env.svc.GetReview(ctx, first.Review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if len(stored.Revisions) != 1 {
		t.Fatalf("len(Revisions) = %d, want 1", len(stored.Revisions))
	}
	if got := lastRevision(t, stored).Approvers; len(got) != 0 {
		t.Fatalf("Approvers after no-op ingest = %v, want empty", got)
	}
}

func TestIngestAutomaticRefreshesStaleReviewBeforeComparing(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()
	content := descriptor("Java", "foo", "1.0", "public void spin()")

	first := ingest(t, env, "foo-1.0.yaml", content)

	stale, err := env.repo.GetReview(ctx, first.Review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	stale.Revisions[0].Files[0].VersionString = "yaml-descriptor/1"
	stale.Revisions[0].Files[0].ContentHash = ""
	if _, err := env.repo.UpsertReview(ctx, stale); err != nil {
		t.Fatalf("UpsertReview() error = %v", err)
	}

	again := ingest(t, env, "foo-1.0.yaml", content)
	if again.CreatedNewRevision {
		t.Fatalf("ingest after refresh created a revision")
	}

	stored, err := env.svc.GetReview(ctx, first.Review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	file := stored.Revisions[0].Files[0]
	if file.VersionString != "yaml-descriptor/2" || file.ContentHash == "" {
		t.Fatalf("refreshed file = %+v", file)
	}
	if stored.ETag <= stale.ETag {
		t.Fatalf("ETag = %d, want > %d", stored.ETag, stale.ETag)
	}
}

func TestIngestAutomaticMatchesLanguageCaseInsensitively(t *testing.T) {
	env := setupService(t)

	first := ingest(t, env, "foo-1.0.yaml", descriptor("java", "foo", "1.0", "public void spin()"))
	second := ingest(t, env, "foo-1.1.yaml", descriptor("Java", "foo", "1.1", "public void spin()", "public void stop()"))

	if second.CreatedReview || second.Review.ReviewID != first.Review.ReviewID {
		t.Fatalf("second ingest review = %s (created %v), want %s", second.Review.ReviewID, second.CreatedReview, first.Review.ReviewID)
	}
	if !second.CreatedNewRevision || len(second.Review.Revisions) != 2 {
		t.Fatalf("second ingest = %+v, want an appended revision", second)
	}
}
