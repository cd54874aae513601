package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/infrastructure/artifact"
	"apiview/internal/infrastructure/authz"
	"apiview/internal/infrastructure/objectstore"
	"apiview/internal/infrastructure/parser"
	"apiview/internal/infrastructure/persistence/gormstore/model"
	"apiview/internal/infrastructure/persistence/gormstore/repository"
	"apiview/internal/infrastructure/persistence/gormstore/uow"
	"apiview/internal/ports"
)

const pipeline = "pipeline"

type testCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newTestCache() *testCache {
	return &testCache{data: make(map[string]string)}
}

func (c *testCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *testCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *testCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type testEnv struct {
	svc     *Service
	repo    ports.ReviewRepository
	objects ports.ObjectStore
	cache   *testCache
	db      *gorm.DB
}

type envOption func(*envConfig)

type envConfig struct {
	authorizer ports.Authorizer
	notifier   ports.Notifier
	wrapRepo   func(ports.ReviewRepository) ports.ReviewRepository
	objects    ports.ObjectStore
}

func withAuthorizer(a ports.Authorizer) envOption {
	return func(c *envConfig) { c.authorizer = a }
}

func withNotifier(n ports.Notifier) envOption {
	return func(c *envConfig) { c.notifier = n }
}

func withObjectStore(objects ports.ObjectStore) envOption {
	return func(c *envConfig) { c.objects = objects }
}

func withRepoWrapper(wrap func(ports.ReviewRepository) ports.ReviewRepository) envOption {
	return func(c *envConfig) { c.wrapRepo = wrap }
}

func setupService(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "apiview.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	cfg := envConfig{
		authorizer: authz.NewPolicyAuthorizer(authz.Policy{AutomaticModifiers: []string{pipeline}}),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var repo ports.ReviewRepository = repository.NewReviewRepository(db)
	if cfg.wrapRepo != nil {
		repo = cfg.wrapRepo(repo)
	}

	var objects ports.ObjectStore = objectstore.NewDatabaseStore(db)
	if cfg.objects != nil {
		objects = cfg.objects
	}
	codec, err := artifact.NewCodec("zstd")
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	codeFiles, err := artifact.NewCodeFileStore(objects, codec, 16)
	if err != nil {
		t.Fatalf("NewCodeFileStore() error = %v", err)
	}
	registry, err := parser.NewDefaultRegistry(nil)
	if err != nil {
		t.Fatalf("NewDefaultRegistry() error = %v", err)
	}

	cache := newTestCache()
	svc := NewService(
		repo,
		artifact.NewBlobStore(objects),
		codeFiles,
		registry,
		cfg.authorizer,
		cfg.notifier,
		uow.NewUnitOfWork(db),
		cache,
		Options{MaxConflictRetries: 3, ConflictBackoff: time.Millisecond},
	)
	svc.now = steppingClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	return &testEnv{svc: svc, repo: repo, objects: objects, cache: cache, db: db}
}

// steppingClock returns a clock that advances one second per call so
// creation order is visible in timestamps.
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Second)
		return now
	}
}

func descriptor(language string, pkg string, version string, members ...string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "language: %s\npackage: %s\nversion: %q\n", language, pkg, version)
	b.WriteString("types:\n  - name: Widget\n    kind: class\n    doc: A widget.\n")
	if len(members) > 0 {
		b.WriteString("    members:\n")
		for _, m := range members {
			fmt.Fprintf(&b, "      - signature: %q\n", m)
		}
	}
	return []byte(b.String())
}

func createManual(t *testing.T, env *testEnv, actor string, content []byte) domainreview.Review {
	t.Helper()
	review, err := env.svc.CreateReview(context.Background(), CreateReviewInput{
		Actor:    actor,
		Label:    "initial",
		FileName: "foo-1.0.yaml",
		Content:  content,
	})
	if err != nil {
		t.Fatalf("CreateReview() error = %v", err)
	}
	return review
}

func lastRevision(t *testing.T, review domainreview.Review) domainreview.Revision {
	t.Helper()
	last, ok := review.LastRevision()
	if !ok {
		t.Fatalf("review %s has no revisions", review.ReviewID)
	}
	return last
}

func TestCreateReviewStoresRevisionOriginalAndCodeFile(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	content := descriptor("Java", "foo", "1.0", "public void spin()")
	review := createManual(t, env, "alice", content)

	if review.IsAutomatic || review.IsClosed {
		t.Fatalf("review flags = automatic %v closed %v", review.IsAutomatic, review.IsClosed)
	}
	if review.Name != "foo-1.0.yaml" || review.Author != "alice" {
		t.Fatalf("review = %+v", review)
	}
	if len(review.Revisions) != 1 {
		t.Fatalf("len(Revisions) = %d, want 1", len(review.Revisions))
	}
	revision := review.Revisions[0]
	if revision.Label != "initial" || len(revision.Approvers) != 0 {
		t.Fatalf("revision = %+v", revision)
	}
	if len(revision.Files) != 1 {
		t.Fatalf("len(Files) = %d, want 1", len(revision.Files))
	}
	file := revision.Files[0]
	if !file.HasOriginal || file.Language != "Java" || file.PackageName != "foo" || file.VersionString != "yaml-descriptor/2" {
		t.Fatalf("file = %+v", file)
	}
	if file.ContentHash == "" {
		t.Fatalf("ContentHash is empty")
	}

	original, err := env.svc.blobs.Get(ctx, file.ReviewFileID)
	if err != nil {
		t.Fatalf("blobs.Get() error = %v", err)
	}
	if string(original) != string(content) {
		t.Fatalf("original = %q", original)
	}

	texts, err := env.svc.GetRevisionText(ctx, review.ReviewID, "")
	if err != nil {
		t.Fatalf("GetRevisionText() error = %v", err)
	}
	if len(texts) != 1 || !strings.Contains(strings.Join(texts[0].Lines, "\n"), "public void spin()") {
		t.Fatalf("GetRevisionText() = %+v", texts)
	}
}

func TestCreateReviewRejectsUnsupportedFile(t *testing.T) {
	env := setupService(t)

	_, err := env.svc.CreateReview(context.Background(), CreateReviewInput{
		Actor:    "alice",
		FileName: "foo-1.0.jar",
		Content:  []byte("PK\x03\x04"),
	})
	if !errors.Is(err, domainreview.ErrParseUnsupported) {
		t.Fatalf("CreateReview() error = %v, want ErrParseUnsupported", err)
	}

	reviews, err := env.svc.ListReviews(context.Background(), ListReviewsInput{IncludeClosed: true})
	if err != nil {
		t.Fatalf("ListReviews() error = %v", err)
	}
	if len(reviews) != 0 {
		t.Fatalf("ListReviews() = %d reviews, want 0", len(reviews))
	}
	if env.objectCount(t) != 0 {
		t.Fatalf("objects stored after failed create")
	}
}

func TestCreateReviewValidatesInput(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	testCases := []struct {
		name  string
		input CreateReviewInput
		want  error
	}{
		{name: "actor", input: CreateReviewInput{FileName: "a.yaml", Content: []byte("x")}, want: domainreview.ErrActorRequired},
		{name: "file name", input: CreateReviewInput{Actor: "alice", Content: []byte("x")}, want: domainreview.ErrFileNameRequired},
		{name: "content", input: CreateReviewInput{Actor: "alice", FileName: "a.yaml"}, want: domainreview.ErrEmptyUpload},
		{name: "malformed", input: CreateReviewInput{Actor: "alice", FileName: "a.yaml", Content: []byte("types: [")}, want: domainreview.ErrMalformedUpload},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateReview(ctx, tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("CreateReview() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestAddRevisionAppendsForOwnerOnly(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	review := createManual(t, env, "alice", descriptor("Java", "foo", "1.0", "public void spin()"))

	_, err := env.svc.AddRevision(ctx, AddRevisionInput{
		Actor:    "mallory",
		ReviewID: review.ReviewID,
		FileName: "foo-1.1.yaml",
		Content:  descriptor("Java", "foo", "1.1", "public void spin()", "public int size()"),
	})
	if !errors.Is(err, domainreview.ErrUnauthorized) {
		t.Fatalf("AddRevision() error = %v, want ErrUnauthorized", err)
	}

	updated, err := env.svc.AddRevision(ctx, AddRevisionInput{
		Actor:    "alice",
		ReviewID: review.ReviewID,
		FileName: "foo-1.1.yaml",
		Label:    "second",
		Content:  descriptor("Java", "foo", "1.1", "public void spin()", "public int size()"),
	})
	if err != nil {
		t.Fatalf("AddRevision() error = %v", err)
	}
	if len(updated.Revisions) != 2 {
		t.Fatalf("len(Revisions) = %d, want 2", len(updated.Revisions))
	}
	if got := lastRevision(t, updated); got.Label != "second" || got.Author != "alice" {
		t.Fatalf("last revision = %+v", got)
	}

	_, err = env.svc.AddRevision(ctx, AddRevisionInput{
		Actor:    "alice",
		ReviewID: "missing",
		FileName: "foo.yaml",
		Content:  descriptor("Java", "foo", "1.1"),
	})
	if !errors.Is(err, domainreview.ErrNotFound) {
		t.Fatalf("AddRevision() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRevisionKeepsLastRevision(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	review := createManual(t, env, "alice", descriptor("Java", "foo", "1.0", "public void spin()"))
	only := review.Revisions[0]

	if err := env.svc.DeleteRevision(ctx, DeleteRevisionInput{Actor: "alice", ReviewID: review.ReviewID, RevisionID: only.RevisionID}); err != nil {
		t.Fatalf("DeleteRevision() error = %v", err)
	}
	stored, err := env.svc.GetReview(ctx, review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if len(stored.Revisions) != 1 {
		t.Fatalf("len(Revisions) = %d, want 1", len(stored.Revisions))
	}

	updated, err := env.svc.AddRevision(ctx, AddRevisionInput{
		Actor:    "alice",
		ReviewID: review.ReviewID,
		FileName: "foo-1.1.yaml",
		Content:  descriptor("Java", "foo", "1.1", "public int size()"),
	})
	if err != nil {
		t.Fatalf("AddRevision() error = %v", err)
	}
	if err := env.svc.DeleteRevision(ctx, DeleteRevisionInput{Actor: "alice", ReviewID: review.ReviewID, RevisionID: only.RevisionID}); err != nil {
		t.Fatalf("DeleteRevision() error = %v", err)
	}

	stored, err = env.svc.GetReview(ctx, review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if len(stored.Revisions) != 1 || stored.Revisions[0].RevisionID != lastRevision(t, updated).RevisionID {
		t.Fatalf("Revisions = %+v", stored.Revisions)
	}
	if _, err := env.svc.blobs.Get(ctx, only.Files[0].ReviewFileID); !errors.Is(err, domainreview.ErrNotFound) {
		t.Fatalf("original of deleted revision error = %v, want ErrNotFound", err)
	}

	err = env.svc.DeleteRevision(ctx, DeleteRevisionInput{Actor: "alice", ReviewID: review.ReviewID, RevisionID: "nope"})
	if !errors.Is(err, domainreview.ErrRevisionNotFound) {
		t.Fatalf("DeleteRevision() error = %v, want ErrRevisionNotFound", err)
	}
}

func TestUpdateRevisionLabelRequiresRevisionOwner(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	review := createManual(t, env, "alice", descriptor("Java", "foo", "1.0"))
	revisionID := review.Revisions[0].RevisionID

	err := env.svc.UpdateRevisionLabel(ctx, UpdateRevisionLabelInput{Actor: "bob", ReviewID: review.ReviewID, RevisionID: revisionID, Label: "x"})
	if !errors.Is(err, domainreview.ErrUnauthorized) {
		t.Fatalf("UpdateRevisionLabel() error = %v, want ErrUnauthorized", err)
	}
	if err := env.svc.UpdateRevisionLabel(ctx, UpdateRevisionLabelInput{Actor: "alice", ReviewID: review.ReviewID, RevisionID: revisionID, Label: " release candidate "}); err != nil {
		t.Fatalf("UpdateRevisionLabel() error = %v", err)
	}

	stored, err := env.svc.GetReview(ctx, review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if stored.Revisions[0].Label != "release candidate" {
		t.Fatalf("Label = %q", stored.Revisions[0].Label)
	}
}

func TestToggleClosedFlipsBothWays(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	review := createManual(t, env, "alice", descriptor("Java", "foo", "1.0"))

	closed, err := env.svc.ToggleClosed(ctx, ToggleClosedInput{Actor: "alice", ReviewID: review.ReviewID})
	if err != nil || !closed {
		t.Fatalf("ToggleClosed() = %v, %v; want true", closed, err)
	}
	open, err := env.svc.ListReviews(ctx, ListReviewsInput{})
	if err != nil {
		t.Fatalf("ListReviews() error = %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("open reviews = %d, want 0", len(open))
	}

	closed, err = env.svc.ToggleClosed(ctx, ToggleClosedInput{Actor: "alice", ReviewID: review.ReviewID})
	if err != nil || closed {
		t.Fatalf("ToggleClosed() = %v, %v; want false", closed, err)
	}

	if _, err := env.svc.ToggleClosed(ctx, ToggleClosedInput{Actor: "bob", ReviewID: review.ReviewID}); !errors.Is(err, domainreview.ErrUnauthorized) {
		t.Fatalf("ToggleClosed() error = %v, want ErrUnauthorized", err)
	}
}

func TestToggleApprovalIsInvolution(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	review := createManual(t, env, "alice", descriptor("Java", "foo", "1.0"))
	input := ToggleApprovalInput{Actor: "bob", ReviewID: review.ReviewID, RevisionID: review.Revisions[0].RevisionID}

	approved, err := env.svc.ToggleApproval(ctx, input)
	if err != nil || !approved {
		t.Fatalf("ToggleApproval() = %v, %v; want true", approved, err)
	}
	stored, err := env.svc.GetReview(ctx, review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if !stored.Revisions[0].HasApprover("bob") {
		t.Fatalf("Approvers = %v", stored.Revisions[0].Approvers)
	}

	approved, err = env.svc.ToggleApproval(ctx, input)
	if err != nil || approved {
		t.Fatalf("ToggleApproval() = %v, %v; want false", approved, err)
	}
	stored, err = env.svc.GetReview(ctx, review.ReviewID)
	if err != nil {
		t.Fatalf("GetReview() error = %v", err)
	}
	if len(stored.Revisions[0].Approvers) != 0 {
		t.Fatalf("Approvers = %v, want empty", stored.Revisions[0].Approvers)
	}
}

func TestDeleteReviewRemovesDocumentAndContent(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	review := createManual(t, env, "alice", descriptor("Java", "foo", "1.0"))

	if err := env.svc.DeleteReview(ctx, DeleteReviewInput{Actor: "bob", ReviewID: review.ReviewID}); !errors.Is(err, domainreview.ErrUnauthorized) {
		t.Fatalf("DeleteReview() error = %v, want ErrUnauthorized", err)
	}
	if err := env.svc.DeleteReview(ctx, DeleteReviewInput{Actor: "alice", ReviewID: review.ReviewID}); err != nil {
		t.Fatalf("DeleteReview() error = %v", err)
	}
	if _, err := env.svc.GetReview(ctx, review.ReviewID); !errors.Is(err, domainreview.ErrNotFound) {
		t.Fatalf("GetReview() error = %v, want ErrNotFound", err)
	}
	if env.objectCount(t) != 0 {
		t.Fatalf("objects left after delete = %d", env.objectCount(t))
	}
}

func (e *testEnv) objectCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(&model.Blob{}).Count(&count).Error; err != nil {
		t.Fatalf("count blobs: %v", err)
	}
	return count
}
