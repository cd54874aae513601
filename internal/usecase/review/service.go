package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"apiview/internal/bootstrap/logging"
	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

// Options tune the read-modify-write retry on storage conflicts.
type Options struct {
	MaxConflictRetries int
	ConflictBackoff    time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxConflictRetries: 3,
		ConflictBackoff:    25 * time.Millisecond,
	}
}

type Service struct {
	repo      ports.ReviewRepository
	blobs     ports.BlobStore
	codeFiles ports.CodeFileStore
	parsers   ports.ParserRegistry
	authz     ports.Authorizer
	notifier  ports.Notifier
	uow       ports.UnitOfWork
	cache     ports.Cache
	opts      Options

	now   func() time.Time
	newID func() string
}

// NewService wires review usecases. Notifier and cache are optional.
func NewService(
	repo ports.ReviewRepository,
	blobs ports.BlobStore,
	codeFiles ports.CodeFileStore,
	parsers ports.ParserRegistry,
	authz ports.Authorizer,
	notifier ports.Notifier,
	uow ports.UnitOfWork,
	cache ports.Cache,
	opts Options,
) *Service {
	if opts.MaxConflictRetries < 0 {
		opts.MaxConflictRetries = 0
	}
	if opts.ConflictBackoff <= 0 {
		opts.ConflictBackoff = DefaultOptions().ConflictBackoff
	}
	return &Service{
		repo:      repo,
		blobs:     blobs,
		codeFiles: codeFiles,
		parsers:   parsers,
		authz:     authz,
		notifier:  notifier,
		uow:       uow,
		cache:     cache,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

type CreateReviewInput struct {
	Actor       string
	Name        string
	Label       string
	FileName    string
	Content     []byte
	RunAnalysis bool
}

type AddRevisionInput struct {
	Actor    string
	ReviewID string
	FileName string
	Label    string
	Content  []byte
}

type DeleteRevisionInput struct {
	Actor      string
	ReviewID   string
	RevisionID string
}

type UpdateRevisionLabelInput struct {
	Actor      string
	ReviewID   string
	RevisionID string
	Label      string
}

type ToggleClosedInput struct {
	Actor    string
	ReviewID string
}

type ToggleApprovalInput struct {
	Actor      string
	ReviewID   string
	RevisionID string
}

type RefreshInput struct {
	Actor    string
	ReviewID string
}

type RefreshStaleInput struct {
	Actor    string
	Language string
}

type RefreshStaleResult struct {
	Refreshed []string
	Skipped   int
}

type DeleteReviewInput struct {
	Actor    string
	ReviewID string
}

type IngestInput struct {
	Actor       string
	FileName    string
	Label       string
	Content     []byte
	RunAnalysis bool
}

type IngestResult struct {
	Review             domainreview.Review
	CreatedNewRevision bool
	CreatedReview      bool
	// PropagatedFrom is the manual revision whose approvers were copied.
	PropagatedFrom string
}

type ListReviewsInput struct {
	IncludeClosed bool
	Automatic     *bool
	Language      string
	PackageName   string
}

type RevisionFileText struct {
	File  domainreview.ArtifactRef
	Lines []string
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	switch {
	case s.repo == nil:
		return errors.New("review repository is required")
	case s.blobs == nil:
		return errors.New("blob store is required")
	case s.codeFiles == nil:
		return errors.New("code file store is required")
	case s.parsers == nil:
		return errors.New("parser registry is required")
	case s.authz == nil:
		return errors.New("authorizer is required")
	case s.uow == nil:
		return errors.New("review unit of work is required")
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, actor string, target domainreview.Owned, capability domainreview.Capability) error {
	ok, err := s.authz.Authorize(ctx, actor, target, capability)
	if err != nil {
		return errs.Wrap(err, "authorize")
	}
	if !ok {
		return fmt.Errorf("%w: %s lacks %s", domainreview.ErrUnauthorized, actor, capability)
	}
	return nil
}

// authorizeReviewChange applies the capability that guards changes to the
// review as a whole: automatic reviews belong to the pipeline.
func (s *Service) authorizeReviewChange(ctx context.Context, actor string, review domainreview.Review) error {
	capability := domainreview.CapabilityReviewOwner
	if review.IsAutomatic {
		capability = domainreview.CapabilityAutomaticReviewModifier
	}
	return s.authorize(ctx, actor, review, capability)
}

func (s *Service) notifyNewRevisionBestEffort(ctx context.Context, review domainreview.Review, revision domainreview.Revision, author string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyNewRevision(ctx, review, revision, author); err != nil {
		logCtx := logging.WithReview(logging.WithAttrs(ctx, slog.String("component", "usecase.review")), review.ReviewID, revision.RevisionID)
		logging.Warn(logCtx, "notify new revision failed", slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Service) subscribeBestEffort(ctx context.Context, review domainreview.Review, principal string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Subscribe(ctx, review, principal); err != nil {
		logCtx := logging.WithReview(logging.WithAttrs(ctx, slog.String("component", "usecase.review")), review.ReviewID, "")
		logging.Warn(logCtx, "subscribe to review failed", slog.String("principal", principal), slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}
