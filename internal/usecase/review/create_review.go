package review

import (
	"context"
	"fmt"
	"strings"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
)

// CreateReview parses the upload and stores a new manual review with one
// revision. The author is subscribed to notifications once it is committed.
func (s *Service) CreateReview(ctx context.Context, input CreateReviewInput) (domainreview.Review, error) {
	if err := s.ready(ctx); err != nil {
		return domainreview.Review{}, err
	}

	actor, err := normalizeActor(input.Actor)
	if err != nil {
		return domainreview.Review{}, err
	}
	fileName, err := normalizeUpload(input.FileName, input.Content)
	if err != nil {
		return domainreview.Review{}, err
	}

	codeFile, err := s.parse(ctx, fileName, input.Content, input.RunAnalysis)
	if err != nil {
		return domainreview.Review{}, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = fileName
	}

	now := s.now()
	fileID := s.newID()
	revision := newRevision(s.newID(), actor, input.Label, now, codeFile.Ref(fileID, true))
	review := domainreview.Review{
		ReviewID:     s.newID(),
		Author:       actor,
		Name:         name,
		CreationDate: now,
		RunAnalysis:  input.RunAnalysis,
		Revisions:    []domainreview.Revision{revision},
	}

	var stored domainreview.Review
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.storeUpload(txCtx, revision.RevisionID, fileID, input.Content, codeFile); err != nil {
			return err
		}
		saved, err := s.repo.UpsertReview(txCtx, review)
		if err != nil {
			return errs.Wrap(err, "save review")
		}
		stored = saved
		return nil
	}); err != nil {
		return domainreview.Review{}, err
	}

	s.subscribeBestEffort(ctx, stored, actor)
	return stored, nil
}

func (s *Service) parse(ctx context.Context, fileName string, content []byte, runAnalysis bool) (domainreview.CodeFile, error) {
	parser, ok := s.parsers.ForFile(fileName)
	if !ok {
		return domainreview.CodeFile{}, fmt.Errorf("%w: %s", domainreview.ErrParseUnsupported, fileName)
	}
	codeFile, err := parser.Parse(ctx, fileName, content, runAnalysis)
	if err != nil {
		return domainreview.CodeFile{}, errs.Wrapf(err, "parse %s with %s", fileName, parser.Name())
	}
	return codeFile, nil
}

// storeUpload writes the raw upload and its parsed form. Both are keyed by
// fresh ids and stay unreachable until the review document references them.
func (s *Service) storeUpload(ctx context.Context, revisionID string, fileID string, content []byte, codeFile domainreview.CodeFile) error {
	if err := s.blobs.Upload(ctx, fileID, content); err != nil {
		return errs.Wrap(err, "upload original")
	}
	if err := s.codeFiles.Upsert(ctx, revisionID, fileID, codeFile); err != nil {
		return errs.Wrap(err, "store code file")
	}
	return nil
}

func (s *Service) loadReview(ctx context.Context, reviewID string) (domainreview.Review, error) {
	review, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return domainreview.Review{}, errs.Wrapf(err, "load review %s", reviewID)
	}
	return review, nil
}

