package notify

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	domainreview "apiview/internal/domain/review"
	"apiview/internal/errs"
	"apiview/internal/ports"
)

type SubscribedEvent struct {
	ReviewID   string    `json:"reviewId"`
	ReviewName string    `json:"reviewName"`
	Principal  string    `json:"principal"`
	OccurredAt time.Time `json:"occurredAt"`
}

type NewRevisionEvent struct {
	ReviewID    string    `json:"reviewId"`
	ReviewName  string    `json:"reviewName"`
	RevisionID  string    `json:"revisionId"`
	Label       string    `json:"label,omitempty"`
	Author      string    `json:"author"`
	Language    string    `json:"language,omitempty"`
	PackageName string    `json:"packageName,omitempty"`
	Automatic   bool      `json:"automatic"`
	Recipients  []string  `json:"recipients"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Dispatcher implements ports.Notifier on top of the subscriber table and a
// Publisher. The revision author is never among the recipients.
type Dispatcher struct {
	subs      *SubscriptionRepository
	publisher Publisher
	prefix    string
	now       func() time.Time
}

var _ ports.Notifier = (*Dispatcher)(nil)

func NewDispatcher(subs *SubscriptionRepository, publisher Publisher, subjectPrefix string) *Dispatcher {
	prefix := strings.Trim(strings.TrimSpace(subjectPrefix), ".")
	if prefix == "" {
		prefix = "apiview"
	}
	return &Dispatcher{
		subs:      subs,
		publisher: publisher,
		prefix:    prefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Subscribe(ctx context.Context, review domainreview.Review, principal string) error {
	principal = strings.TrimSpace(principal)
	if principal == "" {
		return domainreview.ErrActorRequired
	}
	if err := d.subs.Add(ctx, review.ReviewID, principal); err != nil {
		return err
	}
	return d.publish(ctx, d.subject(review.ReviewID, "subscribed"), SubscribedEvent{
		ReviewID:   review.ReviewID,
		ReviewName: review.Name,
		Principal:  principal,
		OccurredAt: d.now(),
	})
}

func (d *Dispatcher) NotifyNewRevision(ctx context.Context, review domainreview.Review, revision domainreview.Revision, author string) error {
	subscribers, err := d.subs.List(ctx, review.ReviewID)
	if err != nil {
		return err
	}
	recipients := make([]string, 0, len(subscribers))
	for _, s := range subscribers {
		if s != author {
			recipients = append(recipients, s)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	event := NewRevisionEvent{
		ReviewID:   review.ReviewID,
		ReviewName: review.Name,
		RevisionID: revision.RevisionID,
		Label:      revision.Label,
		Author:     author,
		Automatic:  review.IsAutomatic,
		Recipients: recipients,
		OccurredAt: d.now(),
	}
	if len(revision.Files) > 0 {
		event.Language = revision.Files[0].Language
		event.PackageName = revision.Files[0].PackageName
	}
	return d.publish(ctx, d.subject(review.ReviewID, "revision"), event)
}

func (d *Dispatcher) subject(reviewID string, event string) string {
	return d.prefix + ".review." + reviewID + "." + event
}

func (d *Dispatcher) publish(ctx context.Context, subject string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "encode notification")
	}
	return d.publisher.Publish(ctx, subject, payload)
}
