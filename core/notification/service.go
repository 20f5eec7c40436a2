package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/lamiedu/taarifa/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	// Repository is the durable, queryable storage for Notification records.
	Repository interface {
		// Insert assigns an identifier and persists the record.
		Insert(ctx context.Context, n Notification) (Notification, error)
		GetByID(ctx context.Context, id int) (Notification, error)
		// ListByRecipient returns the recipient's notifications ordered by
		// created_at descending, ties broken by id descending.
		ListByRecipient(ctx context.Context, rcpt Recipient) ([]Notification, error)
		CountUnread(ctx context.Context, rcpt Recipient) (int, error)
		// SetRead is idempotent; it reports whether a row was actually changed.
		SetRead(ctx context.Context, id int) (changed bool, err error)
		SetAllRead(ctx context.Context, rcpt Recipient) (count int, err error)
		Delete(ctx context.Context, id int) (existed bool, err error)
	}

	// UnreadCounter caches unread counts per recipient. The store remains the
	// source of truth; every write path invalidates the cached value.
	UnreadCounter interface {
		Get(ctx context.Context, rcpt Recipient) (count int, ok bool, err error)
		Set(ctx context.Context, rcpt Recipient, count int) error
		Invalidate(ctx context.Context, rcpt Recipient) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, nn NewNotification) (Notification, error)
		List(ctx context.Context, rcpt Recipient) ([]Notification, error)
		CountUnread(ctx context.Context, rcpt Recipient) (int, error)
		MarkRead(ctx context.Context, rcpt Recipient, id int) (changed bool, err error)
		MarkAllRead(ctx context.Context, rcpt Recipient) (count int, err error)
		Delete(ctx context.Context, rcpt Recipient, id int) error
	}

	Service struct {
		repo    Repository
		counter UnreadCounter // optional
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, counter UnreadCounter, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		counter: counter,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// Create validates and persists a new notification. Write-path storage
// failures are surfaced directly, never retried: a blind retry could deliver
// the same notification twice.
func (svc *Service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Email = core.CleanString(nn.Email, true /* lower */)

	var flds []core.FieldError
	if !nn.RecipientRole.Valid() {
		flds = append(flds, core.FieldError{Field: "recipientRole", Error: errUnknownRole})
	}
	if nn.RecipientID <= 0 {
		flds = append(flds, core.FieldError{Field: "recipientId", Error: errBadRecipientID})
	}
	if nn.Title == "" {
		flds = append(flds, core.FieldError{Field: "title", Error: "title must not be empty"})
	}
	if nn.Message == "" {
		flds = append(flds, core.FieldError{Field: "message", Error: "message must not be empty"})
	}
	if nn.Email != "" {
		if _, err := mail.ParseAddress(nn.Email); err != nil {
			flds = append(flds, core.FieldError{Field: "email", Error: "email must be a valid email address"})
		}
	}
	if len(flds) > 0 {
		return Notification{}, core.NewValidationError(nil, flds...)
	}

	n := Notification{
		RecipientRole: nn.RecipientRole,
		RecipientID:   nn.RecipientID,
		Title:         nn.Title,
		Message:       nn.Message,
		IsRead:        false,
		CreatedAt:     time.Now().UTC(),
	}
	created, err := svc.repo.Insert(ctx, n)
	if err != nil {
		return Notification{}, core.NewStorageError(err, "inserting notification")
	}

	svc.invalidateCount(ctx, created.Recipient())
	svc.emailRecipient(created, nn.Email)
	return created, nil
}

func (svc *Service) List(ctx context.Context, rcpt Recipient) ([]Notification, error) {
	if err := rcpt.Validate(); err != nil {
		return nil, err
	}
	var notifs []Notification
	err := svc.retryRead(ctx, "listing notifications", func() (err error) {
		notifs, err = svc.repo.ListByRecipient(ctx, rcpt)
		return err
	})
	if err != nil {
		return nil, err
	}
	if notifs == nil {
		notifs = []Notification{}
	}
	return notifs, nil
}

func (svc *Service) CountUnread(ctx context.Context, rcpt Recipient) (int, error) {
	if err := rcpt.Validate(); err != nil {
		return 0, err
	}

	if svc.counter != nil {
		if count, ok, err := svc.counter.Get(ctx, rcpt); err != nil {
			svc.logger.Warn(fmt.Sprintf("unread counter read failed for %s:%d: %v", rcpt.Role, rcpt.ID, err), err)
		} else if ok {
			return count, nil
		}
	}

	var count int
	err := svc.retryRead(ctx, "counting unread notifications", func() (err error) {
		count, err = svc.repo.CountUnread(ctx, rcpt)
		return err
	})
	if err != nil {
		return 0, err
	}

	if svc.counter != nil {
		if err = svc.counter.Set(ctx, rcpt, count); err != nil {
			svc.logger.Warn(fmt.Sprintf("unread counter write failed for %s:%d: %v", rcpt.Role, rcpt.ID, err), err)
		}
	}
	return count, nil
}

// MarkRead flips is_read on a single notification. Marking an already-read or
// missing record is not an error; changed reports whether a row was touched.
func (svc *Service) MarkRead(ctx context.Context, rcpt Recipient, id int) (bool, error) {
	if err := rcpt.Validate(); err != nil {
		return false, err
	}

	n, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return false, nil
		}
		return false, core.NewStorageError(err, "finding notification")
	}
	if n.Recipient() != rcpt {
		return false, core.NewAuthorizationError(errors.New("notification is addressed to another recipient"))
	}

	changed, err := svc.repo.SetRead(ctx, id)
	if err != nil {
		return false, core.NewStorageError(err, "marking notification read")
	}
	if changed {
		svc.invalidateCount(ctx, rcpt)
	}
	return changed, nil
}

// MarkAllRead flips every unread notification of the recipient and returns the
// number of rows actually changed, as reported by the store.
func (svc *Service) MarkAllRead(ctx context.Context, rcpt Recipient) (int, error) {
	if err := rcpt.Validate(); err != nil {
		return 0, err
	}
	count, err := svc.repo.SetAllRead(ctx, rcpt)
	if err != nil {
		return 0, core.NewStorageError(err, "marking all notifications read")
	}
	svc.invalidateCount(ctx, rcpt)
	return count, nil
}

// Delete removes a notification. Deleting a missing record succeeds: the
// caller's goal (the record being gone) is already met.
func (svc *Service) Delete(ctx context.Context, rcpt Recipient, id int) error {
	if err := rcpt.Validate(); err != nil {
		return err
	}

	n, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			svc.logger.Debug(fmt.Sprintf("delete of missing notification %d", id))
			return nil
		}
		return core.NewStorageError(err, "finding notification")
	}
	if n.Recipient() != rcpt {
		return core.NewAuthorizationError(errors.New("notification is addressed to another recipient"))
	}

	existed, err := svc.repo.Delete(ctx, id)
	if err != nil {
		return core.NewStorageError(err, "deleting notification")
	}
	if existed && !n.IsRead {
		svc.invalidateCount(ctx, rcpt)
	}
	return nil
}

// retryRead runs an idempotent read, retrying once on storage failure.
func (svc *Service) retryRead(ctx context.Context, msg string, read func() error) error {
	err := read()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return core.NewStorageError(err, msg)
	}
	svc.logger.Warn(fmt.Sprintf("%s failed, retrying once: %v", msg, err), err)
	if err = read(); err != nil {
		return core.NewStorageError(err, msg)
	}
	return nil
}

func (svc *Service) invalidateCount(ctx context.Context, rcpt Recipient) {
	if svc.counter == nil {
		return
	}
	if err := svc.counter.Invalidate(ctx, rcpt); err != nil {
		svc.logger.Warn(fmt.Sprintf("unread counter invalidation failed for %s:%d: %v", rcpt.Role, rcpt.ID, err), err)
	}
}

func (svc *Service) emailRecipient(n Notification, email string) {
	if svc.mailSvc == nil || email == "" || (svc.conf != nil && !svc.conf.SendNotifEmails) {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      n.Title,
		TemplateName: "notification",
		TemplateData: n,
		BodyStr:      n.Message,
	})
}
