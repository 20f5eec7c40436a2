package notification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamiedu/taarifa/core"
	"github.com/lamiedu/taarifa/core/notification"
	inmemdb "github.com/lamiedu/taarifa/storage/database/inmem"
)

func setup(t *testing.T) (*notification.Service, notification.Repository) {
	t.Helper()
	repo := inmemdb.NewNotificationRepository(inmemdb.Open())
	svc := notification.NewService(repo, nil, nil, core.NopLogger{}, nil)
	return svc, repo
}

func createNotif(t *testing.T, repo notification.Repository, rcpt notification.Recipient, title string, createdAt ...time.Time) notification.Notification {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	n, err := repo.Insert(context.Background(), notification.Notification{
		RecipientRole: rcpt.Role,
		RecipientID:   rcpt.ID,
		Title:         title,
		Message:       title + " body",
		CreatedAt:     tstamp,
	})
	require.NoError(t, err)
	return n
}

func TestService_Create_validation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		data      notification.NewNotification
		wantFlds  []string
	}{
		{
			name:     "empty everything",
			data:     notification.NewNotification{},
			wantFlds: []string{"recipientRole", "recipientId", "title", "message"},
		},
		{
			name: "unknown role",
			data: notification.NewNotification{
				RecipientRole: "principal", RecipientID: 1, Title: "t", Message: "m",
			},
			wantFlds: []string{"recipientRole"},
		},
		{
			name: "non-positive recipient id",
			data: notification.NewNotification{
				RecipientRole: notification.RoleMentor, RecipientID: 0, Title: "t", Message: "m",
			},
			wantFlds: []string{"recipientId"},
		},
		{
			name: "whitespace-only title",
			data: notification.NewNotification{
				RecipientRole: notification.RoleMentor, RecipientID: 1, Title: "   ", Message: "m",
			},
			wantFlds: []string{"title"},
		},
		{
			name: "malformed email",
			data: notification.NewNotification{
				RecipientRole: notification.RoleStudent, RecipientID: 2, Title: "t", Message: "m", Email: "not-an-address",
			},
			wantFlds: []string{"email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.data)
			require.Error(t, err)
			vErr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "want ValidationError, got %T", err)
			flds := make([]string, 0, len(vErr.Fields))
			for _, f := range vErr.Fields {
				flds = append(flds, f.Field)
			}
			assert.ElementsMatch(t, tt.wantFlds, flds)
		})
	}
}

func TestService_Create_roundTrip(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, notification.NewNotification{
		RecipientRole: notification.RoleMentor,
		RecipientID:   42,
		Title:         "  Project assigned  ",
		Message:       "You have been assigned to Acme.",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Project assigned", created.Title) // trimmed
	assert.False(t, created.IsRead)
	assert.False(t, created.CreatedAt.IsZero())

	notifs, err := svc.List(ctx, notification.Recipient{Role: notification.RoleMentor, ID: 42})
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, created, notifs[0])
}

func TestService_List_ordering(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	rcpt := notification.Recipient{Role: notification.RoleStudent, ID: 7}

	now := time.Now().UTC().Truncate(time.Second)
	old := createNotif(t, repo, rcpt, "old", now.Add(-time.Hour))
	tie1 := createNotif(t, repo, rcpt, "tie1", now)
	tie2 := createNotif(t, repo, rcpt, "tie2", now)
	fresh := createNotif(t, repo, rcpt, "fresh", now.Add(time.Hour))
	createNotif(t, repo, notification.Recipient{Role: notification.RoleStudent, ID: 8}, "other recipient")

	notifs, err := svc.List(ctx, rcpt)
	require.NoError(t, err)
	require.Len(t, notifs, 4)
	// newest first; equal timestamps break by id descending
	assert.Equal(t, []int{fresh.ID, tie2.ID, tie1.ID, old.ID},
		[]int{notifs[0].ID, notifs[1].ID, notifs[2].ID, notifs[3].ID})
}

func TestService_List_empty(t *testing.T) {
	svc, _ := setup(t)
	notifs, err := svc.List(context.Background(), notification.Recipient{Role: notification.RoleAdmin, ID: 1})
	require.NoError(t, err)
	assert.NotNil(t, notifs)
	assert.Len(t, notifs, 0)
}

func TestService_MarkRead_idempotent(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	rcpt := notification.Recipient{Role: notification.RoleMentor, ID: 42}
	n := createNotif(t, repo, rcpt, "once")

	changed, err := svc.MarkRead(ctx, rcpt, n.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.MarkRead(ctx, rcpt, n.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	// marking a missing notification is not an error either
	changed, err = svc.MarkRead(ctx, rcpt, 99999)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestService_MarkRead_scoped(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	owner := notification.Recipient{Role: notification.RoleMentor, ID: 42}
	n := createNotif(t, repo, owner, "private")

	_, err := svc.MarkRead(ctx, notification.Recipient{Role: notification.RoleMentor, ID: 43}, n.ID)
	require.Error(t, err)
	_, ok := errors.Cause(err).(*core.AuthorizationError)
	assert.True(t, ok, "want AuthorizationError, got %T", err)

	// same id, same role, different pair member
	_, err = svc.MarkRead(ctx, notification.Recipient{Role: notification.RoleStudent, ID: 42}, n.ID)
	require.Error(t, err)
}

func TestService_unreadCountInvariant(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	rcpt := notification.Recipient{Role: notification.RoleCompany, ID: 3}

	for i := 0; i < 5; i++ {
		createNotif(t, repo, rcpt, "n")
	}
	notifs, err := svc.List(ctx, rcpt)
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, rcpt, notifs[0].ID)
	require.NoError(t, err)
	_, err = svc.MarkRead(ctx, rcpt, notifs[3].ID)
	require.NoError(t, err)

	notifs, err = svc.List(ctx, rcpt)
	require.NoError(t, err)
	var unread int
	for _, n := range notifs {
		if !n.IsRead {
			unread++
		}
	}
	count, err := svc.CountUnread(ctx, rcpt)
	require.NoError(t, err)
	assert.Equal(t, unread, count)
	assert.Equal(t, 3, count)
}

func TestService_markAllReadScenario(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	rcpt := notification.Recipient{Role: notification.RoleMentor, ID: 42}

	createNotif(t, repo, rcpt, "first")
	createNotif(t, repo, rcpt, "second")

	count, err := svc.CountUnread(ctx, rcpt)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	changed, err := svc.MarkAllRead(ctx, rcpt)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	count, err = svc.CountUnread(ctx, rcpt)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// nothing left to change
	changed, err = svc.MarkAllRead(ctx, rcpt)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}

func TestService_concurrentMarkReadConverges(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	rcpt := notification.Recipient{Role: notification.RoleStudent, ID: 5}

	var notifs []notification.Notification
	for i := 0; i < 10; i++ {
		notifs = append(notifs, createNotif(t, repo, rcpt, "n"))
	}
	target := notifs[4]

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.MarkRead(ctx, rcpt, target.ID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := svc.MarkAllRead(ctx, rcpt)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// whichever write won, the record ends up read and the count agrees
	got, err := repo.GetByID(ctx, target.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	count, err := svc.CountUnread(ctx, rcpt)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	all, err := svc.List(ctx, rcpt)
	require.NoError(t, err)
	for _, n := range all {
		assert.True(t, n.IsRead)
	}
}

func TestService_Delete(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()
	rcpt := notification.Recipient{Role: notification.RoleStudent, ID: 9}
	n := createNotif(t, repo, rcpt, "bye")

	require.NoError(t, svc.Delete(ctx, rcpt, n.ID))
	_, err := repo.GetByID(ctx, n.ID)
	assert.Equal(t, notification.ErrNotFound, errors.Cause(err))

	// deleting again is fine
	require.NoError(t, svc.Delete(ctx, rcpt, n.ID))

	// but deleting someone else's is not
	other := createNotif(t, repo, notification.Recipient{Role: notification.RoleStudent, ID: 10}, "keep")
	err = svc.Delete(ctx, rcpt, other.ID)
	require.Error(t, err)
	_, ok := errors.Cause(err).(*core.AuthorizationError)
	assert.True(t, ok)
}

// flakyRepo fails each read once before delegating, to exercise the
// read-retry path.
type flakyRepo struct {
	notification.Repository
	failures int
}

func (r *flakyRepo) ListByRecipient(ctx context.Context, rcpt notification.Recipient) ([]notification.Notification, error) {
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("connection reset")
	}
	return r.Repository.ListByRecipient(ctx, rcpt)
}

func (r *flakyRepo) CountUnread(ctx context.Context, rcpt notification.Recipient) (int, error) {
	if r.failures > 0 {
		r.failures--
		return 0, errors.New("connection reset")
	}
	return r.Repository.CountUnread(ctx, rcpt)
}

func (r *flakyRepo) Insert(context.Context, notification.Notification) (notification.Notification, error) {
	return notification.Notification{}, errors.New("connection reset")
}

func TestService_readsRetryOnce(t *testing.T) {
	base := inmemdb.NewNotificationRepository(inmemdb.Open())
	rcpt := notification.Recipient{Role: notification.RoleMentor, ID: 1}
	createNotif(t, base, rcpt, "survives a hiccup")

	flaky := &flakyRepo{Repository: base, failures: 1}
	svc := notification.NewService(flaky, nil, nil, core.NopLogger{}, nil)

	notifs, err := svc.List(context.Background(), rcpt)
	require.NoError(t, err)
	assert.Len(t, notifs, 1)

	// two consecutive failures exhaust the single retry
	flaky.failures = 2
	_, err = svc.CountUnread(context.Background(), rcpt)
	require.Error(t, err)
	assert.True(t, core.IsStorageError(err))
}

func TestService_writesAreNotRetried(t *testing.T) {
	base := inmemdb.NewNotificationRepository(inmemdb.Open())
	flaky := &flakyRepo{Repository: base}
	svc := notification.NewService(flaky, nil, nil, core.NopLogger{}, nil)

	_, err := svc.Create(context.Background(), notification.NewNotification{
		RecipientRole: notification.RoleMentor, RecipientID: 1, Title: "t", Message: "m",
	})
	require.Error(t, err)
	assert.True(t, core.IsStorageError(err))

	// nothing was persisted by a sneaky retry
	notifs, lerr := base.ListByRecipient(context.Background(), notification.Recipient{Role: notification.RoleMentor, ID: 1})
	require.NoError(t, lerr)
	assert.Len(t, notifs, 0)
}
