package inmemdb

import (
	"context"
	"sort"

	"github.com/lamiedu/taarifa/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) Insert(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.seq++
	n.ID = repo.db.seq
	repo.db.table[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) GetByID(_ context.Context, id int) (notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if n, ok := repo.db.table[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) ListByRecipient(_ context.Context, rcpt notification.Recipient) ([]notification.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notifs := make([]notification.Notification, 0)
	for _, n := range repo.db.table {
		if n.Recipient() == rcpt {
			notifs = append(notifs, *n)
		}
	}
	// newest first; id breaks created_at ties
	sort.Slice(notifs, func(i, j int) bool {
		if notifs[i].CreatedAt.Equal(notifs[j].CreatedAt) {
			return notifs[i].ID > notifs[j].ID
		}
		return notifs[i].CreatedAt.After(notifs[j].CreatedAt)
	})
	return notifs, nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, rcpt notification.Recipient) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, n := range repo.db.table {
		if n.Recipient() == rcpt && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) SetRead(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n, ok := repo.db.table[id]
	if !ok || n.IsRead {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

func (repo *notificationRepository) SetAllRead(_ context.Context, rcpt notification.Recipient) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var count int
	for _, n := range repo.db.table {
		if n.Recipient() == rcpt && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) Delete(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return false, nil
	}
	delete(repo.db.table, id)
	return true, nil
}
