package inmemdb

import (
	"sync"

	"github.com/lamiedu/taarifa/core/notification"
)

// DB is a process-local store used in tests and dev mode.
type DB struct {
	notification *notificationTable
}

type notificationTable struct {
	mutex sync.RWMutex
	seq   int // ids are never reused, even after deletion
	table map[int]*notification.Notification
}

func Open() *DB {
	return &DB{
		notification: &notificationTable{table: make(map[int]*notification.Notification)},
	}
}
