package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/cartflow/CartFlow/internal/pkg/database"
)

// Repositories bundles the repositories the admin controllers depend on.
type Repositories struct {
	WebhookEvents WebhookEventRepository
	Queue         QueueRepository
}

var (
	instance *Repositories
	once     sync.Once
)

// GetRepositories returns the process-wide repository set backed by the
// shared database connection.
func GetRepositories() *Repositories {
	once.Do(func() {
		instance = NewRepositories(database.GetDB())
	})
	return instance
}

// NewRepositories builds a repository set on an explicit connection,
// mainly for tests.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		WebhookEvents: NewWebhookEventRepository(db),
		Queue:         NewQueueRepository(db),
	}
}
