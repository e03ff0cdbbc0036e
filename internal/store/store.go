package store

import (
	"context"

	"github.com/okieraised/power-alert-relay/internal/models"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("recipient not found")

// DefaultsFunc supplies the catalog bounds used to seed a newly configured topic rule.
type DefaultsFunc func(topic string) (low, high *float64)

// RecipientStore persists recipients and their alert latches. Alert paths
// write through Update, which only touches the fields named in the update.
type RecipientStore interface {
	FindByTopicEnabled(ctx context.Context, topic string) ([]models.Recipient, error)
	FindByGeneratorEnabled(ctx context.Context) ([]models.Recipient, error)
	FindByTimeoutEnabled(ctx context.Context, excludingAlerted bool) ([]models.Recipient, error)
	Get(ctx context.Context, token string) (models.Recipient, error)
	Update(ctx context.Context, token string, update models.RecipientUpdate) error
	// ClearTimeoutAlerts resets every latched communication-timeout flag.
	ClearTimeoutAlerts(ctx context.Context) (int64, error)
	DeleteByToken(ctx context.Context, token string) error
	UpsertOnRegister(ctx context.Context, reg models.Registration, defaults DefaultsFunc) (models.Recipient, error)
	Ping(ctx context.Context) error
	Close()
}
